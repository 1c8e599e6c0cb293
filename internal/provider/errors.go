package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderError classifies delivery failures as transient or permanent.
type ProviderError struct {
	StatusCode int
	Message    string
	Transient  bool
	Cause      error
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, "provider error")

	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsPermanent reports whether a delivery error was explicitly classified as
// non-retryable by the sender. Unclassified errors are not permanent.
func IsPermanent(err error) bool {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return !providerErr.Transient
	}
	return false
}
