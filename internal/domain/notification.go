package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Status represents the lifecycle state of a notification.
type Status string

const (
	StatusEnqueued   Status = "ENQUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusDelivered  Status = "DELIVERED"
	StatusFailed     Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusEnqueued, StatusProcessing, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// transitions is the full state machine. PROCESSING -> PROCESSING is the
// re-claim taken when a requeued message is redelivered after a retryable failure.
var transitions = map[Status][]Status{
	StatusEnqueued:   {StatusProcessing},
	StatusProcessing: {StatusProcessing, StatusDelivered, StatusFailed},
}

// CanTransitionTo reports whether s -> next is an edge of the state machine.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourcesOf returns every status that may transition into next.
func SourcesOf(next Status) []Status {
	sources := make([]Status, 0, 2)
	for _, from := range []Status{StatusEnqueued, StatusProcessing, StatusDelivered, StatusFailed} {
		if from.CanTransitionTo(next) {
			sources = append(sources, from)
		}
	}
	return sources
}

// ValidateTransition returns ErrInvalidTransition when from -> to is not allowed.
func ValidateTransition(from, to Status) error {
	if !from.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Field limits (in characters).
const (
	MaxRecipientLength = 255
	MaxSubjectLength   = 255
	MaxMessageLength   = 10000
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Notification is a delivery request and its processing state.
type Notification struct {
	ID               string
	Recipient        string
	Subject          string
	Message          string
	Status           Status
	RetriesAttempted int
	LastErrorMessage *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (n *Notification) Validate() error {
	if n.Recipient == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if err := validate.Var(n.Recipient, "email"); err != nil {
		return fmt.Errorf("%w: recipient must be a valid email address", ErrValidation)
	}
	if n.Subject == "" {
		return fmt.Errorf("%w: subject is required", ErrValidation)
	}
	if n.Message == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}

	if l := len([]rune(n.Recipient)); l > MaxRecipientLength {
		return fmt.Errorf("%w: recipient exceeds %d characters (got %d)", ErrValidation, MaxRecipientLength, l)
	}
	if l := len([]rune(n.Subject)); l > MaxSubjectLength {
		return fmt.Errorf("%w: subject exceeds %d characters (got %d)", ErrValidation, MaxSubjectLength, l)
	}
	if l := len([]rune(n.Message)); l > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters (got %d)", ErrValidation, MaxMessageLength, l)
	}

	return nil
}

// LastError returns the last recorded delivery error or "".
func (n *Notification) LastError() string {
	if n == nil || n.LastErrorMessage == nil {
		return ""
	}
	return *n.LastErrorMessage
}
