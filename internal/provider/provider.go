package provider

import (
	"context"

	"github.com/kursadbilgin/notification-service/internal/domain"
)

// Sender is the outbound delivery port invoked by the worker.
type Sender interface {
	// Name identifies the sender; it scopes rate limiting and labels metrics.
	Name() string
	Send(ctx context.Context, notification domain.Notification) (*SendResult, error)
}

// SendResult carries provider call metadata for logging.
type SendResult struct {
	StatusCode int
	Body       string
	MessageID  string
}
