package queue

import (
	"context"
	"fmt"
	"strings"
)

// Outcome tells the consumer how to settle a delivery.
type Outcome int

const (
	// Ack removes the message from the queue.
	Ack Outcome = iota
	// Requeue negatively acknowledges the message and puts it back on the queue.
	Requeue
	// Reject drops the message without requeue; the broker dead-letters it.
	Reject
)

func (o Outcome) String() string {
	switch o {
	case Ack:
		return "ack"
	case Requeue:
		return "requeue"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Publisher publishes notification messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg NotificationMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message and decides how it is settled.
type MessageHandler func(ctx context.Context, msg NotificationMessage) Outcome

// Consumer consumes notification messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// DefaultQueueName is the single durable delivery queue.
	DefaultQueueName = "notifications"
	dlxExchangeName  = "notifications.dlx"
)

// DLQName returns the dead-letter queue name for a work queue, e.g. notifications.dlq.
func DLQName(queue string) string {
	return fmt.Sprintf("%s.dlq", strings.TrimSpace(queue))
}
