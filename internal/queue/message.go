package queue

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/notification-service/internal/domain"
)

// NotificationMessage is the broker payload. Recipient, subject and message are
// a denormalized copy of the stored record; the store remains authoritative.
type NotificationMessage struct {
	ID            string `json:"id"`
	Recipient     string `json:"recipient"`
	Subject       string `json:"subject"`
	Message       string `json:"message"`
	CorrelationID string `json:"-"`
}

func NewNotificationMessage(n *domain.Notification, correlationID string) NotificationMessage {
	return NotificationMessage{
		ID:            n.ID,
		Recipient:     n.Recipient,
		Subject:       n.Subject,
		Message:       n.Message,
		CorrelationID: correlationID,
	}
}

func (m NotificationMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("id is required")
	}
	return nil
}
