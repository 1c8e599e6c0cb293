package repository

import (
	"time"

	"github.com/kursadbilgin/notification-service/internal/domain"
)

// NotificationModel is the persistence model for the notification_requests table.
type NotificationModel struct {
	ID               string        `gorm:"type:uuid;primaryKey"`
	Recipient        string        `gorm:"type:varchar(255);not null"`
	Subject          string        `gorm:"type:varchar(255);not null"`
	Message          string        `gorm:"type:text;not null"`
	Status           domain.Status `gorm:"type:varchar(20);not null"`
	RetriesAttempted int           `gorm:"not null;default:0"`
	LastErrorMessage *string       `gorm:"type:text"`
	CreatedAt        time.Time     `gorm:"type:timestamptz;not null"`
	UpdatedAt        time.Time     `gorm:"type:timestamptz;not null"`
}

func (NotificationModel) TableName() string {
	return "notification_requests"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:               n.ID,
		Recipient:        n.Recipient,
		Subject:          n.Subject,
		Message:          n.Message,
		Status:           n.Status,
		RetriesAttempted: n.RetriesAttempted,
		LastErrorMessage: n.LastErrorMessage,
		CreatedAt:        n.CreatedAt,
		UpdatedAt:        n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:               m.ID,
		Recipient:        m.Recipient,
		Subject:          m.Subject,
		Message:          m.Message,
		Status:           m.Status,
		RetriesAttempted: m.RetriesAttempted,
		LastErrorMessage: m.LastErrorMessage,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
