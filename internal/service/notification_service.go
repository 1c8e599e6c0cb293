package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notification-service/internal/domain"
	"github.com/kursadbilgin/notification-service/internal/observability"
	"github.com/kursadbilgin/notification-service/internal/queue"
	"github.com/kursadbilgin/notification-service/internal/repository"
	"go.uber.org/zap"
)

// SubmitRequest is a validated-at-intake notification request.
type SubmitRequest struct {
	Recipient     string
	Subject       string
	Message       string
	CorrelationID string
}

// NotificationService is the intake side: it persists a request and hands it
// to the delivery queue, in that order.
type NotificationService struct {
	notifications repository.NotificationRepository
	publisher     queue.Publisher
	queueName     string
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
	newID         func() string
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	publisher queue.Publisher,
	queueName string,
	logger *zap.Logger,
) (*NotificationService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if strings.TrimSpace(queueName) == "" {
		queueName = queue.DefaultQueueName
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications: notifications,
		publisher:     publisher,
		queueName:     strings.TrimSpace(queueName),
		logger:        logger,
		now:           time.Now,
		newID:         uuid.NewString,
	}, nil
}

func (s *NotificationService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Submit stores a new ENQUEUED record and publishes its id. A storage failure
// returns ErrStorage and publishes nothing. A publish failure returns the
// stored record together with ErrQueue; the record stays ENQUEUED with no
// queue message and is not rolled back.
func (s *NotificationService) Submit(ctx context.Context, req SubmitRequest) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	now := s.now().UTC()
	notification := &domain.Notification{
		ID:               s.newID(),
		Recipient:        strings.TrimSpace(req.Recipient),
		Subject:          strings.TrimSpace(req.Subject),
		Message:          req.Message,
		Status:           domain.StatusEnqueued,
		RetriesAttempted: 0,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := notification.Validate(); err != nil {
		s.metrics.IncSubmission("invalid")
		return nil, err
	}

	logger := observability.LoggerFromContext(ctx, s.logger).With(zap.String("notificationId", notification.ID))

	if err := s.notifications.Create(ctx, notification); err != nil {
		logger.Error("failed to store notification", zap.Error(err))
		s.metrics.IncSubmission("storage_error")
		if errors.Is(err, domain.ErrStorage) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID, _ = observability.CorrelationIDFromContext(ctx)
	}

	msg := queue.NewNotificationMessage(notification, correlationID)
	if err := s.publisher.Publish(ctx, s.queueName, msg); err != nil {
		logger.Error("notification stored but not enqueued",
			zap.String("queue", s.queueName),
			zap.Error(err),
		)
		s.metrics.IncSubmission("queue_error")
		return notification, fmt.Errorf("%w: %v", domain.ErrQueue, err)
	}

	logger.Info("notification accepted", zap.String("queue", s.queueName))
	s.metrics.IncSubmission("accepted")
	return notification, nil
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return s.notifications.GetByID(ctx, strings.TrimSpace(id))
}

func (s *NotificationService) List(
	ctx context.Context,
	params repository.ListParams,
) ([]domain.Notification, int64, error) {
	return s.notifications.List(ctx, params)
}
