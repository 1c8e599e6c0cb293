package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/notification-service/internal/domain"
	"github.com/kursadbilgin/notification-service/internal/observability"
	"github.com/kursadbilgin/notification-service/internal/provider"
	"github.com/kursadbilgin/notification-service/internal/queue"
	"github.com/kursadbilgin/notification-service/internal/ratelimit"
	"github.com/kursadbilgin/notification-service/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	minWorkerConcurrency = 1
	defaultMaxRetries    = 3
)

type WorkerConfig struct {
	QueueName   string
	Concurrency int
	// MaxRetries is the retry ceiling: the number of failed deliveries after
	// which a notification becomes FAILED.
	MaxRetries int
}

// WorkerService consumes the delivery queue and drives each notification
// through ENQUEUED -> PROCESSING -> DELIVERED | FAILED.
type WorkerService struct {
	notifications repository.NotificationRepository
	consumer      queue.Consumer
	sender        provider.Sender
	rateLimiter   ratelimit.RateLimiter
	logger        *zap.Logger
	metrics       *observability.Metrics
	queueName     string
	concurrency   int
	maxRetries    int
	now           func() time.Time
}

func NewWorkerService(
	notifications repository.NotificationRepository,
	consumer queue.Consumer,
	sender provider.Sender,
	rateLimiter ratelimit.RateLimiter,
	cfg WorkerConfig,
	logger *zap.Logger,
) (*WorkerService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sender is required")
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}
	if strings.TrimSpace(cfg.QueueName) == "" {
		cfg.QueueName = queue.DefaultQueueName
	}
	if cfg.Concurrency < minWorkerConcurrency {
		cfg.Concurrency = minWorkerConcurrency
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		notifications: notifications,
		consumer:      consumer,
		sender:        sender,
		rateLimiter:   rateLimiter,
		logger:        logger,
		queueName:     strings.TrimSpace(cfg.QueueName),
		concurrency:   cfg.Concurrency,
		maxRetries:    cfg.MaxRetries,
		now:           time.Now,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start runs Concurrency competing consumers on the delivery queue until ctx
// is canceled.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", s.queueName),
			)

			err := s.consumer.Consume(groupCtx, s.queueName, s.HandleMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", s.queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", s.queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

// HandleMessage processes one delivery and decides how it is settled. The
// persisted status is the only source of truth; the message is a pointer to it.
func (s *WorkerService) HandleMessage(ctx context.Context, msg queue.NotificationMessage) queue.Outcome {
	ctx, _ = observability.EnsureCorrelationID(ctx, msg.CorrelationID)
	logger := observability.LoggerFromContext(ctx, s.logger).With(zap.String("notificationId", msg.ID))

	notification, err := s.notifications.GetByID(ctx, msg.ID)
	if errors.Is(err, domain.ErrNotFound) {
		logger.Warn("notification not found, discarding message")
		s.metrics.IncDiscarded("not_found")
		return queue.Ack
	}
	if err != nil {
		logger.Error("failed to read notification, requeueing", zap.Error(err))
		s.metrics.IncRequeue("store_read")
		return queue.Requeue
	}

	switch notification.Status {
	case domain.StatusDelivered:
		logger.Info("notification already delivered, skipping")
		s.metrics.IncDiscarded("already_delivered")
		return queue.Ack
	case domain.StatusFailed:
		logger.Info("notification already failed, skipping")
		s.metrics.IncDiscarded("already_failed")
		return queue.Ack
	}

	if err := domain.ValidateTransition(notification.Status, domain.StatusProcessing); err != nil {
		logger.Error("notification cannot be claimed, discarding message",
			zap.String("status", notification.Status.String()),
			zap.Error(err),
		)
		s.metrics.IncDiscarded("invalid_state")
		return queue.Ack
	}

	scope := s.sender.Name()
	if err := s.rateLimiter.Wait(ctx, scope); err != nil {
		logger.Warn("rate limiter wait failed, requeueing", zap.Error(err))
		s.metrics.IncRequeue("rate_limiter")
		return queue.Requeue
	}

	if err := s.notifications.MarkProcessing(ctx, notification.ID); err != nil {
		return s.settleStoreWrite(logger, "claim", err)
	}
	notification.Status = domain.StatusProcessing

	s.metrics.IncInFlight(scope)
	start := s.now()
	result, sendErr := s.sender.Send(ctx, *notification)
	s.metrics.ObserveSendDuration(scope, s.now().Sub(start))
	s.metrics.DecInFlight(scope)

	if sendErr == nil {
		if err := s.notifications.MarkDelivered(ctx, notification.ID); err != nil {
			return s.settleStoreWrite(logger, "mark delivered", err)
		}

		fields := []zap.Field{zap.Int("retriesAttempted", notification.RetriesAttempted)}
		if result != nil && result.MessageID != "" {
			fields = append(fields, zap.String("providerMessageId", result.MessageID))
		}
		logger.Info("notification delivered", fields...)
		s.metrics.IncDelivered(scope)
		return queue.Ack
	}

	if ctx.Err() != nil {
		logger.Warn("delivery interrupted by shutdown, requeueing", zap.Error(sendErr))
		s.metrics.IncRequeue("shutdown")
		return queue.Requeue
	}

	errMsg := sendErr.Error()
	permanent := provider.IsPermanent(sendErr)
	if permanent || notification.RetriesAttempted+1 >= s.maxRetries {
		if err := s.notifications.MarkFailed(ctx, notification.ID, errMsg); err != nil {
			return s.settleStoreWrite(logger, "mark failed", err)
		}

		reason := "retries_exhausted"
		if permanent {
			reason = "permanent_error"
		}
		logger.Warn("notification failed",
			zap.String("reason", reason),
			zap.Int("retriesAttempted", notification.RetriesAttempted),
			zap.Error(sendErr),
		)
		s.metrics.IncFailed(scope, reason)
		return queue.Ack
	}

	if err := s.notifications.RecordRetry(ctx, notification.ID, notification.RetriesAttempted, errMsg); err != nil {
		return s.settleStoreWrite(logger, "record retry", err)
	}

	logger.Warn("delivery failed, requeueing for retry",
		zap.Int("retriesAttempted", notification.RetriesAttempted+1),
		zap.Int("maxRetries", s.maxRetries),
		zap.Error(sendErr),
	)
	s.metrics.IncRetry(scope)
	return queue.Requeue
}

// settleStoreWrite maps a failed conditional write to an outcome. A conflict
// or missing row means another delivery already moved the record on, so the
// message is dropped; any other error is infrastructure and the message is
// requeued untouched.
func (s *WorkerService) settleStoreWrite(logger *zap.Logger, op string, err error) queue.Outcome {
	if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrNotFound) {
		logger.Info("notification changed concurrently, discarding message",
			zap.String("op", op),
			zap.Error(err),
		)
		s.metrics.IncDiscarded("conflict")
		return queue.Ack
	}

	logger.Error("failed to update notification, requeueing",
		zap.String("op", op),
		zap.Error(err),
	)
	s.metrics.IncRequeue("store_write")
	return queue.Requeue
}
