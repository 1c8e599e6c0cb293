package service

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/notification-service/internal/domain"
	"github.com/kursadbilgin/notification-service/internal/provider"
	"github.com/kursadbilgin/notification-service/internal/queue"
	"github.com/kursadbilgin/notification-service/internal/ratelimit"
	"github.com/kursadbilgin/notification-service/internal/repository"
)

type fakeNotificationRepo struct {
	createFn         func(ctx context.Context, n *domain.Notification) error
	getByIDFn        func(ctx context.Context, id string) (*domain.Notification, error)
	listFn           func(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
	markProcessingFn func(ctx context.Context, id string) error
	markDeliveredFn  func(ctx context.Context, id string) error
	markFailedFn     func(ctx context.Context, id string, errMsg string) error
	recordRetryFn    func(ctx context.Context, id string, expectedRetries int, errMsg string) error
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if f.createFn != nil {
		return f.createFn(ctx, n)
	}
	return nil
}

func (f *fakeNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error) {
	if f.listFn != nil {
		return f.listFn(ctx, params)
	}
	return nil, 0, nil
}

func (f *fakeNotificationRepo) MarkProcessing(ctx context.Context, id string) error {
	if f.markProcessingFn != nil {
		return f.markProcessingFn(ctx, id)
	}
	return nil
}

func (f *fakeNotificationRepo) MarkDelivered(ctx context.Context, id string) error {
	if f.markDeliveredFn != nil {
		return f.markDeliveredFn(ctx, id)
	}
	return nil
}

func (f *fakeNotificationRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	if f.markFailedFn != nil {
		return f.markFailedFn(ctx, id, errMsg)
	}
	return nil
}

func (f *fakeNotificationRepo) RecordRetry(ctx context.Context, id string, expectedRetries int, errMsg string) error {
	if f.recordRetryFn != nil {
		return f.recordRetryFn(ctx, id, expectedRetries, errMsg)
	}
	return nil
}

type fakePublisher struct {
	publishFn func(ctx context.Context, queueName string, msg queue.NotificationMessage) error
}

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, queueName, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error { return nil }

type fakeSender struct {
	sendFn func(ctx context.Context, notification domain.Notification) (*provider.SendResult, error)
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(ctx context.Context, notification domain.Notification) (*provider.SendResult, error) {
	if f.sendFn != nil {
		return f.sendFn(ctx, notification)
	}
	return &provider.SendResult{}, nil
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, scope string) error
}

func (f *fakeRateLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, scope string) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, scope)
	}
	return nil
}

var _ ratelimit.RateLimiter = (*fakeRateLimiter)(nil)

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queue string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

// memStore is an in-memory NotificationRepository with the same conditional
// update rules as the gorm implementation.
type memStore struct {
	mu        sync.Mutex
	records   map[string]domain.Notification
	mutations int

	createErr error
	readErr   error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]domain.Notification)}
}

func (m *memStore) Create(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.records[n.ID] = *n
	m.mutations++
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	n, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &n, nil
}

func (m *memStore) List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Notification, 0, len(m.records))
	for _, n := range m.records {
		if params.Status == nil || n.Status == *params.Status {
			out = append(out, n)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) MarkProcessing(ctx context.Context, id string) error {
	return m.transition(id, domain.StatusProcessing, nil)
}

func (m *memStore) MarkDelivered(ctx context.Context, id string) error {
	return m.transition(id, domain.StatusDelivered, nil)
}

func (m *memStore) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return m.transition(id, domain.StatusFailed, func(n *domain.Notification) {
		n.LastErrorMessage = &errMsg
	})
}

func (m *memStore) RecordRetry(ctx context.Context, id string, expectedRetries int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if n.Status != domain.StatusProcessing || n.RetriesAttempted != expectedRetries {
		return domain.ErrConflict
	}
	n.RetriesAttempted++
	n.LastErrorMessage = &errMsg
	n.UpdatedAt = time.Now().UTC()
	m.records[id] = n
	m.mutations++
	return nil
}

func (m *memStore) transition(id string, to domain.Status, apply func(*domain.Notification)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if err := domain.ValidateTransition(n.Status, to); err != nil {
		return domain.ErrConflict
	}
	n.Status = to
	n.UpdatedAt = time.Now().UTC()
	if apply != nil {
		apply(&n)
	}
	m.records[id] = n
	m.mutations++
	return nil
}

func (m *memStore) get(id string) domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[id]
}

func (m *memStore) mutationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mutations
}

// memQueue is an in-memory broker that redelivers requeued messages at the tail.
type memQueue struct {
	mu         sync.Mutex
	messages   []queue.NotificationMessage
	dead       []queue.NotificationMessage
	published  int
	publishErr error
}

func (q *memQueue) Publish(ctx context.Context, queueName string, msg queue.NotificationMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.messages = append(q.messages, msg)
	q.published++
	return nil
}

func (q *memQueue) Close() error { return nil }

func (q *memQueue) pop() (queue.NotificationMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return queue.NotificationMessage{}, false
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return msg, true
}

func (q *memQueue) settle(msg queue.NotificationMessage, outcome queue.Outcome) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch outcome {
	case queue.Requeue:
		q.messages = append(q.messages, msg)
	case queue.Reject:
		q.dead = append(q.dead, msg)
	}
}

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// drain feeds messages to handler until the queue is empty or limit deliveries
// have been made, returning the number of deliveries.
func (q *memQueue) drain(ctx context.Context, handler queue.MessageHandler, limit int) int {
	deliveries := 0
	for deliveries < limit {
		msg, ok := q.pop()
		if !ok {
			break
		}
		deliveries++
		q.settle(msg, handler(ctx, msg))
	}
	return deliveries
}

var (
	_ repository.NotificationRepository = (*memStore)(nil)
	_ queue.Publisher                   = (*memQueue)(nil)
)
