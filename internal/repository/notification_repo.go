package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notification-service/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	Status   *domain.Status
	Page     int
	PageSize int
}

// NotificationRepository is the Status Store. Every mutation is a single
// conditional UPDATE keyed by id, so concurrent workers never overwrite a
// terminal record and retry increments are never lost.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkDelivered(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	RecordRetry(ctx context.Context, id string, expectedRetries int, errMsg string) error
}

type GormNotificationRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db, now: time.Now}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if !isRecordID(id) {
		return nil, domain.ErrNotFound
	}

	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}

	return notifications, total, nil
}

func (r *GormNotificationRepo) MarkProcessing(ctx context.Context, id string) error {
	return r.transition(ctx, id, domain.StatusProcessing, map[string]any{})
}

func (r *GormNotificationRepo) MarkDelivered(ctx context.Context, id string) error {
	return r.transition(ctx, id, domain.StatusDelivered, map[string]any{})
}

func (r *GormNotificationRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	return r.transition(ctx, id, domain.StatusFailed, map[string]any{
		"last_error_message": errMsg,
	})
}

func (r *GormNotificationRepo) RecordRetry(ctx context.Context, id string, expectedRetries int, errMsg string) error {
	if !isRecordID(id) {
		return domain.ErrNotFound
	}

	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ? AND retries_attempted = ?", id, domain.StatusProcessing, expectedRetries).
		Updates(map[string]any{
			"retries_attempted":  gorm.Expr("retries_attempted + 1"),
			"last_error_message": errMsg,
			"updated_at":         r.now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

// transition applies to only when the stored status is one of its
// state-machine sources.
func (r *GormNotificationRepo) transition(ctx context.Context, id string, to domain.Status, fields map[string]any) error {
	if !isRecordID(id) {
		return domain.ErrNotFound
	}

	fields["status"] = to
	fields["updated_at"] = r.now().UTC()

	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status IN ?", id, domain.SourcesOf(to)).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.missOrConflict(ctx, id)
	}
	return nil
}

func (r *GormNotificationRepo) missOrConflict(ctx context.Context, id string) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

// isRecordID reports whether id can name a row. The id column is a uuid, so
// any other string is absent by definition and must not reach Postgres.
func isRecordID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
