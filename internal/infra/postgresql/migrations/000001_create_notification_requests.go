package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/notification-service/internal/repository"
	"gorm.io/gorm"
)

func createNotificationRequestsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_notification_requests",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_notification_requests_status_created ON notification_requests (status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_notification_requests_processing ON notification_requests (updated_at) WHERE status = 'PROCESSING'`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationModel{})
		},
	}
}
