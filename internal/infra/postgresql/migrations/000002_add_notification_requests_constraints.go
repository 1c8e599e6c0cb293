package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func addNotificationRequestsConstraints() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_add_notification_requests_constraints",
		Migrate: func(tx *gorm.DB) error {
			statements := []string{
				`ALTER TABLE notification_requests DROP CONSTRAINT IF EXISTS chk_notification_requests_status`,
				`ALTER TABLE notification_requests ADD CONSTRAINT chk_notification_requests_status CHECK (status IN ('ENQUEUED', 'PROCESSING', 'DELIVERED', 'FAILED'))`,
				`ALTER TABLE notification_requests DROP CONSTRAINT IF EXISTS chk_notification_requests_retries`,
				`ALTER TABLE notification_requests ADD CONSTRAINT chk_notification_requests_retries CHECK (retries_attempted >= 0)`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			statements := []string{
				`ALTER TABLE notification_requests DROP CONSTRAINT IF EXISTS chk_notification_requests_retries`,
				`ALTER TABLE notification_requests DROP CONSTRAINT IF EXISTS chk_notification_requests_status`,
			}
			for _, sql := range statements {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
	}
}
