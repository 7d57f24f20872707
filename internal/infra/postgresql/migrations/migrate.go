package migrations

import (
	"github.com/costavn/notify-engine/internal/repository"
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createUsersTable(),
		createNotificationsTable(),
		createNotificationDeliveriesTable(),
	})

	return m.Migrate()
}

func createUsersTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_users",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&repository.UserModel{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.UserModel{})
		},
	}
}

func createNotificationsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_notifications",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_notifications_created_at ON notifications (created_at DESC)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationModel{})
		},
	}
}

func createNotificationDeliveriesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_notification_deliveries",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationDeliveryModel{}); err != nil {
				return err
			}
			indexes := []string{
				// One delivery row per (notification, user) pair.
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_deliveries_notification_user ON notification_deliveries (notification_id, user_id)`,
				`CREATE INDEX IF NOT EXISTS idx_deliveries_user_created ON notification_deliveries (user_id, created_at DESC)`,
				`CREATE INDEX IF NOT EXISTS idx_deliveries_unread ON notification_deliveries (user_id) WHERE is_read = false`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.NotificationDeliveryModel{})
		},
	}
}
