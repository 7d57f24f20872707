package repository

import (
	"context"
	"time"

	"github.com/costavn/notify-engine/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const deliveryInsertBatchSize = 200

type NotificationRepository interface {
	// CreateWithDeliveries persists the notification and one delivery row per
	// user id in a single transaction, so a crash cannot leave a notification
	// with a partial fan-out.
	CreateWithDeliveries(ctx context.Context, n *domain.Notification, userIDs []string) error
	ListForUser(ctx context.Context, userID string, limit int) ([]domain.NotificationDelivery, error)
	MarkRead(ctx context.Context, userID string, deliveryIDs []string, readAt time.Time) (int64, error)
	MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int64, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) CreateWithDeliveries(ctx context.Context, n *domain.Notification, userIDs []string) error {
	model := notificationModelFromDomain(n)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		if len(userIDs) == 0 {
			return nil
		}

		deliveries := make([]NotificationDeliveryModel, 0, len(userIDs))
		for _, userID := range userIDs {
			deliveries = append(deliveries, NotificationDeliveryModel{
				ID:             uuid.NewString(),
				NotificationID: model.ID,
				UserID:         userID,
				IsRead:         false,
			})
		}

		return tx.CreateInBatches(&deliveries, deliveryInsertBatchSize).Error
	})
	if err != nil {
		return err
	}

	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) ListForUser(ctx context.Context, userID string, limit int) ([]domain.NotificationDelivery, error) {
	var models []NotificationDeliveryModel
	err := r.db.WithContext(ctx).
		Preload("Notification").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	deliveries := make([]domain.NotificationDelivery, 0, len(models))
	for i := range models {
		deliveries = append(deliveries, *deliveryModelToDomain(&models[i]))
	}

	return deliveries, nil
}

func (r *GormNotificationRepo) MarkRead(ctx context.Context, userID string, deliveryIDs []string, readAt time.Time) (int64, error) {
	if len(deliveryIDs) == 0 {
		return 0, nil
	}

	// The is_read filter makes re-marking already-read rows a no-op.
	result := r.db.WithContext(ctx).
		Model(&NotificationDeliveryModel{}).
		Where("user_id = ? AND id IN ? AND is_read = ?", userID, deliveryIDs, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": readAt,
		})
	return result.RowsAffected, result.Error
}

func (r *GormNotificationRepo) MarkAllRead(ctx context.Context, userID string, readAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationDeliveryModel{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": readAt,
		})
	return result.RowsAffected, result.Error
}
