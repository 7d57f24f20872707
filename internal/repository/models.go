package repository

import (
	"time"

	"github.com/costavn/notify-engine/internal/domain"
	"gorm.io/datatypes"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID          string         `gorm:"type:uuid;primaryKey"`
	Title       string         `gorm:"type:varchar(255);not null"`
	Message     string         `gorm:"type:text;not null"`
	EntityName  *string        `gorm:"type:varchar(100)"`
	EntityID    *string        `gorm:"type:varchar(64)"`
	Action      domain.Action  `gorm:"type:varchar(10);not null"`
	Type        domain.Type    `gorm:"type:varchar(10);not null"`
	Metadata    datatypes.JSON `gorm:"type:jsonb"`
	CreatedByID *string        `gorm:"type:varchar(64)"`
	CreatedAt   time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// NotificationDeliveryModel is the persistence model for notification_deliveries.
type NotificationDeliveryModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	NotificationID string `gorm:"type:uuid;not null"`
	UserID         string `gorm:"type:uuid;not null"`
	IsRead         bool   `gorm:"not null;default:false"`
	ReadAt         *time.Time
	CreatedAt      time.Time

	Notification *NotificationModel `gorm:"foreignKey:NotificationID"`
}

func (NotificationDeliveryModel) TableName() string {
	return "notification_deliveries"
}

// UserModel is the persistence model for the users table.
type UserModel struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Email       string `gorm:"type:varchar(255);not null;uniqueIndex"`
	NotifyEmail bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:          n.ID,
		Title:       n.Title,
		Message:     n.Message,
		EntityName:  n.EntityName,
		EntityID:    n.EntityID,
		Action:      n.Action,
		Type:        n.Type,
		Metadata:    n.Metadata,
		CreatedByID: n.CreatedByID,
		CreatedAt:   n.CreatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:          m.ID,
		Title:       m.Title,
		Message:     m.Message,
		EntityName:  m.EntityName,
		EntityID:    m.EntityID,
		Action:      m.Action,
		Type:        m.Type,
		Metadata:    m.Metadata,
		CreatedByID: m.CreatedByID,
		CreatedAt:   m.CreatedAt,
	}
}

func deliveryModelToDomain(m *NotificationDeliveryModel) *domain.NotificationDelivery {
	if m == nil {
		return nil
	}

	return &domain.NotificationDelivery{
		ID:             m.ID,
		NotificationID: m.NotificationID,
		UserID:         m.UserID,
		IsRead:         m.IsRead,
		ReadAt:         m.ReadAt,
		CreatedAt:      m.CreatedAt,
		Notification:   notificationModelToDomain(m.Notification),
	}
}

func userModelToDomain(m *UserModel) *domain.User {
	if m == nil {
		return nil
	}

	return &domain.User{
		ID:          m.ID,
		Email:       m.Email,
		NotifyEmail: m.NotifyEmail,
		CreatedAt:   m.CreatedAt,
	}
}
