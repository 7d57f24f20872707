package domain

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Action represents the kind of administrative mutation a notification describes.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionOther  Action = "other"
)

func (a Action) String() string { return string(a) }

func (a Action) IsValid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionOther:
		return true
	}
	return false
}

func ParseActionFromString(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	if !a.IsValid() {
		return "", fmt.Errorf("%w: invalid action %q", ErrValidation, s)
	}
	return a, nil
}

// Type represents the severity shown to the client for a notification.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
)

func (t Type) String() string { return string(t) }

func (t Type) IsValid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError:
		return true
	}
	return false
}

func ParseTypeFromString(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid type %q", ErrValidation, s)
	}
	return t, nil
}

// TypeForAction maps an admin action to the severity its broadcast carries.
func TypeForAction(a Action) Type {
	switch a {
	case ActionCreate:
		return TypeSuccess
	case ActionDelete:
		return TypeWarning
	default:
		return TypeInfo
	}
}

// Notification is an immutable broadcast event created once per admin action.
type Notification struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Message     string         `json:"message"`
	EntityName  *string        `json:"entityName,omitempty"`
	EntityID    *string        `json:"entityId,omitempty"`
	Action      Action         `json:"action"`
	Type        Type           `json:"type"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	CreatedByID *string        `json:"createdById,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if !n.Action.IsValid() {
		return fmt.Errorf("%w: invalid action %q", ErrValidation, n.Action)
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("%w: invalid type %q", ErrValidation, n.Type)
	}
	return nil
}

// NotificationDelivery is one user's read/unread copy of a notification.
// is_read only ever transitions false to true; read_at is set exactly when
// the transition happens.
type NotificationDelivery struct {
	ID             string     `json:"id"`
	NotificationID string     `json:"notificationId"`
	UserID         string     `json:"userId"`
	IsRead         bool       `json:"isRead"`
	ReadAt         *time.Time `json:"readAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`

	Notification *Notification `json:"notification,omitempty"`
}
