package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/costavn/notify-engine/internal/domain"
	"github.com/costavn/notify-engine/internal/observability"
	"github.com/costavn/notify-engine/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 50
)

// LiveHub is the live-push side of a broadcast. Implemented by stream.Hub.
type LiveHub interface {
	Broadcast(n *domain.Notification, recipientUserIDs []string) int
}

// BroadcastService persists notifications with their per-user fan-out and
// owns the read-state mutations.
type BroadcastService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	hub           LiveHub
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

func NewBroadcastService(
	notifications repository.NotificationRepository,
	users repository.UserRepository,
	hub LiveHub,
	logger *zap.Logger,
) (*BroadcastService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user repository is required")
	}
	if hub == nil {
		return nil, fmt.Errorf("live hub is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BroadcastService{
		notifications: notifications,
		users:         users,
		hub:           hub,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (s *BroadcastService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// CreateBroadcast persists the notification plus one unread delivery row per
// existing user (everyone gets the in-app copy, regardless of email
// preference), then pushes it to connected recipients.
func (s *BroadcastService) CreateBroadcast(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if n == nil {
		return nil, fmt.Errorf("%w: notification is required", domain.ErrValidation)
	}

	if strings.TrimSpace(n.ID) == "" {
		n.ID = uuid.NewString()
	}
	if !n.Type.IsValid() {
		n.Type = domain.TypeForAction(n.Action)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	userIDs, err := s.users.AllIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load user ids for fan-out: %w", err)
	}

	if err := s.notifications.CreateWithDeliveries(ctx, n, userIDs); err != nil {
		return nil, fmt.Errorf("failed to persist broadcast: %w", err)
	}

	s.metrics.IncBroadcastCreated()
	s.metrics.AddDeliveriesCreated(len(userIDs))

	pushed := s.hub.Broadcast(n, userIDs)
	s.metrics.AddStreamEventsPushed(pushed)

	s.logger.Info("broadcast created",
		zap.String("notificationId", n.ID),
		zap.String("action", n.Action.String()),
		zap.Int("deliveries", len(userIDs)),
		zap.Int("livePushes", pushed),
	)

	return n, nil
}

// ListForUser returns the user's delivery rows joined with their parent
// notifications, newest first.
func (s *BroadcastService) ListForUser(ctx context.Context, userID string, limit int) ([]domain.NotificationDelivery, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	return s.notifications.ListForUser(ctx, userID, limit)
}

// MarkRead flips the listed delivery rows of the user to read. Rows already
// read, rows of other users and unknown ids are untouched; an empty id list
// is a no-op.
func (s *BroadcastService) MarkRead(ctx context.Context, userID string, deliveryIDs []string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if len(deliveryIDs) == 0 {
		return nil
	}

	updated, err := s.notifications.MarkRead(ctx, userID, deliveryIDs, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark deliveries read: %w", err)
	}

	s.logger.Debug("deliveries marked read",
		zap.String("userId", userID),
		zap.Int("requested", len(deliveryIDs)),
		zap.Int64("updated", updated),
	)

	return nil
}

// MarkAllRead flips every unread delivery row of the user.
func (s *BroadcastService) MarkAllRead(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}

	updated, err := s.notifications.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark all deliveries read: %w", err)
	}

	s.logger.Debug("all deliveries marked read",
		zap.String("userId", userID),
		zap.Int64("updated", updated),
	)

	return nil
}
