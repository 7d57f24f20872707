package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/costavn/notify-engine/internal/domain"
	"github.com/costavn/notify-engine/internal/observability"
	"github.com/costavn/notify-engine/internal/stream"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const defaultListLimit = 50

// BroadcastReader is the read-state surface of the broadcast service.
type BroadcastReader interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]domain.NotificationDelivery, error)
	MarkRead(ctx context.Context, userID string, deliveryIDs []string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// StreamHub manages live streaming connections. Implemented by stream.Hub.
type StreamHub interface {
	AddClient(userID string) (*stream.Client, error)
	RemoveClient(connectionID string)
}

type NotificationHandler struct {
	broadcasts BroadcastReader
	hub        StreamHub
	logger     *zap.Logger
	metrics    *observability.Metrics
}

func NewNotificationHandler(broadcasts BroadcastReader, hub StreamHub, logger *zap.Logger) (*NotificationHandler, error) {
	if broadcasts == nil {
		return nil, fmt.Errorf("broadcast reader is required")
	}
	if hub == nil {
		return nil, fmt.Errorf("stream hub is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationHandler{
		broadcasts: broadcasts,
		hub:        hub,
		logger:     logger,
	}, nil
}

func (h *NotificationHandler) SetMetrics(metrics *observability.Metrics) {
	if h == nil {
		return
	}
	h.metrics = metrics
}

func RegisterNotificationRoutes(router fiber.Router, h *NotificationHandler, jwtSecret string) error {
	if h == nil {
		return fmt.Errorf("notification handler is required")
	}

	group := router.Group("/notifications", AuthMiddleware(jwtSecret))
	group.Get("/", h.ListNotifications)
	group.Post("/read", h.MarkRead)
	group.Post("/read/all", h.MarkAllRead)
	group.Get("/stream", h.Stream)

	return nil
}

type markReadRequest struct {
	IDs []string `json:"ids"`
}

type deliveryResponse struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	EntityName *string         `json:"entityName,omitempty"`
	EntityID   *string         `json:"entityId,omitempty"`
	Action     string          `json:"action"`
	Type       string          `json:"type"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	IsRead     bool            `json:"isRead"`
	ReadAt     *time.Time      `json:"readAt,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	userID := AuthUserID(c)
	limit := c.QueryInt("limit", defaultListLimit)

	deliveries, err := h.broadcasts.ListForUser(c.Context(), userID, limit)
	if err != nil {
		return toHTTPError(err)
	}

	// The response body is the bare array, not an envelope.
	return c.Status(fiber.StatusOK).JSON(toDeliveryResponses(deliveries))
}

func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	var req markReadRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ids := make([]string, 0, len(req.IDs))
	for _, id := range req.IDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}

	if err := h.broadcasts.MarkRead(c.Context(), AuthUserID(c), ids); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ids": ids,
	})
}

func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	if err := h.broadcasts.MarkAllRead(c.Context(), AuthUserID(c)); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "ok",
	})
}

// Stream upgrades the request to a server-sent event stream and drains the
// connection's event channel onto the wire. The response never completes on
// its own: it ends when the client goes away or the hub shuts down.
func (h *NotificationHandler) Stream(c *fiber.Ctx) error {
	userID := AuthUserID(c)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing user")
	}

	client, err := h.hub.AddClient(userID)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	h.metrics.IncStreamConnections()
	logger := h.logger.With(
		zap.String("connectionId", client.ID),
		zap.String("userId", userID),
	)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.hub.RemoveClient(client.ID)
			h.metrics.DecStreamConnections()
			logger.Debug("stream connection closed")
		}()

		for frame := range client.Events {
			if _, err := w.Write(frame); err != nil {
				return
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))

	return nil
}

func toDeliveryResponses(deliveries []domain.NotificationDelivery) []deliveryResponse {
	responses := make([]deliveryResponse, 0, len(deliveries))
	for _, delivery := range deliveries {
		responses = append(responses, toDeliveryResponse(delivery))
	}
	return responses
}

func toDeliveryResponse(d domain.NotificationDelivery) deliveryResponse {
	resp := deliveryResponse{
		ID:        d.ID,
		IsRead:    d.IsRead,
		ReadAt:    d.ReadAt,
		CreatedAt: d.CreatedAt,
	}

	if d.Notification != nil {
		resp.Title = d.Notification.Title
		resp.Message = d.Notification.Message
		resp.EntityName = d.Notification.EntityName
		resp.EntityID = d.Notification.EntityID
		resp.Action = d.Notification.Action.String()
		resp.Type = d.Notification.Type.String()
		if len(d.Notification.Metadata) > 0 {
			resp.Metadata = json.RawMessage(d.Notification.Metadata)
		}
	}

	return resp
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	default:
		return err
	}
}
