package stream

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/costavn/notify-engine/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultHeartbeat = 25 * time.Second
	clientBufferSize = 16

	heartbeatFrame = ": heartbeat\n\n"
)

// Client is one open streaming connection. The transport handler drains
// Events and writes each frame to the wire; the channel is closed when the
// connection is deregistered.
type Client struct {
	ID     string
	UserID string
	Events <-chan []byte

	events chan []byte
	done   chan struct{}
	once   sync.Once
}

// Hub keeps the registry of open streaming connections and pushes broadcast
// notifications to connected recipients. Users without an open connection
// receive nothing live and reconcile on their next list call.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]*Client
	heartbeat time.Duration
	logger    *zap.Logger
	closed    bool
}

func NewHub(heartbeat time.Duration, logger *zap.Logger) *Hub {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		clients:   make(map[string]*Client),
		heartbeat: heartbeat,
		logger:    logger,
	}
}

// AddClient registers a connection for the user, queues the handshake event
// and starts the connection's heartbeat.
func (h *Hub) AddClient(userID string) (*Client, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}

	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		events: make(chan []byte, clientBufferSize),
		done:   make(chan struct{}),
	}
	c.Events = c.events

	handshake := fmt.Sprintf("event: connected\ndata: {\"connectionId\":%q}\n\n", c.ID)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, fmt.Errorf("hub is shut down")
	}
	h.clients[c.ID] = c
	c.events <- []byte(handshake)
	h.mu.Unlock()

	go h.heartbeatLoop(c)

	h.logger.Debug("stream client connected",
		zap.String("connectionId", c.ID),
		zap.String("userId", userID),
	)

	return c, nil
}

// RemoveClient deregisters a connection. Safe to call more than once.
func (h *Hub) RemoveClient(connectionID string) {
	h.mu.Lock()
	c, ok := h.clients[connectionID]
	if ok {
		delete(h.clients, connectionID)
		c.once.Do(func() {
			close(c.done)
			close(c.events)
		})
	}
	h.mu.Unlock()

	if ok {
		h.logger.Debug("stream client disconnected",
			zap.String("connectionId", connectionID),
			zap.String("userId", c.UserID),
		)
	}
}

// Broadcast pushes the notification to every open connection of the given
// recipients. Writes are non-blocking: a connection whose buffer is full
// misses the frame instead of stalling the loop. Returns the number of
// connections the event was queued for.
func (h *Hub) Broadcast(n *domain.Notification, recipientUserIDs []string) int {
	if n == nil || len(recipientUserIDs) == 0 {
		return 0
	}

	frame, err := notificationFrame(n)
	if err != nil {
		h.logger.Error("failed to serialize stream event",
			zap.String("notificationId", n.ID),
			zap.Error(err),
		)
		return 0
	}

	recipients := make(map[string]struct{}, len(recipientUserIDs))
	for _, id := range recipientUserIDs {
		recipients[id] = struct{}{}
	}

	pushed := 0
	h.mu.RLock()
	for _, c := range h.clients {
		if _, ok := recipients[c.UserID]; !ok {
			continue
		}
		select {
		case c.events <- frame:
			pushed++
		default:
			h.logger.Warn("stream client buffer full, dropping event",
				zap.String("connectionId", c.ID),
				zap.String("userId", c.UserID),
			)
		}
	}
	h.mu.RUnlock()

	return pushed
}

// ConnectionCount returns the number of currently open connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown deregisters every connection and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	for id, c := range h.clients {
		delete(h.clients, id)
		c.once.Do(func() {
			close(c.done)
			close(c.events)
		})
	}
	h.mu.Unlock()
}

// heartbeatLoop queues an idle comment at a fixed interval so intermediary
// proxies keep the connection open. A client that cannot take the heartbeat
// has stopped draining and is deregistered.
func (h *Hub) heartbeatLoop(c *Client) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if !h.trySend(c.ID, []byte(heartbeatFrame)) {
				h.RemoveClient(c.ID)
				return
			}
		}
	}
}

// trySend queues a frame if the connection is still registered. Sends happen
// under the read lock and channel closes under the write lock, so a send can
// never hit a closed channel.
func (h *Hub) trySend(connectionID string, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[connectionID]
	if !ok {
		return false
	}

	select {
	case c.events <- frame:
		return true
	default:
		return false
	}
}

// streamEvent is the client-facing notification shape.
type streamEvent struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Message    string          `json:"message"`
	EntityName *string         `json:"entityName"`
	EntityID   *string         `json:"entityId"`
	Action     string          `json:"action"`
	Type       string          `json:"type"`
	Metadata   json.RawMessage `json:"metadata"`
	CreatedAt  time.Time       `json:"createdAt"`
	IsRead     bool            `json:"isRead"`
	ReadAt     *time.Time      `json:"readAt"`
}

func notificationFrame(n *domain.Notification) ([]byte, error) {
	event := streamEvent{
		ID:         n.ID,
		Title:      n.Title,
		Message:    n.Message,
		EntityName: n.EntityName,
		EntityID:   n.EntityID,
		Action:     n.Action.String(),
		Type:       n.Type.String(),
		CreatedAt:  n.CreatedAt,
		IsRead:     false,
		ReadAt:     nil,
	}
	if len(n.Metadata) > 0 {
		event.Metadata = json.RawMessage(n.Metadata)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return []byte(fmt.Sprintf("data: %s\n\n", payload)), nil
}
