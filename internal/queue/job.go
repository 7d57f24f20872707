package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/costavn/notify-engine/internal/domain"
)

// Detail is one label/value line shown in the email body, in caller order.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value,omitempty"`
}

// ActionJob describes one queued admin action awaiting its email digest.
// Jobs live only in process memory and are lost on restart.
type ActionJob struct {
	ID         string        `json:"id"`
	Action     domain.Action `json:"action"`
	EntityName string        `json:"entityName"`
	ActorEmail string        `json:"actorEmail,omitempty"`
	ActorID    string        `json:"actorId,omitempty"`
	EntityID   string        `json:"entityId,omitempty"`
	Details    []Detail      `json:"details,omitempty"`
	QueuedAt   time.Time     `json:"queuedAt"`
}

func (j ActionJob) Validate() error {
	if !j.Action.IsValid() {
		return fmt.Errorf("invalid action %q", j.Action)
	}
	if strings.TrimSpace(j.EntityName) == "" {
		return fmt.Errorf("entityName is required")
	}
	return nil
}
