package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/costavn/notify-engine/internal/domain"
	"github.com/costavn/notify-engine/internal/mail"
	"github.com/costavn/notify-engine/internal/observability"
	"github.com/costavn/notify-engine/internal/provider"
	"github.com/costavn/notify-engine/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const broadcastTimeout = 10 * time.Second

// ActionPayload is what business services hand over when an admin action
// should be announced. Queueing is fire-and-forget: the caller's mutation has
// already committed and nothing here may fail it.
type ActionPayload struct {
	Action     domain.Action
	EntityName string
	ActorEmail string
	ActorID    string
	EntityID   string
	Details    []queue.Detail
}

// Broadcaster is the in-app side of an admin action. Implemented by
// BroadcastService.
type Broadcaster interface {
	CreateBroadcast(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
}

// RecipientSource yields the email digest recipients. Implemented by
// RecipientResolver.
type RecipientSource interface {
	RecipientEmails(ctx context.Context) ([]string, error)
}

// ActionService accepts admin-action descriptors and drives both side
// effects: the queued email digest and the persisted broadcast.
type ActionService struct {
	queue      *queue.ActionQueue
	recipients RecipientSource
	mailer     provider.Mailer
	broadcasts Broadcaster
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

func NewActionService(
	actionQueue *queue.ActionQueue,
	recipients RecipientSource,
	mailer provider.Mailer,
	broadcasts Broadcaster,
	logger *zap.Logger,
) (*ActionService, error) {
	if actionQueue == nil {
		return nil, fmt.Errorf("action queue is required")
	}
	if recipients == nil {
		return nil, fmt.Errorf("recipient source is required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer is required")
	}
	if broadcasts == nil {
		return nil, fmt.Errorf("broadcaster is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ActionService{
		queue:      actionQueue,
		recipients: recipients,
		mailer:     mailer,
		broadcasts: broadcasts,
		logger:     logger,
		now:        time.Now,
	}, nil
}

func (s *ActionService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
	s.queue.SetDropCallback(metrics.IncActionDropped)
}

// Queue registers an admin action and returns before any I/O happens. The
// email job goes to the in-process queue; the broadcast runs on its own
// goroutine. The two side effects succeed or fail independently and neither
// outcome reaches the caller.
func (s *ActionService) Queue(payload ActionPayload) {
	job := queue.ActionJob{
		ID:         uuid.NewString(),
		Action:     payload.Action,
		EntityName: strings.TrimSpace(payload.EntityName),
		ActorEmail: strings.TrimSpace(payload.ActorEmail),
		ActorID:    strings.TrimSpace(payload.ActorID),
		EntityID:   strings.TrimSpace(payload.EntityID),
		Details:    payload.Details,
		QueuedAt:   s.now().UTC(),
	}

	accepted, err := s.queue.Enqueue(job)
	if err != nil {
		s.logger.Error("rejecting admin action",
			zap.String("jobId", job.ID),
			zap.Error(err),
		)
		return
	}
	if accepted {
		s.metrics.IncActionQueued()
	}

	go s.broadcast(job)
}

// Start consumes the action queue until the context is cancelled. Jobs still
// buffered at shutdown are dropped, per the best-effort policy.
func (s *ActionService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.logger.Info("action worker started")

	for {
		select {
		case <-ctx.Done():
			if pending := s.queue.Len(); pending > 0 {
				s.logger.Warn("action worker stopping, dropping pending jobs",
					zap.Int("pending", pending),
				)
			}
			return nil
		case job, ok := <-s.queue.Jobs():
			if !ok {
				return nil
			}
			s.process(ctx, job)
		}
	}
}

// process sends one digest email. Every failure is terminal here: logged,
// job discarded, no retry.
func (s *ActionService) process(ctx context.Context, job queue.ActionJob) {
	ctx = observability.WithCorrelationID(ctx, job.ID)
	logger := observability.WithContextLogger(s.logger, ctx)

	recipients, err := s.recipients.RecipientEmails(ctx)
	if err != nil {
		logger.Error("failed to resolve email recipients", zap.Error(err))
		s.metrics.IncEmailFailed()
		return
	}
	if len(recipients) == 0 {
		logger.Info("no email recipients opted in, skipping digest",
			zap.String("action", job.Action.String()),
			zap.String("entityName", job.EntityName),
		)
		return
	}

	html, text, err := mail.Render(job)
	if err != nil {
		logger.Error("failed to render digest email", zap.Error(err))
		s.metrics.IncEmailFailed()
		return
	}

	msg := provider.Message{
		To:      recipients,
		Subject: mail.Subject(job),
		HTML:    html,
		Text:    text,
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		logger.Error("digest email send failed",
			zap.String("action", job.Action.String()),
			zap.String("entityName", job.EntityName),
			zap.Int("recipients", len(recipients)),
			zap.Error(err),
		)
		s.metrics.IncEmailFailed()
		return
	}

	s.metrics.IncEmailSent()
	logger.Info("digest email sent",
		zap.String("action", job.Action.String()),
		zap.String("entityName", job.EntityName),
		zap.Int("recipients", len(recipients)),
	)
}

// broadcast persists the in-app notification. Errors stop here: the
// triggering business mutation has already committed.
func (s *ActionService) broadcast(job queue.ActionJob) {
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()
	ctx = observability.WithCorrelationID(ctx, job.ID)

	n := notificationFromJob(job)
	if _, err := s.broadcasts.CreateBroadcast(ctx, n); err != nil {
		observability.WithContextLogger(s.logger, ctx).Error("broadcast failed",
			zap.String("action", job.Action.String()),
			zap.String("entityName", job.EntityName),
			zap.Error(err),
		)
	}
}

func notificationFromJob(job queue.ActionJob) *domain.Notification {
	n := &domain.Notification{
		Title:     mail.Subject(job),
		Message:   detailSummary(job),
		Action:    job.Action,
		Type:      domain.TypeForAction(job.Action),
		CreatedAt: job.QueuedAt,
	}

	if job.EntityName != "" {
		entityName := job.EntityName
		n.EntityName = &entityName
	}
	if job.EntityID != "" {
		entityID := job.EntityID
		n.EntityID = &entityID
	}
	if job.ActorID != "" {
		actorID := job.ActorID
		n.CreatedByID = &actorID
	}

	if metadata := jobMetadata(job); metadata != nil {
		n.Metadata = metadata
	}

	return n
}

func detailSummary(job queue.ActionJob) string {
	parts := make([]string, 0, len(job.Details)+1)
	for _, d := range job.Details {
		if d.Value == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", d.Label, d.Value))
	}
	if job.ActorEmail != "" {
		parts = append(parts, fmt.Sprintf("Người thực hiện: %s", job.ActorEmail))
	}
	if len(parts) == 0 {
		return mail.Subject(job)
	}
	return strings.Join(parts, "; ")
}

func jobMetadata(job queue.ActionJob) datatypes.JSON {
	meta := map[string]any{}
	if job.ActorEmail != "" {
		meta["actorEmail"] = job.ActorEmail
	}
	if len(job.Details) > 0 {
		meta["details"] = job.Details
	}
	if len(meta) == 0 {
		return nil
	}

	raw, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
