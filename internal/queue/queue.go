package queue

import (
	"fmt"

	"go.uber.org/zap"
)

const defaultCapacity = 1024

// ActionQueue is the in-process FIFO of pending admin-action jobs. One
// consumer goroutine reads Jobs(); producers never block: when the buffer is
// full the job is dropped and counted, which is acceptable under the
// best-effort at-most-once delivery policy.
type ActionQueue struct {
	jobs   chan ActionJob
	logger *zap.Logger
	onDrop func()
}

func NewActionQueue(capacity int, logger *zap.Logger) *ActionQueue {
	if capacity < 1 {
		capacity = defaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ActionQueue{
		jobs:   make(chan ActionJob, capacity),
		logger: logger,
	}
}

// SetDropCallback registers a hook invoked whenever a job is dropped.
func (q *ActionQueue) SetDropCallback(fn func()) {
	if q == nil {
		return
	}
	q.onDrop = fn
}

// Enqueue appends a job without blocking. It reports whether the job was
// accepted; a saturated queue drops the job.
func (q *ActionQueue) Enqueue(job ActionJob) (bool, error) {
	if q == nil || q.jobs == nil {
		return false, fmt.Errorf("queue is not initialized")
	}
	if err := job.Validate(); err != nil {
		return false, fmt.Errorf("invalid action job: %w", err)
	}

	select {
	case q.jobs <- job:
		return true, nil
	default:
		q.logger.Warn("action queue full, dropping job",
			zap.String("action", job.Action.String()),
			zap.String("entityName", job.EntityName),
		)
		if q.onDrop != nil {
			q.onDrop()
		}
		return false, nil
	}
}

// Jobs exposes the consumer side of the queue.
func (q *ActionQueue) Jobs() <-chan ActionJob {
	return q.jobs
}

// Len returns the number of jobs currently buffered.
func (q *ActionQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.jobs)
}
