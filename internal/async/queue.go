// Package async runs extraction jobs on a bounded pool of background workers.
package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Job identifies a persisted extract_job row to process.
type Job struct {
	ID          uuid.UUID
	SubmittedAt time.Time
	TraceID     string
}

var (
	// ErrQueueClosed is returned by Enqueue after Shutdown has started.
	ErrQueueClosed = errors.New("job queue is shutting down")
	// ErrQueueFull is returned by Enqueue when the buffer is at capacity.
	ErrQueueFull = errors.New("job queue is full")
)

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// JobProcessor is what a worker calls for each job.
type JobProcessor interface {
	ProcessJob(ctx context.Context, jobID uuid.UUID) error
}
