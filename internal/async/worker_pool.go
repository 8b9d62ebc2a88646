package async

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/invoice-extract/internal/common"
)

type WorkerPool struct {
	proc    JobProcessor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	processed atomic.Int64
	failed    atomic.Int64
}

type Option func(*WorkerPool)

func WithWorkers(n int) Option {
	return func(q *WorkerPool) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *WorkerPool) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *WorkerPool) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// NewWorkerPool starts the workers immediately.
func NewWorkerPool(proc JobProcessor, logger *slog.Logger, opts ...Option) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	q := &WorkerPool{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *WorkerPool) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)

				for job := range q.ch {
					q.run(workerID, job)
				}

				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *WorkerPool) run(workerID int, job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	defer func() {
		if r := recover(); r != nil {
			q.failed.Add(1)
			q.logger.Error("queue.job.panic", "worker_id", workerID, "job_id", job.ID, "panic", r)
		}
	}()

	err := q.proc.ProcessJob(ctx, job.ID)
	if err != nil {
		q.failed.Add(1)
		q.logger.Error("queue.job.failed", "worker_id", workerID, "job_id", job.ID, "error", err,
			"waited_ms", waited(job))
		return
	}
	q.processed.Add(1)
	q.logger.Info("queue.job.done", "worker_id", workerID, "job_id", job.ID, "waited_ms", waited(job))
}

func waited(job Job) int64 {
	if job.SubmittedAt.IsZero() {
		return 0
	}
	return time.Since(job.SubmittedAt).Milliseconds()
}

// Enqueue never blocks: a full buffer returns ErrQueueFull so HTTP callers can
// answer 503 instead of holding the request open.
func (q *WorkerPool) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "job_id", job.ID)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Info("queue.enqueue", "job_id", job.ID, "depth", len(q.ch))
		return nil
	default:
		q.logger.Warn("queue.enqueue.full", "job_id", job.ID, "capacity", cap(q.ch))
		return ErrQueueFull
	}
}

// Stats returns counts of finished jobs and the current buffer depth.
func (q *WorkerPool) Stats() (processed, failed int64, depth int) {
	return q.processed.Load(), q.failed.Load(), len(q.ch)
}

// Shutdown stops accepting jobs and waits for queued ones to drain or ctx to end.
func (q *WorkerPool) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
