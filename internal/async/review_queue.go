package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cargoclaro/glosa-sub000/internal/common"
	"github.com/cargoclaro/glosa-sub000/internal/expediente"
	"github.com/cargoclaro/glosa-sub000/internal/pipeline"
)

// Reviewer is satisfied by *pipeline.Processor.
type Reviewer interface {
	ReviewDirectory(ctx context.Context, dir string) (*pipeline.Outcome, error)
}

// Sink receives every finished job, successful or not.
type Sink func(ctx context.Context, job Job, out *pipeline.Outcome, err error)

// Observer is satisfied by *metrics.Collector.
type Observer interface {
	ObserveReview(status string, elapsed time.Duration)
	SetQueueDepth(n int)
}

type ReviewQueue struct {
	reviewer Reviewer
	sink     Sink
	observer Observer
	logger   *slog.Logger
	workers  int
	timeout  time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.Mutex
	closed  bool
	done    chan struct{}
	senders sync.WaitGroup
}

type Option func(*ReviewQueue)

func WithWorkers(n int) Option {
	return func(q *ReviewQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ReviewQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithReviewTimeout(d time.Duration) Option {
	return func(q *ReviewQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithSink(s Sink) Option {
	return func(q *ReviewQueue) { q.sink = s }
}

func WithObserver(o Observer) Option {
	return func(q *ReviewQueue) { q.observer = o }
}

func NewReviewQueue(reviewer Reviewer, logger *slog.Logger, opts ...Option) *ReviewQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ReviewQueue{
		reviewer: reviewer,
		logger:   logger,
		workers:  2,
		timeout:  15 * time.Minute,
		ch:       make(chan Job, 64),
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ReviewQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.depth()
					q.run(workerID, job)
				}
				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *ReviewQueue) run(workerID int, job Job) {
	start := time.Now()
	ctx, cancel := common.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}

	out, err := q.reviewer.ReviewDirectory(ctx, job.Dir)
	status := "ok"
	var ce *expediente.CompositionError
	switch {
	case errors.As(err, &ce):
		status = "rejected"
		q.logger.Warn("queue.review.rejected", "worker_id", workerID, "dir", job.Dir, "error", err)
	case err != nil:
		status = "failed"
		q.logger.Error("queue.review.failed", "worker_id", workerID, "dir", job.Dir, "error", err)
	default:
		q.logger.Info("queue.review.ok", "worker_id", workerID, "dir", job.Dir, "run_id", out.RunID,
			"elapsed_ms", time.Since(start).Milliseconds())
	}
	if q.observer != nil {
		q.observer.ObserveReview(status, time.Since(start))
	}
	if q.sink != nil {
		q.sink(ctx, job, out, err)
	}
}

func (q *ReviewQueue) depth() {
	if q.observer != nil {
		q.observer.SetQueueDepth(len(q.ch))
	}
}

// Enqueue blocks while the queue is full, until ctx is done or the queue shuts down.
func (q *ReviewQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Warn("queue.enqueue.closed", "dir", job.Dir)
		return ErrQueueClosed
	}
	// ch is closed only after every registered sender has returned.
	q.senders.Add(1)
	q.mu.Unlock()
	defer q.senders.Done()

	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
	default:
		q.logger.Warn("queue.full", "dir", job.Dir)
		select {
		case q.ch <- job:
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			q.logger.Warn("queue.enqueue.closed", "dir", job.Dir)
			return ErrQueueClosed
		}
	}
	q.depth()
	q.logger.Info("queue.enqueued", "dir", job.Dir)
	return nil
}

// Shutdown stops accepting jobs and waits for the queued ones to finish, or for ctx.
func (q *ReviewQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()
	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.ok")
	}
}
