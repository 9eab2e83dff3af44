package async

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargoclaro/glosa-sub000/internal/expediente"
	"github.com/cargoclaro/glosa-sub000/internal/pipeline"
)

type reviewerFunc func(ctx context.Context, dir string) (*pipeline.Outcome, error)

func (f reviewerFunc) ReviewDirectory(ctx context.Context, dir string) (*pipeline.Outcome, error) {
	return f(ctx, dir)
}

type statuses struct {
	mu  sync.Mutex
	got map[string]int
}

func (s *statuses) ObserveReview(status string, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got[status]++
}

func (s *statuses) SetQueueDepth(int) {}

func TestReviewQueueRunsEveryJob(t *testing.T) {
	reviewer := reviewerFunc(func(_ context.Context, dir string) (*pipeline.Outcome, error) {
		switch dir {
		case "dup":
			return &pipeline.Outcome{}, &expediente.CompositionError{Err: expediente.ErrDuplicatePedimento}
		case "broken":
			return nil, errors.New("load failed")
		}
		return &pipeline.Outcome{RunID: "run-" + dir}, nil
	})

	var (
		mu   sync.Mutex
		done []string
	)
	sink := func(_ context.Context, job Job, out *pipeline.Outcome, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.False(t, job.SubmittedAt.IsZero())
		if err == nil {
			assert.Equal(t, "run-"+job.Dir, out.RunID)
		}
		done = append(done, job.Dir)
	}
	obs := &statuses{got: map[string]int{}}

	q := NewReviewQueue(reviewer, nil, WithWorkers(2), WithQueueSize(1), WithSink(sink), WithObserver(obs))
	for _, dir := range []string{"a", "b", "dup", "broken", "c"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{Dir: dir}))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	q.Shutdown(ctx)

	sort.Strings(done)
	assert.Equal(t, []string{"a", "b", "broken", "c", "dup"}, done)
	assert.Equal(t, map[string]int{"ok": 3, "rejected": 1, "failed": 1}, obs.got)

	assert.ErrorIs(t, q.Enqueue(context.Background(), Job{Dir: "late"}), ErrQueueClosed)
	q.Shutdown(ctx)
}

func TestReviewQueueEnqueueHonorsContext(t *testing.T) {
	release := make(chan struct{})
	reviewer := reviewerFunc(func(context.Context, string) (*pipeline.Outcome, error) {
		<-release
		return &pipeline.Outcome{}, nil
	})
	q := NewReviewQueue(reviewer, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(release)
		q.Shutdown(context.Background())
	}()

	require.NoError(t, q.Enqueue(context.Background(), Job{Dir: "running"}))
	// Wait until the worker has taken the first job so the buffer is free again.
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{Dir: "buffered"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, Job{Dir: "blocked"}), context.DeadlineExceeded)
}

func TestReviewQueueShutdownReleasesBlockedEnqueue(t *testing.T) {
	release := make(chan struct{})
	reviewer := reviewerFunc(func(context.Context, string) (*pipeline.Outcome, error) {
		<-release
		return &pipeline.Outcome{}, nil
	})
	q := NewReviewQueue(reviewer, nil, WithWorkers(1), WithQueueSize(1))

	require.NoError(t, q.Enqueue(context.Background(), Job{Dir: "running"}))
	require.Eventually(t, func() bool { return len(q.ch) == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{Dir: "buffered"}))

	waiting := make(chan error, 1)
	go func() { waiting <- q.Enqueue(context.Background(), Job{Dir: "waiting"}) }()

	// A second full-queue caller is not serialized behind the first one.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.ErrorIs(t, q.Enqueue(ctx, Job{Dir: "impatient"}), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		q.Shutdown(context.Background())
	}()

	select {
	case err := <-waiting:
		assert.ErrorIs(t, err, ErrQueueClosed)
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue was not released by shutdown")
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("shutdown did not finish")
	}
}
