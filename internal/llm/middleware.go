package llm

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/semaphore"
)

// Observer receives one observation per adjudication.
type Observer interface {
	ObserveAdjudication(kind, outcome string, elapsed time.Duration)
}

type observed struct {
	next Adjudicator
	obs  Observer
}

// Observe decorates adj so every call is reported to obs.
func Observe(adj Adjudicator, obs Observer) Adjudicator {
	if obs == nil {
		return adj
	}
	return &observed{next: adj, obs: obs}
}

func (o *observed) Adjudicate(ctx context.Context, req Request) (json.RawMessage, error) {
	start := time.Now()
	raw, err := o.next.Adjudicate(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	o.obs.ObserveAdjudication(req.Kind, outcome, time.Since(start))
	return raw, err
}

type limited struct {
	next Adjudicator
	sem  *semaphore.Weighted
}

// Limit bounds the number of in-flight adjudications across all callers sharing the result.
func Limit(adj Adjudicator, n int) Adjudicator {
	if n <= 0 {
		return adj
	}
	return &limited{next: adj, sem: semaphore.NewWeighted(int64(n))}
}

func (l *limited) Adjudicate(ctx context.Context, req Request) (json.RawMessage, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer l.sem.Release(1)
	return l.next.Adjudicate(ctx, req)
}
