package async

import (
	"context"
	"errors"
	"time"
)

var ErrQueueClosed = errors.New("queue is shutting down")

// Job asks for one expediente directory to be reviewed.
type Job struct {
	Dir         string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
