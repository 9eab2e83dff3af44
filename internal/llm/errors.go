package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind distinguishes why an adjudication failed.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable"
	KindMalformed   ErrorKind = "malformed"
	KindTimeout     ErrorKind = "timeout"
)

// ErrAdjudication matches every *AdjudicationError via errors.Is.
var ErrAdjudication = errors.New("adjudication failed")

// AdjudicationError is the only error type adjudication helpers return.
type AdjudicationError struct {
	Op   string
	Kind ErrorKind
	Err  error
}

func (e *AdjudicationError) Error() string {
	return fmt.Sprintf("adjudicate %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *AdjudicationError) Unwrap() error { return e.Err }

func (e *AdjudicationError) Is(target error) bool { return target == ErrAdjudication }

// AsAdjudicationError wraps err unless it already is an *AdjudicationError.
// Context deadlines and transport timeouts become KindTimeout; everything else is
// KindUnavailable.
func AsAdjudicationError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AdjudicationError
	if errors.As(err, &ae) {
		return ae
	}
	return &AdjudicationError{Op: op, Kind: KindOf(err), Err: err}
}

// KindOf classifies err without wrapping it.
func KindOf(err error) ErrorKind {
	var ae *AdjudicationError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var te interface{ Timeout() bool }
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &te) && te.Timeout()) {
		return KindTimeout
	}
	return KindUnavailable
}

func malformed(op string, err error) error {
	return &AdjudicationError{Op: op, Kind: KindMalformed, Err: err}
}
