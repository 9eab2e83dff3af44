package pedimento

import (
	"errors"
	"fmt"
)

// ErrNoLineItems means none of the probed pages starts the partidas section.
var ErrNoLineItems = errors.New("no line items found")

// BoundaryNotFoundError is fatal to the extraction of one pedimento.
type BoundaryNotFoundError struct {
	Document string
	Probed   int
	Err      error
}

func (e *BoundaryNotFoundError) Error() string {
	return fmt.Sprintf("pedimento %s: boundary not found in first %d page(s): %v", e.Document, e.Probed, e.Err)
}

func (e *BoundaryNotFoundError) Unwrap() error { return e.Err }

// Stage names the sub-extraction a failure belongs to.
type Stage string

const (
	StagePrimaryHeader   Stage = "header.primary"
	StageRemainingHeader Stage = "header.remaining"
	StageCount           Stage = "partidas.count"
	StageItem            Stage = "partidas.item"
)

// Failure is one failed sub-extraction. Page is 0-based; Ordinal is 1-based and only set for
// StageItem.
type Failure struct {
	Stage   Stage
	Page    int
	Ordinal int
	Err     error
}

func (f Failure) Error() string {
	if f.Stage == StageItem {
		return fmt.Sprintf("%s page %d item %d: %v", f.Stage, f.Page+1, f.Ordinal, f.Err)
	}
	return fmt.Sprintf("%s page %d: %v", f.Stage, f.Page+1, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }
