package expediente

import (
	"errors"
	"fmt"
)

// Composition failures. They abort assembly of the whole expediente.
var (
	ErrDuplicatePedimento = errors.New("duplicate pedimento")
	ErrMissingPedimento   = errors.New("missing pedimento")
	ErrMissingCove        = errors.New("missing cove")
)

// CompositionError names the violated invariant and, for duplicates, the two sources.
type CompositionError struct {
	Err      error
	First    string
	Conflict string
}

func (e *CompositionError) Error() string {
	if e.First != "" {
		return fmt.Sprintf("expediente composition: %v (%s and %s)", e.Err, e.First, e.Conflict)
	}
	return fmt.Sprintf("expediente composition: %v", e.Err)
}

func (e *CompositionError) Unwrap() error { return e.Err }
