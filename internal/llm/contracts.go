package llm

import (
	"context"
	"encoding/json"
)

// Evidence is one labelled block of context handed to the adjudicator.
type Evidence struct {
	Label   string
	Content string
}

// Request is a single adjudication: natural-language instructions, labelled evidence and the
// JSON schema the answer must conform to.
type Request struct {
	Kind         string // low-cardinality operation label, e.g. "pedimento.item"
	Name         string // unique name for logs, e.g. "pedimento.item.p3.o2"
	Instructions string
	Evidence     []Evidence
	Schema       map[string]any
}

// Adjudicator is the external semantic service used for classification, structured extraction
// and validation judgments. Implementations return the raw JSON answer; callers validate it.
type Adjudicator interface {
	Adjudicate(ctx context.Context, req Request) (json.RawMessage, error)
}

// AdjudicatorFunc adapts a function to Adjudicator.
type AdjudicatorFunc func(ctx context.Context, req Request) (json.RawMessage, error)

func (f AdjudicatorFunc) Adjudicate(ctx context.Context, req Request) (json.RawMessage, error) {
	return f(ctx, req)
}
