package expediente

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/split"
)

// Splitter materializes the segments of a container.
type Splitter interface {
	Split(container entity.Document, segments []entity.Segment) (split.Result, error)
}

// Builder folds classification results into an expediente, one at a time, in input order.
// It is not safe for concurrent use.
type Builder struct {
	splitter Splitter
	logger   *slog.Logger

	pedimento *entity.Document
	documents map[constants.DocumentType][]entity.Document
	issues    []Issue
	folded    int
}

func NewBuilder(splitter Splitter, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		splitter:  splitter,
		logger:    logger,
		documents: map[constants.DocumentType][]entity.Document{},
	}
}

// Fold adds one classification result. A second pedimento fails immediately.
func (b *Builder) Fold(ctx context.Context, res entity.ClassificationResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.folded++
	switch res.Kind() {
	case entity.KindSingle:
		t, _ := res.Type()
		return b.add(res.Document, t)
	case entity.KindSegmented:
		segs, _ := res.Segments()
		if b.splitter == nil {
			return fmt.Errorf("fold %s: segmented result without a splitter", res.Document.Name)
		}
		out, err := b.splitter.Split(res.Document, segs)
		if err != nil {
			b.logger.Warn("expediente.split_failed", "file", res.Document.Name, "error", err)
			b.issues = append(b.issues, Issue{File: res.Document.Name, Reason: err.Error()})
			return nil
		}
		for _, rerr := range out.Skipped {
			b.issues = append(b.issues, Issue{File: res.Document.Name, Reason: rerr.Error()})
		}
		for _, p := range out.Parts {
			if err := b.add(p.Document, p.Type); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("fold %s: unknown classification kind %v", res.Document.Name, res.Kind())
	}
}

// Skip records an input that never reached classification (e.g. a ClassificationError).
func (b *Builder) Skip(file string, err error) {
	b.issues = append(b.issues, Issue{File: file, Reason: err.Error()})
}

func (b *Builder) add(doc entity.Document, t constants.DocumentType) error {
	switch {
	case t.Discarded():
		b.logger.Debug("expediente.discarded", "doc", doc.Name, "type", t)
		return nil
	case !t.Valid():
		b.issues = append(b.issues, Issue{File: doc.Name, Reason: fmt.Sprintf("unknown document type %q", t)})
		return nil
	case t.Singleton():
		if b.pedimento != nil {
			return &CompositionError{Err: ErrDuplicatePedimento, First: b.pedimento.Name, Conflict: doc.Name}
		}
		d := doc
		b.pedimento = &d
		return nil
	default:
		b.documents[t] = append(b.documents[t], doc)
		return nil
	}
}

// Freeze checks the closing invariants (pedimento first, then COVE) and returns the expediente.
func (b *Builder) Freeze() (*Expediente, error) {
	if b.pedimento == nil {
		return nil, &CompositionError{Err: ErrMissingPedimento}
	}
	if len(b.documents[constants.Cove]) == 0 {
		return nil, &CompositionError{Err: ErrMissingCove}
	}
	docs := make(map[constants.DocumentType][]entity.Document, len(b.documents))
	for t, ds := range b.documents {
		cp := make([]entity.Document, len(ds))
		copy(cp, ds)
		docs[t] = cp
	}
	e := &Expediente{
		ID:        uuid.New(),
		pedimento: *b.pedimento,
		documents: docs,
		issues:    append([]Issue(nil), b.issues...),
	}
	b.logger.Info("expediente.assembled",
		"id", e.ID.String(),
		"inputs", b.folded,
		"types", len(e.Types()),
		"coves", e.Count(constants.Cove),
		"issues", len(e.issues),
	)
	return e, nil
}

// Assemble folds results in order and freezes the expediente.
func Assemble(ctx context.Context, results []entity.ClassificationResult, splitter Splitter, logger *slog.Logger) (*Expediente, error) {
	b := NewBuilder(splitter, logger)
	for _, r := range results {
		if err := b.Fold(ctx, r); err != nil {
			return nil, err
		}
	}
	return b.Freeze()
}
