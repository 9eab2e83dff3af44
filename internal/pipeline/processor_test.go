package pipeline

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/expediente"
	"github.com/cargoclaro/glosa-sub000/internal/extract"
	"github.com/cargoclaro/glosa-sub000/internal/llm"
	"github.com/cargoclaro/glosa-sub000/internal/pedimento"
	"github.com/cargoclaro/glosa-sub000/internal/split"
	"github.com/cargoclaro/glosa-sub000/internal/validation"
)

type passEngine struct{}

func (passEngine) PageCount([]byte) (int, error) { return 1, nil }
func (passEngine) Extract(data []byte, _ entity.PageRange) ([]byte, error) {
	return data, nil
}

// labels classifies by file name after a random delay, so completions arrive out of order.
type labels struct {
	types  map[string]constants.DocumentType
	failed map[string]bool
	calls  atomic.Int32
}

func (l *labels) Classify(ctx context.Context, doc entity.Document) (entity.ClassificationResult, error) {
	l.calls.Add(1)
	select {
	case <-time.After(time.Duration(rand.Intn(15)) * time.Millisecond):
	case <-ctx.Done():
		return entity.ClassificationResult{}, ctx.Err()
	}
	if l.failed[doc.Name] {
		return entity.ClassificationResult{}, errors.New("unreadable")
	}
	return entity.Single(doc, l.types[doc.Name]), nil
}

type pedimentoFunc func(ctx context.Context, doc entity.Document) (*pedimento.Result, error)

func (f pedimentoFunc) Extract(ctx context.Context, doc entity.Document) (*pedimento.Result, error) {
	return f(ctx, doc)
}

type documentsFunc func(ctx context.Context, src extract.Source) (extract.Documents, []extract.Failure)

func (f documentsFunc) All(ctx context.Context, src extract.Source) (extract.Documents, []extract.Failure) {
	return f(ctx, src)
}

func pdf(name string) entity.Document {
	return entity.Document{Name: name, Format: constants.PDF, PageCount: 1, Data: []byte(name)}
}

func validJudge() validation.Judge {
	return validation.JudgeFunc(func(context.Context, *validation.Spec) (validation.Judgment, error) {
		return validation.Judgment{Analysis: "ok", IsValid: true}, nil
	})
}

func stages(cls *labels) Stages {
	return Stages{
		Classifier: cls,
		Splitter:   split.New(passEngine{}, nil),
		Pedimento: pedimentoFunc(func(_ context.Context, doc entity.Document) (*pedimento.Result, error) {
			return &pedimento.Result{
				Pedimento: entity.Pedimento{
					Header:   entity.PedimentoHeader{PrimaryHeader: entity.PrimaryHeader{Number: "24 43 3421 4001234", Operation: "IMP"}},
					Partidas: []entity.Partida{{Sequence: "1", Fraction: "84713001"}},
				},
				Boundary: 1,
				Failures: []pedimento.Failure{{Stage: pedimento.StageItem, Page: 2, Ordinal: 1, Err: llm.ErrAdjudication}},
			}, nil
		}),
		Documents: documentsFunc(func(_ context.Context, src extract.Source) (extract.Documents, []extract.Failure) {
			var out extract.Documents
			for _, d := range src.Documents(constants.Cove) {
				out.Coves = append(out.Coves, entity.Cove{Source: d.Name, Number: "COVE214KNPVU4"})
			}
			return out, []extract.Failure{{Document: "factura.pdf", Type: constants.Invoice, Err: llm.ErrAdjudication}}
		}),
		Validator: validation.NewOrchestrator(validJudge(), nil, nil),
	}
}

func TestReviewEndToEnd(t *testing.T) {
	cls := &labels{
		types: map[string]constants.DocumentType{
			"pedimento.pdf": constants.Pedimento,
			"cove.pdf":      constants.Cove,
			"factura.pdf":   constants.Invoice,
			"foto.pdf":      constants.Other,
		},
		failed: map[string]bool{"borroso.pdf": true},
	}
	docs := []entity.Document{pdf("foto.pdf"), pdf("pedimento.pdf"), pdf("borroso.pdf"), pdf("cove.pdf"), pdf("factura.pdf")}

	out, err := NewProcessor(stages(cls), nil).Review(context.Background(), docs)
	require.NoError(t, err)

	require.Len(t, out.Classifications, 5)
	assert.Equal(t, "foto.pdf", out.Classifications[0].File)
	assert.Equal(t, string(constants.Pedimento), out.Classifications[1].Type)
	assert.Equal(t, "unreadable", out.Classifications[2].Error)

	assert.Equal(t, 1, out.Expediente.Count(constants.Cove))
	assert.Equal(t, 1, out.Expediente.Count(constants.Invoice))
	require.Len(t, out.Expediente.Issues(), 1)

	require.NotNil(t, out.Pedimento)
	assert.Len(t, out.Pedimento.Partidas, 1)
	require.Len(t, out.Failures, 2)
	assert.Equal(t, "partidas.item.p3.o1", out.Failures[0].Stage)
	assert.Equal(t, "factura.pdf", out.Failures[1].Document)

	require.NotNil(t, out.Report)
	assert.Equal(t, out.RunID, out.Report.RunID)
	sec, ok := out.Report.Section(validation.SectionExtraction)
	require.True(t, ok)
	require.Len(t, sec.Validations, 2)
	for _, v := range sec.Validations {
		assert.Equal(t, constants.OutcomeUnverified, v.Outcome)
	}
	assert.Positive(t, out.Report.Summary().Passed)
}

func TestReviewStopsOnDuplicatePedimento(t *testing.T) {
	cls := &labels{types: map[string]constants.DocumentType{
		"a.pdf": constants.Pedimento,
		"b.pdf": constants.Pedimento,
		"c.pdf": constants.Cove,
	}}
	docs := []entity.Document{pdf("a.pdf"), pdf("b.pdf"), pdf("c.pdf")}
	st := stages(cls)
	st.Pedimento = pedimentoFunc(func(context.Context, entity.Document) (*pedimento.Result, error) {
		t.Error("extraction must not start after a composition failure")
		return nil, errors.New("unreachable")
	})

	out, err := NewProcessor(st, nil, WithClassifyConcurrency(1)).Review(context.Background(), docs)
	var ce *expediente.CompositionError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, expediente.ErrDuplicatePedimento)
	assert.Nil(t, out.Expediente)
	assert.Nil(t, out.Report)
	assert.Len(t, out.Classifications, 2)
}

func TestReviewMissingCove(t *testing.T) {
	cls := &labels{types: map[string]constants.DocumentType{"ped.pdf": constants.Pedimento}}
	_, err := NewProcessor(stages(cls), nil).Review(context.Background(), []entity.Document{pdf("ped.pdf")})
	assert.ErrorIs(t, err, expediente.ErrMissingCove)
}

func TestReviewWithoutBoundaryStillReports(t *testing.T) {
	cls := &labels{types: map[string]constants.DocumentType{
		"ped.pdf":  constants.Pedimento,
		"cove.pdf": constants.Cove,
	}}
	st := stages(cls)
	st.Pedimento = pedimentoFunc(func(_ context.Context, doc entity.Document) (*pedimento.Result, error) {
		return nil, &pedimento.BoundaryNotFoundError{Document: doc.Name, Probed: 3, Err: pedimento.ErrNoLineItems}
	})
	st.Documents = documentsFunc(func(context.Context, extract.Source) (extract.Documents, []extract.Failure) {
		return extract.Documents{}, nil
	})

	out, err := NewProcessor(st, nil).Review(context.Background(), []entity.Document{pdf("ped.pdf"), pdf("cove.pdf")})
	require.NoError(t, err)
	assert.Nil(t, out.Pedimento)
	require.Len(t, out.Failures, 1)
	assert.ErrorIs(t, out.Failures[0].Err, pedimento.ErrNoLineItems)

	sec, ok := out.Report.Section(validation.SectionExtraction)
	require.True(t, ok)
	assert.Equal(t, "extraccion.ped.pdf.limite_partidas", sec.Validations[0].Name)
}

func TestReviewDirectoryRequiresLoader(t *testing.T) {
	_, err := NewProcessor(Stages{}, nil).ReviewDirectory(context.Background(), t.TempDir())
	assert.Error(t, err)
}
