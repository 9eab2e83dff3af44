package pedimento

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/llm"
)

type staticPages []string

func (s staticPages) PageTexts(context.Context, entity.Document) ([]string, error) { return s, nil }

// scripted answers by request name and records every request it saw.
type scripted struct {
	mu      sync.Mutex
	answers map[string]string
	fail    map[string]bool
	jitter  bool
	seen    map[string]llm.Request
}

func (s *scripted) Adjudicate(_ context.Context, req llm.Request) (json.RawMessage, error) {
	if s.jitter {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen == nil {
		s.seen = map[string]llm.Request{}
	}
	s.seen[req.Name] = req
	if s.fail[req.Name] {
		return nil, errors.New("upstream unavailable")
	}
	if a, ok := s.answers[req.Name]; ok {
		return json.RawMessage(a), nil
	}
	if strings.HasPrefix(req.Name, "pedimento.item.") {
		// pedimento.item.p3.o2 -> fraction encodes page and ordinal
		var p, o int
		_, _ = fmt.Sscanf(req.Name, "pedimento.item.p%d.o%d", &p, &o)
		return json.RawMessage(fmt.Sprintf(`{"fraccion":"8471.%02d.%02d","descripcion":"item"}`, p, o)), nil
	}
	return nil, fmt.Errorf("unexpected request %s", req.Name)
}

func fourPageAnswers() map[string]string {
	return map[string]string{
		"pedimento.boundary.p1":      `{"section":"general_data"}`,
		"pedimento.boundary.p2":      `{"section":"general_data"}`,
		"pedimento.boundary.p3":      `{"section":"line_items"}`,
		"pedimento.header.primary":   `{"numero_pedimento":"24 47 3456 4001234","tipo_operacion":"IMP","clave_pedimento":"A1","tipo_cambio":"17.2345"}`,
		"pedimento.header.remaining": `{"facturas":[{"numero":"INV-1","moneda":"USD","cove":"COVE123"}]}`,
		"pedimento.count.p3":         `{"count":2}`,
		"pedimento.count.p4":         `{"count":1}`,
	}
}

func pedDoc() entity.Document {
	return entity.Document{Name: "ped.pdf", Format: constants.PDF, PageCount: 4}
}

func TestExtractFourPageScenario(t *testing.T) {
	adj := &scripted{answers: fourPageAnswers()}
	x := NewExtractor(adj, staticPages{"p1", "p2", "p3", "p4"}, 3, nil)

	res, err := x.Extract(context.Background(), pedDoc())
	require.NoError(t, err)
	assert.True(t, res.Complete())
	assert.Equal(t, 2, res.Boundary)

	// header: page 1 primary, page 2 remaining
	primary := adj.seen["pedimento.header.primary"]
	require.Len(t, primary.Evidence, 1)
	assert.Equal(t, "Página 1 del pedimento", primary.Evidence[0].Label)
	remaining := adj.seen["pedimento.header.remaining"]
	require.Len(t, remaining.Evidence, 1)
	assert.Equal(t, "Página 2 del pedimento", remaining.Evidence[0].Label)

	h := res.Pedimento.Header
	assert.Equal(t, "24 47 3456 4001234", h.Number)
	assert.Equal(t, "17.2345", h.ExchangeRate)
	require.Len(t, h.Invoices, 1)
	assert.Equal(t, "COVE123", h.Invoices[0].Cove)

	// partidas from pages 3-4 only
	_, countedP1 := adj.seen["pedimento.count.p1"]
	assert.False(t, countedP1)
	require.Len(t, res.Pedimento.Partidas, 3)
	assert.Equal(t, "8471.03.01", res.Pedimento.Partidas[0].Fraction)
	assert.Equal(t, "8471.03.02", res.Pedimento.Partidas[1].Fraction)
	assert.Equal(t, "8471.04.01", res.Pedimento.Partidas[2].Fraction)
	assert.Equal(t, 3, res.Pedimento.Partidas[2].Page)
	assert.Equal(t, 1, res.Pedimento.Partidas[2].Ordinal)
}

func TestExtractOrderStableUnderJitter(t *testing.T) {
	answers := fourPageAnswers()
	answers["pedimento.count.p3"] = `{"count":6}`
	answers["pedimento.count.p4"] = `{"count":5}`
	var first []string
	for run := 0; run < 5; run++ {
		adj := &scripted{answers: answers, jitter: true}
		res, err := NewExtractor(adj, staticPages{"a", "b", "c", "d"}, 3, nil).Extract(context.Background(), pedDoc())
		require.NoError(t, err)
		var got []string
		for _, p := range res.Pedimento.Partidas {
			got = append(got, p.Fraction)
		}
		require.Len(t, got, 11)
		if first == nil {
			first = got
			continue
		}
		assert.Equal(t, first, got)
	}
}

func TestExtractKeepsSiblingsOnItemFailure(t *testing.T) {
	adj := &scripted{
		answers: fourPageAnswers(),
		fail: map[string]bool{
			"pedimento.item.p3.o2": true,
			"pedimento.count.p4":   true,
		},
	}
	res, err := NewExtractor(adj, staticPages{"1", "2", "3", "4"}, 3, nil).Extract(context.Background(), pedDoc())
	require.NoError(t, err)
	assert.False(t, res.Complete())

	require.Len(t, res.Pedimento.Partidas, 1)
	assert.Equal(t, "8471.03.01", res.Pedimento.Partidas[0].Fraction)

	require.Len(t, res.Failures, 2)
	assert.Equal(t, Failure{Stage: StageItem, Page: 2, Ordinal: 2, Err: res.Failures[0].Err}, res.Failures[0])
	assert.Equal(t, StageCount, res.Failures[1].Stage)
	assert.Equal(t, 3, res.Failures[1].Page)
	assert.ErrorIs(t, res.Failures[0], llm.ErrAdjudication)
}

func TestExtractRejectsImplausibleCount(t *testing.T) {
	answers := fourPageAnswers()
	answers["pedimento.count.p3"] = `{"count":20000}`
	adj := &scripted{answers: answers}
	res, err := NewExtractor(adj, staticPages{"1", "2", "3", "4"}, 3, nil).Extract(context.Background(), pedDoc())
	require.NoError(t, err)

	require.Len(t, res.Failures, 1)
	assert.Equal(t, StageCount, res.Failures[0].Stage)
	assert.Equal(t, 2, res.Failures[0].Page)
	var ae *llm.AdjudicationError
	require.True(t, errors.As(res.Failures[0], &ae))
	assert.Equal(t, llm.KindMalformed, ae.Kind)

	_, extracted := adj.seen["pedimento.item.p3.o1"]
	assert.False(t, extracted)
	require.Len(t, res.Pedimento.Partidas, 1)
	assert.Equal(t, 3, res.Pedimento.Partidas[0].Page)
}

func TestExtractHeaderFailureIsReported(t *testing.T) {
	adj := &scripted{answers: fourPageAnswers(), fail: map[string]bool{"pedimento.header.primary": true}}
	res, err := NewExtractor(adj, staticPages{"1", "2", "3", "4"}, 3, nil).Extract(context.Background(), pedDoc())
	require.NoError(t, err)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, StagePrimaryHeader, res.Failures[0].Stage)
	assert.Len(t, res.Pedimento.Header.Invoices, 1)
	assert.Len(t, res.Pedimento.Partidas, 3)
}

func TestExtractBoundaryErrors(t *testing.T) {
	t.Run("no line items", func(t *testing.T) {
		answers := fourPageAnswers()
		answers["pedimento.boundary.p3"] = `{"section":"general_data"}`
		_, err := NewExtractor(&scripted{answers: answers}, staticPages{"1", "2", "3", "4"}, 3, nil).
			Extract(context.Background(), pedDoc())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNoLineItems)
		var be *BoundaryNotFoundError
		require.True(t, errors.As(err, &be))
		assert.Equal(t, 3, be.Probed)
	})
	t.Run("probe failure before boundary", func(t *testing.T) {
		adj := &scripted{answers: fourPageAnswers(), fail: map[string]bool{"pedimento.boundary.p2": true}}
		_, err := NewExtractor(adj, staticPages{"1", "2", "3", "4"}, 3, nil).Extract(context.Background(), pedDoc())
		var be *BoundaryNotFoundError
		require.True(t, errors.As(err, &be))
		assert.ErrorIs(t, err, llm.ErrAdjudication)
	})
	t.Run("empty document", func(t *testing.T) {
		_, err := NewExtractor(&scripted{}, staticPages{}, 3, nil).Extract(context.Background(), pedDoc())
		assert.ErrorIs(t, err, ErrNoLineItems)
	})
}

func TestBoundaryOnFirstPageUsesItForRemainingHeader(t *testing.T) {
	answers := map[string]string{
		"pedimento.boundary.p1":      `{"section":"line_items"}`,
		"pedimento.boundary.p2":      `{"section":"line_items"}`,
		"pedimento.header.primary":   `{"numero_pedimento":"1","tipo_operacion":"EXP","clave_pedimento":"A1"}`,
		"pedimento.header.remaining": `{}`,
		"pedimento.count.p1":         `{"count":0}`,
		"pedimento.count.p2":         `{"count":1}`,
	}
	adj := &scripted{answers: answers}
	res, err := NewExtractor(adj, staticPages{"1", "2"}, 3, nil).Extract(context.Background(), pedDoc())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Boundary)
	assert.Equal(t, "Página 1 del pedimento", adj.seen["pedimento.header.remaining"].Evidence[0].Label)
	require.Len(t, res.Pedimento.Partidas, 1)
	assert.Equal(t, 1, res.Pedimento.Partidas[0].Page)
}
