package validation

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/common"
	"github.com/cargoclaro/glosa-sub000/internal/llm"
)

func specs(names ...string) []*Spec {
	out := make([]*Spec, len(names))
	for i, n := range names {
		out[i] = NewSpec(n, "desc "+n, "")
	}
	return out
}

func names(rs []Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Name
	}
	return out
}

func TestRunKeepsDeclaredOrder(t *testing.T) {
	judge := JudgeFunc(func(context.Context, *Spec) (Judgment, error) {
		time.Sleep(time.Duration(rand.Intn(4)) * time.Millisecond)
		return Judgment{Analysis: "ok", IsValid: true}, nil
	})
	sections := []Section{
		{Name: "A", Specs: specs("a1", "a2", "a3", "a4", "a5")},
		{Name: "B", Specs: specs("b1", "b2", "b3")},
		{Name: "C", Specs: specs("c1")},
	}
	ctx := common.WithRunID(context.Background(), "run-1")
	report := NewOrchestrator(judge, nil, nil).Run(ctx, sections)

	assert.Equal(t, "run-1", report.RunID)
	require.Len(t, report.Sections, 3)
	assert.Equal(t, "A", report.Sections[0].Name)
	assert.Equal(t, []string{"a1", "a2", "a3", "a4", "a5"}, names(report.Sections[0].Validations))
	assert.Equal(t, []string{"b1", "b2", "b3"}, names(report.Sections[1].Validations))
	assert.Equal(t, Summary{Passed: 9}, report.Summary())
}

type countingObserver struct {
	mu   sync.Mutex
	seen map[constants.Outcome]int
}

func (c *countingObserver) ObserveValidation(_ string, o constants.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen == nil {
		c.seen = map[constants.Outcome]int{}
	}
	c.seen[o]++
}

func TestRunDistinguishesOutcomes(t *testing.T) {
	var calls atomic.Int32
	judge := JudgeFunc(func(_ context.Context, s *Spec) (Judgment, error) {
		calls.Add(1)
		switch s.Name {
		case "valid":
			return Judgment{Analysis: "coincide", IsValid: true}, nil
		case "invalid":
			return Judgment{Analysis: "no coincide", IsValid: false, ActionsToTake: []string{"corregir"}}, nil
		default:
			return Judgment{}, &llm.AdjudicationError{Op: s.Name, Kind: llm.KindTimeout, Err: context.DeadlineExceeded}
		}
	})
	blocked := NewSpec("blocked", "", "").Block(errors.New("tarifa no disponible"))
	sec := Section{Name: "S", Specs: append(specs("valid", "invalid", "error"), blocked)}

	obs := &countingObserver{}
	report := NewOrchestrator(judge, obs, nil).Run(context.Background(), []Section{sec})
	rs := report.Sections[0].Validations

	assert.Equal(t, constants.OutcomePassed, rs[0].Outcome)
	assert.True(t, rs[0].Valid)
	assert.Empty(t, rs[0].ActionsToTake)

	assert.Equal(t, constants.OutcomeFailed, rs[1].Outcome)
	assert.False(t, rs[1].Valid)
	assert.Equal(t, []string{"corregir"}, rs[1].ActionsToTake)
	assert.Empty(t, rs[1].Error)

	assert.Equal(t, constants.OutcomeUnverified, rs[2].Outcome)
	assert.False(t, rs[2].Valid)
	assert.Contains(t, rs[2].Error, "timeout")

	assert.Equal(t, constants.OutcomeUnverified, rs[3].Outcome)
	assert.Equal(t, "tarifa no disponible", rs[3].Error)
	assert.EqualValues(t, 3, calls.Load(), "blocked specs never reach the judge")

	assert.Equal(t, Summary{Passed: 1, Failed: 1, Unverified: 2}, report.Summary())
	assert.Equal(t, map[constants.Outcome]int{
		constants.OutcomePassed: 1, constants.OutcomeFailed: 1, constants.OutcomeUnverified: 2,
	}, obs.seen)

	raw, err := json.Marshal(rs[1])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"outcome":"FAILED"`)
	assert.NotContains(t, string(raw), `"error"`)
}

func TestFaultInOneSectionDoesNotLeak(t *testing.T) {
	honest := func(_ context.Context, s *Spec) (Judgment, error) {
		return Judgment{Analysis: "analysis of " + s.Name, IsValid: strings.HasSuffix(s.Name, "1")}, nil
	}
	sections := func() []Section {
		return []Section{
			{Name: "faulty", Specs: specs("f1", "f2")},
			{Name: "healthy", Specs: specs("h1", "h2", "h3")},
		}
	}

	baseline := NewOrchestrator(JudgeFunc(honest), nil, nil).Run(context.Background(), sections())

	faulty := JudgeFunc(func(ctx context.Context, s *Spec) (Judgment, error) {
		if s.Name == "f1" {
			panic("adjudicator exploded")
		}
		if s.Name == "f2" {
			return Judgment{}, errors.New("unavailable")
		}
		return honest(ctx, s)
	})
	withFault := NewOrchestrator(faulty, nil, nil).Run(context.Background(), sections())

	assert.Equal(t, baseline.Sections[1], withFault.Sections[1])
	f := withFault.Sections[0].Validations
	assert.Equal(t, constants.OutcomeUnverified, f[0].Outcome)
	assert.Contains(t, f[0].Error, "panic")
	assert.Equal(t, constants.OutcomeUnverified, f[1].Outcome)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	judge := JudgeFunc(func(context.Context, *Spec) (Judgment, error) {
		t.Error("judge must not run on a cancelled context")
		return Judgment{}, nil
	})
	report := NewOrchestrator(judge, nil, nil).Run(ctx, []Section{{Name: "S", Specs: specs("x")}})
	assert.Equal(t, constants.OutcomeUnverified, report.Sections[0].Validations[0].Outcome)
	assert.Contains(t, report.Sections[0].Validations[0].Error, "cancelado")
}

func TestLLMJudge(t *testing.T) {
	spec := NewSpec("peso_bruto", "Peso bruto", "Compara pesos.").
		Add(External, "Catálogo", F("x", 1)).
		Add(Inferred, srcComputed, F("suma", "10.00")).
		Add(Provided, "Pedimento", F("peso_bruto", "10")).
		Add(Provided, "Lista de empaque (pl.pdf)", F("peso_bruto", "10"))

	var got llm.Request
	adj := llm.AdjudicatorFunc(func(_ context.Context, req llm.Request) (json.RawMessage, error) {
		got = req
		return json.RawMessage(`{"analysis":"coinciden","is_valid":"sí"}`), nil
	})
	j, err := NewLLMJudge(adj, nil).Judge(context.Background(), spec)
	require.NoError(t, err)
	assert.True(t, j.IsValid)

	assert.Equal(t, "validation", got.Kind)
	assert.Equal(t, "validation.peso_bruto", got.Name)
	assert.Contains(t, got.Instructions, "Compara pesos.")
	labels := make([]string, len(got.Evidence))
	for i, e := range got.Evidence {
		labels[i] = e.Label
	}
	assert.Equal(t, []string{
		"[Proporcionado] Lista de empaque (pl.pdf)",
		"[Proporcionado] Pedimento",
		"[Inferido] Cálculo",
		"[Externo] Catálogo",
	}, labels)
	assert.Contains(t, got.Evidence[1].Content, `"peso_bruto"`)

	bad := llm.AdjudicatorFunc(func(context.Context, llm.Request) (json.RawMessage, error) {
		return json.RawMessage(`{"veredicto":true}`), nil
	})
	_, err = NewLLMJudge(bad, nil).Judge(context.Background(), spec)
	assert.ErrorIs(t, err, llm.ErrAdjudication)
}
