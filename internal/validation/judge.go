package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/cargoclaro/glosa-sub000/internal/llm"
)

// judgmentSchema is the answer shape for every validation.
func judgmentSchema() map[string]any {
	return llm.Object(map[string]any{
		"analysis":        llm.NonEmptyString(),
		"is_valid":        llm.Boolean(),
		"actions_to_take": llm.Array(llm.NonEmptyString()),
	}, "analysis", "is_valid")
}

// LLMJudge asks the adjudicator for a verdict, passing each context block as labelled evidence.
type LLMJudge struct {
	adj    llm.Adjudicator
	logger *slog.Logger
}

func NewLLMJudge(adj llm.Adjudicator, logger *slog.Logger) *LLMJudge {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMJudge{adj: adj, logger: logger}
}

func (j *LLMJudge) Judge(ctx context.Context, spec *Spec) (Judgment, error) {
	evidence, err := Evidence(spec)
	if err != nil {
		return Judgment{}, err
	}
	return llm.Decode[Judgment](ctx, j.adj, llm.Request{
		Kind: "validation",
		Name: "validation." + spec.Name,
		Instructions: spec.Description + "\n" + spec.Instructions +
			"\nResponde is_valid=false sólo si la evidencia muestra una discrepancia; en actions_to_take indica qué corregir.",
		Evidence: evidence,
		Schema:   judgmentSchema(),
	}, j.logger)
}

// Evidence renders the contexts in category order, sources sorted by label.
func Evidence(spec *Spec) ([]llm.Evidence, error) {
	var out []llm.Evidence
	for _, cat := range categoryOrder {
		sources := spec.Contexts[cat]
		labels := make([]string, 0, len(sources))
		for l := range sources {
			labels = append(labels, l)
		}
		sort.Strings(labels)
		for _, l := range labels {
			body, err := json.MarshalIndent(sources[l], "", "  ")
			if err != nil {
				return nil, fmt.Errorf("evidence %s/%s: %w", cat, l, err)
			}
			out = append(out, llm.Evidence{Label: fmt.Sprintf("[%s] %s", cat.Label(), l), Content: string(body)})
		}
	}
	return out, nil
}
