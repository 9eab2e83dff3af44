package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/common"
)

// Judgment is the adjudicator's verdict on one spec.
type Judgment struct {
	Analysis      string   `json:"analysis"`
	IsValid       bool     `json:"is_valid"`
	ActionsToTake []string `json:"actions_to_take"`
}

// Judge decides one spec.
type Judge interface {
	Judge(ctx context.Context, spec *Spec) (Judgment, error)
}

type JudgeFunc func(ctx context.Context, spec *Spec) (Judgment, error)

func (f JudgeFunc) Judge(ctx context.Context, spec *Spec) (Judgment, error) { return f(ctx, spec) }

// Observer receives one observation per validation result.
type Observer interface {
	ObserveValidation(section string, outcome constants.Outcome)
}

// Orchestrator runs every spec of every section concurrently and joins the results in
// declared order. A failing or panicking spec only affects its own result.
type Orchestrator struct {
	judge    Judge
	observer Observer
	logger   *slog.Logger
}

func NewOrchestrator(judge Judge, observer Observer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{judge: judge, observer: observer, logger: logger}
}

// Run judges every section. The report run ID comes from ctx when set.
func (o *Orchestrator) Run(ctx context.Context, sections []Section) *Report {
	start := time.Now()
	runID := common.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}

	report := &Report{RunID: runID, CreatedAt: time.Now().UTC(), Sections: make([]SectionResult, len(sections))}
	var wg sync.WaitGroup
	for i, sec := range sections {
		wg.Add(1)
		go func(i int, sec Section) {
			defer wg.Done()
			report.Sections[i] = o.runSection(ctx, sec)
		}(i, sec)
	}
	wg.Wait()

	sum := report.Summary()
	o.logger.Info("validation.run.ok",
		"run_id", runID,
		"sections", len(sections),
		"passed", sum.Passed,
		"failed", sum.Failed,
		"could_not_verify", sum.Unverified,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return report
}

func (o *Orchestrator) runSection(ctx context.Context, sec Section) SectionResult {
	out := SectionResult{Name: sec.Name, Validations: make([]Result, len(sec.Specs))}
	var wg sync.WaitGroup
	for i, spec := range sec.Specs {
		wg.Add(1)
		go func(i int, spec *Spec) {
			defer wg.Done()
			r := o.runSpec(ctx, spec)
			if o.observer != nil {
				o.observer.ObserveValidation(sec.Name, r.Outcome)
			}
			out.Validations[i] = r
		}(i, spec)
	}
	wg.Wait()
	return out
}

func (o *Orchestrator) runSpec(ctx context.Context, spec *Spec) (res Result) {
	res = Result{Name: spec.Name, Description: spec.Description, ActionsToTake: []string{}}
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("validation.spec.panic", "name", spec.Name, "panic", rec, "stack", string(debug.Stack()))
			res = unverified(spec, fmt.Errorf("panic: %v", rec))
		}
	}()

	if spec.Blocked != nil {
		return unverified(spec, spec.Blocked)
	}
	if err := ctx.Err(); err != nil {
		return unverified(spec, err)
	}

	j, err := o.judge.Judge(ctx, spec)
	if err != nil {
		o.logger.Warn("validation.spec.error", "name", spec.Name, "error", err)
		return unverified(spec, err)
	}
	res.Analysis = j.Analysis
	res.Valid = j.IsValid
	if j.ActionsToTake != nil {
		res.ActionsToTake = j.ActionsToTake
	}
	res.Outcome = constants.OutcomeFailed
	if j.IsValid {
		res.Outcome = constants.OutcomePassed
	}
	return res
}

func unverified(spec *Spec, err error) Result {
	msg := err.Error()
	if errors.Is(err, context.Canceled) {
		msg = "cancelado: " + msg
	}
	return Result{
		Name:          spec.Name,
		Description:   spec.Description,
		ActionsToTake: []string{},
		Outcome:       constants.OutcomeUnverified,
		Error:         msg,
	}
}
