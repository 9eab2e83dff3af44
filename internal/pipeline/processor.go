// Package pipeline reviews one expediente end to end: classify, assemble, extract, validate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/cargoclaro/glosa-sub000/internal/catalog"
	"github.com/cargoclaro/glosa-sub000/internal/classify"
	"github.com/cargoclaro/glosa-sub000/internal/common"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/expediente"
	"github.com/cargoclaro/glosa-sub000/internal/extract"
	"github.com/cargoclaro/glosa-sub000/internal/ingest"
	"github.com/cargoclaro/glosa-sub000/internal/pedimento"
	"github.com/cargoclaro/glosa-sub000/internal/tariff"
	"github.com/cargoclaro/glosa-sub000/internal/validation"
)

// DefaultClassifyConcurrency bounds concurrent classification calls.
const DefaultClassifyConcurrency = 4

// Loader reads the input files of one expediente.
type Loader interface {
	LoadDirectory(ctx context.Context, root string, skipHidden bool) ([]entity.Document, []ingest.FileResult, ingest.DirStats, error)
}

// PedimentoExtractor is satisfied by *pedimento.Extractor.
type PedimentoExtractor interface {
	Extract(ctx context.Context, doc entity.Document) (*pedimento.Result, error)
}

// DocumentExtractor is satisfied by *extract.Extractor.
type DocumentExtractor interface {
	All(ctx context.Context, src extract.Source) (extract.Documents, []extract.Failure)
}

// Validator is satisfied by *validation.Orchestrator.
type Validator interface {
	Run(ctx context.Context, sections []validation.Section) *validation.Report
}

// Stages wires the processor. Tariffs may be nil; every tariff-dependent check then
// reports could-not-verify.
type Stages struct {
	Loader     Loader
	Classifier classify.Classifier
	Splitter   expediente.Splitter
	Pedimento  PedimentoExtractor
	Documents  DocumentExtractor
	Validator  Validator
	Tariffs    tariff.Lookup
	Catalogs   catalog.Set
	Builders   []validation.Builder
}

// Processor coordinates the stages of one review.
type Processor struct {
	stages              Stages
	classifyConcurrency int
	tariffTimeout       time.Duration
	logger              *slog.Logger
}

type Option func(*Processor)

func WithClassifyConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.classifyConcurrency = n
		}
	}
}

func WithTariffTimeout(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.tariffTimeout = d
		}
	}
}

func NewProcessor(stages Stages, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if stages.Builders == nil {
		stages.Builders = validation.DefaultBuilders()
	}
	p := &Processor{
		stages:              stages,
		classifyConcurrency: DefaultClassifyConcurrency,
		tariffTimeout:       5 * time.Second,
		logger:              logger,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Outcome is everything one review produced. Fields are filled as far as the review got.
type Outcome struct {
	RunID           string                         `json:"run_id"`
	Files           []ingest.FileResult            `json:"files,omitempty"`
	Classifications []entity.ClassificationSummary `json:"classifications"`
	Expediente      *expediente.Expediente         `json:"expediente,omitempty"`
	Pedimento       *entity.Pedimento              `json:"pedimento,omitempty"`
	Documents       extract.Documents              `json:"documents"`
	Failures        []validation.ExtractionFailure `json:"-"`
	Report          *validation.Report             `json:"report,omitempty"`
	ElapsedMs       int64                          `json:"elapsed_ms"`
}

// ReviewDirectory loads root and reviews its files.
func (p *Processor) ReviewDirectory(ctx context.Context, root string) (*Outcome, error) {
	if p.stages.Loader == nil {
		return nil, errors.New("review directory: no loader configured")
	}
	docs, files, _, err := p.stages.Loader.LoadDirectory(ctx, root, true)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", root, err)
	}
	out, err := p.Review(ctx, docs)
	if out != nil {
		out.Files = files
	}
	return out, err
}

// Review runs every stage over docs. A composition failure (duplicate or missing pedimento,
// missing COVE) stops the review and is returned with the partial outcome.
func (p *Processor) Review(ctx context.Context, docs []entity.Document) (*Outcome, error) {
	start := time.Now()
	runID := common.RunIDFromContext(ctx)
	if runID == "" {
		runID = uuid.NewString()
		ctx = common.WithRunID(ctx, runID)
	}
	out := &Outcome{RunID: runID}
	defer func() { out.ElapsedMs = time.Since(start).Milliseconds() }()

	exp, summaries, err := p.assemble(ctx, docs)
	out.Classifications = summaries
	if err != nil {
		p.logger.Error("pipeline.assemble.failed", "run_id", runID, "error", err)
		return out, err
	}
	out.Expediente = exp

	in := p.extract(ctx, exp)
	out.Pedimento = in.Pedimento
	out.Documents = in.Documents
	out.Failures = in.Failures
	if err := ctx.Err(); err != nil {
		return out, err
	}

	in.Catalogs = p.stages.Catalogs
	in.Tariffs = tariff.Prefetch(ctx, p.stages.Tariffs, in.TariffQueries(), in.Currencies(), in.ExchangeDate(), p.tariffTimeout, p.logger)

	sections := validation.Build(in, p.stages.Builders)
	out.Report = p.stages.Validator.Run(ctx, sections)

	s := out.Report.Summary()
	p.logger.Info("pipeline.review.ok",
		"run_id", runID,
		"files", len(docs),
		"failures", len(out.Failures),
		"passed", s.Passed,
		"failed", s.Failed,
		"unverified", s.Unverified,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

type classified struct {
	idx int
	res entity.ClassificationResult
	err error
}

// assemble classifies concurrently and folds results in input order as soon as each prefix
// is complete, so a duplicate pedimento cancels the classifications still in flight.
func (p *Processor) assemble(ctx context.Context, docs []entity.Document) (*expediente.Expediente, []entity.ClassificationSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan classified, len(docs))
	go func() {
		var g errgroup.Group
		g.SetLimit(p.classifyConcurrency)
		for i, doc := range docs {
			g.Go(func() error {
				res, err := p.stages.Classifier.Classify(ctx, doc)
				ch <- classified{idx: i, res: res, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(ch)
	}()

	b := expediente.NewBuilder(p.stages.Splitter, p.logger)
	summaries := make([]entity.ClassificationSummary, len(docs))
	slots := make([]*classified, len(docs))
	next := 0
	var foldErr error
	for c := range ch {
		slots[c.idx] = &c
		for foldErr == nil && next < len(docs) && slots[next] != nil {
			cur := slots[next]
			doc := docs[next]
			next++
			if cur.err != nil {
				summaries[cur.idx] = entity.ClassificationSummary{File: doc.Name, Error: cur.err.Error()}
				b.Skip(doc.Name, cur.err)
				p.logger.Warn("pipeline.classify.failed", "run_id", common.RunIDFromContext(ctx), "file", doc.Name, "error", cur.err)
				continue
			}
			summaries[cur.idx] = cur.res.Summary()
			if err := b.Fold(ctx, cur.res); err != nil {
				foldErr = err
				cancel()
			}
		}
	}
	if foldErr != nil {
		return nil, summaries[:next], foldErr
	}
	if err := ctx.Err(); err != nil {
		return nil, summaries, err
	}
	exp, err := b.Freeze()
	return exp, summaries, err
}

// extract runs the pedimento extraction and the sibling extractors side by side.
func (p *Processor) extract(ctx context.Context, exp *expediente.Expediente) *validation.Input {
	in := &validation.Input{}
	var (
		ped      *pedimento.Result
		pedErr   error
		docs     extract.Documents
		failures []extract.Failure
	)
	var g errgroup.Group
	g.Go(func() error {
		ped, pedErr = p.stages.Pedimento.Extract(ctx, exp.Pedimento())
		return nil
	})
	g.Go(func() error {
		docs, failures = p.stages.Documents.All(ctx, exp)
		return nil
	})
	_ = g.Wait()

	name := exp.Pedimento().Name
	switch {
	case pedErr != nil:
		in.Failures = append(in.Failures, validation.ExtractionFailure{Document: name, Stage: "limite_partidas", Err: pedErr})
	default:
		in.Pedimento = &ped.Pedimento
		for _, f := range ped.Failures {
			in.Failures = append(in.Failures, validation.ExtractionFailure{Document: name, Stage: stageName(f), Err: f})
		}
	}
	for _, f := range failures {
		in.Failures = append(in.Failures, validation.ExtractionFailure{Document: f.Document, Err: f})
	}
	in.Documents = docs
	return in
}

func stageName(f pedimento.Failure) string {
	if f.Stage == pedimento.StageItem {
		return fmt.Sprintf("%s.p%d.o%d", f.Stage, f.Page+1, f.Ordinal)
	}
	return fmt.Sprintf("%s.p%d", f.Stage, f.Page+1)
}
