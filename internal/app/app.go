// Package app wires the review pipeline from configuration.
package app

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cargoclaro/glosa-sub000/internal/catalog"
	"github.com/cargoclaro/glosa-sub000/internal/classify"
	"github.com/cargoclaro/glosa-sub000/internal/common"
	"github.com/cargoclaro/glosa-sub000/internal/extract"
	"github.com/cargoclaro/glosa-sub000/internal/ingest"
	"github.com/cargoclaro/glosa-sub000/internal/llm"
	"github.com/cargoclaro/glosa-sub000/internal/llm/openai"
	"github.com/cargoclaro/glosa-sub000/internal/metrics"
	"github.com/cargoclaro/glosa-sub000/internal/pages"
	"github.com/cargoclaro/glosa-sub000/internal/pedimento"
	"github.com/cargoclaro/glosa-sub000/internal/pipeline"
	"github.com/cargoclaro/glosa-sub000/internal/server"
	"github.com/cargoclaro/glosa-sub000/internal/split"
	"github.com/cargoclaro/glosa-sub000/internal/tariff"
	"github.com/cargoclaro/glosa-sub000/internal/validation"
)

// Options are the wiring choices that do not come from configuration.
type Options struct {
	ManifestPath string                // required when review.classify_by is "manifest"
	Registerer   prometheus.Registerer // nil disables metrics
	Adjudicator  llm.Adjudicator       // overrides the OpenAI client (tests)
	Pages        pages.Source          // overrides the poppler/tesseract extractor (tests)
}

// App holds the wired components.
type App struct {
	Loader     *ingest.Loader
	Classifier classify.Classifier
	Processor  *pipeline.Processor
	Metrics    *metrics.Collector

	tariffs *tariff.Store
}

// New wires every stage. Call Close when done.
func New(ctx context.Context, cfg *common.Config, opts Options, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{}

	var llmObs llm.Observer
	var valObs validation.Observer
	if opts.Registerer != nil {
		c, err := metrics.New(opts.Registerer)
		if err != nil {
			return nil, err
		}
		a.Metrics, llmObs, valObs = c, c, c
	}

	adj := opts.Adjudicator
	if adj == nil {
		adj = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
	}
	adj = llm.Limit(llm.Observe(adj, llmObs), cfg.LLM.MaxConcurrency)

	src := opts.Pages
	if src == nil {
		src = pages.NewExtractor(pages.Config{
			Pdftotext:    cfg.Pages.Pdftotext,
			Pdftoppm:     cfg.Pages.Pdftoppm,
			Tesseract:    cfg.Pages.Tesseract,
			TessLang:     cfg.Pages.TessLang,
			DPI:          cfg.Pages.DPI,
			MinPageChars: cfg.Pages.MinPageChars,
		}, nil, logger)
	}

	classifier, err := newClassifier(cfg.Review.ClassifyBy, opts.ManifestPath, adj, src, logger)
	if err != nil {
		return nil, err
	}
	a.Classifier = classifier

	catalogs, err := catalog.Load(cfg.Catalogs.Paths, logger)
	if err != nil {
		return nil, err
	}

	a.tariffs, err = server.ConnectTariffs(ctx, cfg.Tariff, logger)
	if err != nil {
		return nil, err
	}
	var lookup tariff.Lookup
	if a.tariffs != nil {
		lookup = a.tariffs
	}

	engine := split.NewPDFCPUEngine()
	a.Loader = ingest.NewLoader(engine, logger)
	a.Processor = pipeline.NewProcessor(pipeline.Stages{
		Loader:     a.Loader,
		Classifier: classifier,
		Splitter:   split.New(engine, logger),
		Pedimento:  pedimento.NewExtractor(adj, src, cfg.Pedimento.ProbePages, logger),
		Documents:  extract.NewExtractor(adj, src, cfg.LLM.MaxConcurrency, logger),
		Validator:  validation.NewOrchestrator(validation.NewLLMJudge(adj, logger), valObs, logger),
		Tariffs:    lookup,
		Catalogs:   catalogs,
	}, logger,
		pipeline.WithClassifyConcurrency(cfg.LLM.MaxConcurrency),
		pipeline.WithTariffTimeout(cfg.Tariff.LookupTimeout),
	)
	return a, nil
}

func newClassifier(by, manifestPath string, adj llm.Adjudicator, src pages.Source, logger *slog.Logger) (classify.Classifier, error) {
	if !strings.EqualFold(by, "manifest") {
		return classify.NewLLMClassifier(adj, src, logger), nil
	}
	if manifestPath == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "classification manifest path is required", common.ErrInvalidInput)
	}
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	m, err := classify.ParseManifest(f)
	if err != nil {
		return nil, err
	}
	return classify.NewManifestClassifier(m), nil
}

// Close releases the tariff store.
func (a *App) Close() error {
	if a.tariffs == nil {
		return nil
	}
	return a.tariffs.Close()
}
