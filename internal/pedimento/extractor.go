package pedimento

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cargoclaro/glosa-sub000/internal/common"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/llm"
	"github.com/cargoclaro/glosa-sub000/internal/pages"
)

// DefaultProbePages is how many leading pages are checked for the start of the partidas.
const DefaultProbePages = 3

// MaxItemsPerPage caps the per-page count; a larger answer is treated as malformed.
const MaxItemsPerPage = 50

// Result is a possibly partial extraction. Partidas holds every item that succeeded, in
// (page, ordinal) order; Failures lists the rest. Callers decide whether partial is acceptable.
type Result struct {
	Pedimento entity.Pedimento
	Boundary  int // 0-based page where the partidas start
	Failures  []Failure
}

// Complete reports whether every sub-extraction succeeded.
func (r *Result) Complete() bool { return len(r.Failures) == 0 }

// Extractor runs the two-phase pedimento extraction.
type Extractor struct {
	adj        llm.Adjudicator
	pages      pages.Source
	probePages int
	logger     *slog.Logger
}

func NewExtractor(adj llm.Adjudicator, src pages.Source, probePages int, logger *slog.Logger) *Extractor {
	if probePages <= 0 {
		probePages = DefaultProbePages
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{adj: adj, pages: src, probePages: probePages, logger: logger}
}

// Extract locates the boundary, then extracts the header and every partida. Only a missing
// boundary (or unreadable pages) is returned as an error.
func (x *Extractor) Extract(ctx context.Context, doc entity.Document) (*Result, error) {
	start := time.Now()
	texts, err := x.pages.PageTexts(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("pedimento %s: page text: %w", doc.Name, err)
	}

	boundary, err := x.locateBoundary(ctx, doc, texts)
	if err != nil {
		x.logger.Error("pedimento.boundary.failed", "doc", doc.Name, "run_id", common.RunIDFromContext(ctx), "error", err)
		return nil, err
	}
	x.logger.Info("pedimento.boundary.ok", "doc", doc.Name, "boundary_page", boundary+1, "pages", len(texts))

	res := &Result{Boundary: boundary}
	var (
		wg        sync.WaitGroup
		header    entity.PedimentoHeader
		headerErr []Failure
		items     []entity.Partida
		itemErr   []Failure
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		header, headerErr = x.extractHeader(ctx, texts, boundary)
	}()
	go func() {
		defer wg.Done()
		items, itemErr = x.extractPartidas(ctx, texts, boundary)
	}()
	wg.Wait()

	res.Pedimento = entity.Pedimento{Header: header, Partidas: items}
	res.Failures = append(headerErr, itemErr...)

	x.logger.Info("pedimento.extract.ok",
		"doc", doc.Name,
		"run_id", common.RunIDFromContext(ctx),
		"partidas", len(items),
		"failures", len(res.Failures),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func pageEvidence(texts []string, pages ...int) []llm.Evidence {
	out := make([]llm.Evidence, 0, len(pages))
	for _, p := range pages {
		out = append(out, llm.Evidence{Label: fmt.Sprintf("Página %d del pedimento", p+1), Content: texts[p]})
	}
	return out
}

// locateBoundary probes the first k pages concurrently; the first line_items page wins.
// A probe failure before that page is decisive makes the boundary unknowable.
func (x *Extractor) locateBoundary(ctx context.Context, doc entity.Document, texts []string) (int, error) {
	k := min(x.probePages, len(texts))
	if k == 0 {
		return 0, &BoundaryNotFoundError{Document: doc.Name, Err: ErrNoLineItems}
	}

	type probe struct {
		section string
		err     error
	}
	probes := make([]probe, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ans, err := llm.Decode[struct {
				Section string `json:"section"`
			}](ctx, x.adj, llm.Request{
				Kind: "pedimento.boundary",
				Name: fmt.Sprintf("pedimento.boundary.p%d", i+1),
				Instructions: "Indica a qué sección del pedimento pertenece esta página. " +
					"general_data: encabezado, datos generales, proveedores, facturas, transporte, identificadores del pedimento. " +
					"line_items: la página contiene el inicio o la continuación del bloque de PARTIDAS (fracción, secuencia, valor aduana por partida).",
				Evidence: pageEvidence(texts, i),
				Schema:   sectionSchema(),
			}, x.logger)
			probes[i] = probe{section: ans.Section, err: err}
		}(i)
	}
	wg.Wait()

	for i, p := range probes {
		if p.err != nil {
			return 0, &BoundaryNotFoundError{Document: doc.Name, Probed: k, Err: p.err}
		}
		if p.section == sectionLineItems {
			return i, nil
		}
	}
	return 0, &BoundaryNotFoundError{Document: doc.Name, Probed: k, Err: ErrNoLineItems}
}

// remainingHeaderPages are the pages between the first page and the boundary. When the
// partidas start on page 1 or 2 the boundary page itself carries the rest of the header.
func remainingHeaderPages(boundary int) []int {
	if boundary > 1 {
		return entity.PageRange{Start: 1, End: boundary - 1}.Pages()
	}
	return []int{boundary}
}

func (x *Extractor) extractHeader(ctx context.Context, texts []string, boundary int) (entity.PedimentoHeader, []Failure) {
	var (
		wg         sync.WaitGroup
		primary    entity.PrimaryHeader
		remaining  entity.RemainingHeader
		primErr    error
		remErr     error
		remPages   = remainingHeaderPages(boundary)
		remEvident = pageEvidence(texts, remPages...)
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		primary, primErr = llm.Decode[entity.PrimaryHeader](ctx, x.adj, llm.Request{
			Kind: "pedimento.header",
			Name: "pedimento.header.primary",
			Instructions: "Extrae los datos del encabezado principal del pedimento que aparecen en esta primera página: " +
				"número de pedimento completo, tipo de operación, clave, régimen, tipo de cambio, peso bruto, aduana, medios de transporte, " +
				"valores (dólares, aduana, precio pagado), datos del importador/exportador, incrementables, fechas y el cuadro de liquidación.",
			Evidence: pageEvidence(texts, 0),
			Schema:   primaryHeaderSchema(),
		}, x.logger)
	}()
	go func() {
		defer wg.Done()
		remaining, remErr = llm.Decode[entity.RemainingHeader](ctx, x.adj, llm.Request{
			Kind: "pedimento.header",
			Name: "pedimento.header.remaining",
			Instructions: "Extrae los bloques del encabezado del pedimento que no son partidas: proveedores/compradores, facturas " +
				"(con su número de COVE o acuse de valor), transportes, guías o conocimientos de embarque, contenedores, " +
				"identificadores a nivel pedimento y observaciones. Ignora las partidas.",
			Evidence: remEvident,
			Schema:   remainingHeaderSchema(),
		}, x.logger)
	}()
	wg.Wait()

	var failures []Failure
	if primErr != nil {
		failures = append(failures, Failure{Stage: StagePrimaryHeader, Page: 0, Err: primErr})
	}
	if remErr != nil {
		failures = append(failures, Failure{Stage: StageRemainingHeader, Page: remPages[0], Err: remErr})
	}
	return entity.PedimentoHeader{PrimaryHeader: primary, RemainingHeader: remaining}, failures
}

type itemSlot struct {
	partida *entity.Partida
	failure *Failure
}

// extractPartidas fans out over pages [boundary, last]; each page counts its own items and
// then extracts each ordinal. Slots are indexed so the merge is (page, ordinal) ordered no
// matter which call returns first.
func (x *Extractor) extractPartidas(ctx context.Context, texts []string, boundary int) ([]entity.Partida, []Failure) {
	last := len(texts) - 1
	perPage := make([][]itemSlot, len(texts))
	var wg sync.WaitGroup
	for p := boundary; p <= last; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			perPage[p] = x.extractPage(ctx, texts, p)
		}(p)
	}
	wg.Wait()

	var (
		out      []entity.Partida
		failures []Failure
	)
	for p := boundary; p <= last; p++ {
		for _, s := range perPage[p] {
			if s.failure != nil {
				failures = append(failures, *s.failure)
				continue
			}
			out = append(out, *s.partida)
		}
	}
	return out, failures
}

func (x *Extractor) extractPage(ctx context.Context, texts []string, page int) []itemSlot {
	counted, err := llm.Decode[struct {
		Count int `json:"count"`
	}](ctx, x.adj, llm.Request{
		Kind: "pedimento.count",
		Name: fmt.Sprintf("pedimento.count.p%d", page+1),
		Instructions: "Cuenta cuántas partidas del pedimento aparecen en ESTA página únicamente. " +
			"Una partida se reconoce por su número de secuencia y fracción arancelaria. No des un total acumulado del documento.",
		Evidence: pageEvidence(texts, page),
		Schema:   countSchema(),
	}, x.logger)
	if err != nil {
		return []itemSlot{{failure: &Failure{Stage: StageCount, Page: page, Err: err}}}
	}
	if counted.Count == 0 {
		return nil
	}

	slots := make([]itemSlot, counted.Count)
	var wg sync.WaitGroup
	for i := 0; i < counted.Count; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ordinal := i + 1
			p, err := llm.Decode[entity.Partida](ctx, x.adj, llm.Request{
				Kind: "pedimento.item",
				Name: fmt.Sprintf("pedimento.item.p%d.o%d", page+1, ordinal),
				Instructions: fmt.Sprintf("Extrae únicamente la partida número %d que aparece en esta página, contando de arriba hacia abajo "+
					"sólo las partidas de esta página. Incluye contribuciones e identificadores con sus complementos en orden.", ordinal),
				Evidence: pageEvidence(texts, page),
				Schema:   partidaSchema(),
			}, x.logger)
			if err != nil {
				slots[i] = itemSlot{failure: &Failure{Stage: StageItem, Page: page, Ordinal: ordinal, Err: err}}
				return
			}
			p.Page = page
			p.Ordinal = ordinal
			slots[i] = itemSlot{partida: &p}
		}(i)
	}
	wg.Wait()
	x.logger.Debug("pedimento.page.ok", "page", page+1, "items", counted.Count)
	return slots
}
