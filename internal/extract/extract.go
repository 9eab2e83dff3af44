// Package extract turns the non-pedimento documents of an expediente into typed records.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/common"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/llm"
	"github.com/cargoclaro/glosa-sub000/internal/pages"
)

// DefaultConcurrency bounds how many documents are extracted at once.
const DefaultConcurrency = 8

// Documents holds every typed sibling document, each list in expediente order.
type Documents struct {
	Coves        []entity.Cove              `json:"coves,omitempty"`
	Invoices     []entity.Invoice           `json:"facturas,omitempty"`
	Cartas       []entity.Carta318          `json:"cartas_318,omitempty"`
	CFDIs        []entity.CFDI              `json:"cfdis,omitempty"`
	PackingLists []entity.PackingList       `json:"listas_empaque,omitempty"`
	Transport    []entity.TransportDocument `json:"documentos_transporte,omitempty"`
}

// Failure is one document that could not be extracted. It never aborts the others.
type Failure struct {
	Document string
	Type     constants.DocumentType
	Err      error
}

func (f Failure) Error() string {
	return fmt.Sprintf("extract %s %s: %v", f.Type, f.Document, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Source is the slice of an expediente the extractor reads.
type Source interface {
	Documents(t constants.DocumentType) []entity.Document
}

// Extractor extracts sibling documents through the adjudicator, except CFDI which is parsed.
type Extractor struct {
	adj         llm.Adjudicator
	pages       pages.Source
	concurrency int
	logger      *slog.Logger
}

func NewExtractor(adj llm.Adjudicator, src pages.Source, concurrency int, logger *slog.Logger) *Extractor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{adj: adj, pages: src, concurrency: concurrency, logger: logger}
}

// Extracted reports whether the type has a typed record; shippers and delivery tickets don't.
func Extracted(t constants.DocumentType) bool {
	switch t {
	case constants.Cove, constants.Invoice, constants.Carta318, constants.CFDI,
		constants.PackingList, constants.PackingSlip, constants.BillOfLading, constants.AirWaybill:
		return true
	}
	return false
}

type job struct {
	t   constants.DocumentType
	doc entity.Document
	idx int
}

// All extracts every sibling document concurrently. Results land in per-type slots so the
// output order is the expediente order whatever finishes first.
func (x *Extractor) All(ctx context.Context, src Source) (Documents, []Failure) {
	start := time.Now()
	var jobs []job
	for _, t := range constants.AllDocumentTypes() {
		if !Extracted(t) {
			continue
		}
		for i, d := range src.Documents(t) {
			jobs = append(jobs, job{t: t, doc: d, idx: i})
		}
	}

	values := make([]any, len(jobs))
	errs := make([]error, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			values[i], errs[i] = x.One(gctx, j.t, j.doc)
			return nil
		})
	}
	_ = g.Wait()

	var (
		out      Documents
		failures []Failure
	)
	for i, j := range jobs {
		if errs[i] != nil {
			failures = append(failures, Failure{Document: j.doc.Name, Type: j.t, Err: errs[i]})
			continue
		}
		switch v := values[i].(type) {
		case entity.Cove:
			out.Coves = append(out.Coves, v)
		case entity.Invoice:
			out.Invoices = append(out.Invoices, v)
		case entity.Carta318:
			out.Cartas = append(out.Cartas, v)
		case entity.CFDI:
			out.CFDIs = append(out.CFDIs, v)
		case entity.PackingList:
			out.PackingLists = append(out.PackingLists, v)
		case entity.TransportDocument:
			out.Transport = append(out.Transport, v)
		}
	}
	x.logger.Info("extract.all.ok",
		"run_id", common.RunIDFromContext(ctx),
		"documents", len(jobs),
		"failures", len(failures),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, failures
}

// One extracts a single document of type t.
func (x *Extractor) One(ctx context.Context, t constants.DocumentType, doc entity.Document) (any, error) {
	switch t {
	case constants.Cove:
		return x.Cove(ctx, doc)
	case constants.Invoice:
		return x.Invoice(ctx, doc)
	case constants.Carta318:
		return x.Carta318(ctx, doc)
	case constants.CFDI:
		return x.CFDI(ctx, doc)
	case constants.PackingList, constants.PackingSlip:
		return x.PackingList(ctx, doc)
	case constants.BillOfLading, constants.AirWaybill:
		return x.Transport(ctx, doc, t)
	default:
		return nil, fmt.Errorf("no extractor for %s", t)
	}
}

// decode runs one adjudicated extraction over every page of doc.
func decode[T any](ctx context.Context, x *Extractor, doc entity.Document, t constants.DocumentType, instructions string, schema map[string]any) (T, error) {
	var zero T
	texts, err := x.pages.PageTexts(ctx, doc)
	if err != nil {
		return zero, fmt.Errorf("page text: %w", err)
	}
	evidence := make([]llm.Evidence, 0, len(texts))
	for i, txt := range texts {
		evidence = append(evidence, llm.Evidence{
			Label:   fmt.Sprintf("%s, página %d", t.Label(), i+1),
			Content: txt,
		})
	}
	return llm.Decode[T](ctx, x.adj, llm.Request{
		Kind:         "extract." + string(t),
		Name:         fmt.Sprintf("extract.%s.%s", t, doc.Name),
		Instructions: instructions,
		Evidence:     evidence,
		Schema:       schema,
	}, x.logger)
}

func (x *Extractor) Cove(ctx context.Context, doc entity.Document) (entity.Cove, error) {
	c, err := decode[entity.Cove](ctx, x, doc, constants.Cove,
		"Extrae el acuse de valor (COVE): número de COVE, tipo de operación, fecha de expedición, número de factura, "+
			"si hay subdivisión, emisor, destinatario, moneda y cada mercancía con descripción, cantidad, unidad, valor unitario, "+
			"valor total y valor en dólares.",
		coveSchema())
	c.Source = doc.Name
	return c, err
}

func (x *Extractor) Invoice(ctx context.Context, doc entity.Document) (entity.Invoice, error) {
	inv, err := decode[entity.Invoice](ctx, x, doc, constants.Invoice,
		"Extrae la factura comercial: número, fecha, incoterm, moneda, vendedor, comprador, país de origen, "+
			"cada partida con descripción, número de parte, cantidad, unidad, precio unitario e importe, "+
			"y los importes de subtotal, fletes, seguros y total tal como aparecen.",
		invoiceSchema())
	inv.Source = doc.Name
	return inv, err
}

func (x *Extractor) Carta318(ctx context.Context, doc entity.Document) (entity.Carta318, error) {
	c, err := decode[entity.Carta318](ctx, x, doc, constants.Carta318,
		"Extrae la carta de corrección de factura (regla 3.1.8): fecha, número de factura que corrige, proveedor, importador, "+
			"moneda, valor total, incoterm, vinculación, cada corrección (campo, valor original, valor correcto) y las mercancías.",
		cartaSchema())
	c.Source = doc.Name
	return c, err
}

func (x *Extractor) PackingList(ctx context.Context, doc entity.Document) (entity.PackingList, error) {
	pl, err := decode[entity.PackingList](ctx, x, doc, constants.PackingList,
		"Extrae la lista de empaque: número, factura relacionada, número de bultos, peso bruto, peso neto, unidad de peso, "+
			"marcas y cada partida con descripción, cantidad y pesos.",
		packingListSchema())
	pl.Source = doc.Name
	return pl, err
}

// Transport extracts a bill of lading or an air waybill; t is recorded as the kind.
func (x *Extractor) Transport(ctx context.Context, doc entity.Document, t constants.DocumentType) (entity.TransportDocument, error) {
	td, err := decode[entity.TransportDocument](ctx, x, doc, t,
		"Extrae el documento de transporte: número (house), número master si existe, transportista, embarcador, consignatario, "+
			"origen, destino, número de bultos, peso bruto con su unidad, contenedores y fecha.",
		transportSchema())
	td.Source = doc.Name
	td.Kind = string(t)
	return td, err
}

// CFDI parses the XML deterministically.
func (x *Extractor) CFDI(_ context.Context, doc entity.Document) (entity.CFDI, error) {
	c, err := ParseCFDI(doc.Data)
	if err != nil {
		return entity.CFDI{}, err
	}
	c.Source = doc.Name
	return c, nil
}
