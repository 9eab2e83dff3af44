// Package export writes review outcomes as XLSX workbooks and JSON documents.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/pipeline"
)

const (
	SheetValidations = "Validaciones"
	SheetPartidas    = "Partidas"
	SheetExpediente  = "Expediente"
)

// Service renders review outcomes.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

type sheetWriter struct {
	f     *excelize.File
	sheet string
	row   int
}

func (w *sheetWriter) line(values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, w.row)
		_ = w.f.SetCellValue(w.sheet, cell, v)
	}
	w.row++
}

func newSheet(f *excelize.File, name string, headers ...string) (*sheetWriter, error) {
	if index, _ := f.GetSheetIndex(name); index == -1 {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	w := &sheetWriter{f: f, sheet: name, row: 1}
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	w.line(row...)
	return w, nil
}

// ReviewXLSX returns the outcome as a workbook with one sheet per view. Page numbers are 1-based.
func (s *Service) ReviewXLSX(out *pipeline.Outcome) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	rows, err := s.validations(f, out)
	if err != nil {
		return nil, err
	}
	if err := s.partidas(f, out); err != nil {
		return nil, err
	}
	if err := s.expediente(f, out); err != nil {
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")
	activeIndex, _ := f.GetSheetIndex(SheetValidations)
	f.SetActiveSheet(activeIndex)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"run_id", out.RunID,
		"rows", rows,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func (s *Service) validations(f *excelize.File, out *pipeline.Outcome) (int, error) {
	w, err := newSheet(f, SheetValidations, "Sección", "Validación", "Descripción", "Resultado", "Análisis", "Acciones", "Error")
	if err != nil {
		return 0, err
	}
	rows := 0
	if out.Report != nil {
		for _, sec := range out.Report.Sections {
			for _, v := range sec.Validations {
				w.line(sec.Name, v.Name, v.Description, outcomeLabel(v.Outcome),
					truncate(v.Analysis, 32000), strings.Join(v.ActionsToTake, "\n"), v.Error)
				rows++
			}
		}
	}
	_ = f.SetColWidth(SheetValidations, "A", "A", 26)
	_ = f.SetColWidth(SheetValidations, "B", "C", 36)
	_ = f.SetColWidth(SheetValidations, "D", "D", 18)
	_ = f.SetColWidth(SheetValidations, "E", "F", 64)
	_ = f.SetColWidth(SheetValidations, "G", "G", 40)
	return rows, nil
}

func (s *Service) partidas(f *excelize.File, out *pipeline.Outcome) error {
	w, err := newSheet(f, SheetPartidas,
		"Secuencia", "Fracción", "NICO", "Página", "Orden", "Descripción", "UMC", "Cantidad UMC",
		"UMT", "Cantidad UMT", "País origen/destino", "Valor aduana", "Precio pagado")
	if err != nil {
		return err
	}
	if out.Pedimento != nil {
		for _, p := range out.Pedimento.Partidas {
			w.line(p.Sequence, p.Fraction, p.Nico, p.Page+1, p.Ordinal, truncate(p.Description, 140),
				p.UMC, p.QuantityUMC, p.UMT, p.QuantityUMT, p.OriginCountry, p.CustomsValue, p.PaidPrice)
		}
	}
	_ = f.SetColWidth(SheetPartidas, "B", "B", 14)
	_ = f.SetColWidth(SheetPartidas, "F", "F", 48)
	_ = f.SetColWidth(SheetPartidas, "L", "M", 16)
	return nil
}

func (s *Service) expediente(f *excelize.File, out *pipeline.Outcome) error {
	w, err := newSheet(f, SheetExpediente, "Tipo", "Documento", "Páginas", "Archivo origen", "Observación")
	if err != nil {
		return err
	}
	for _, c := range out.Classifications {
		if c.Error != "" {
			w.line("", c.File, "", "", "No clasificado: "+c.Error)
		}
	}
	if exp := out.Expediente; exp != nil {
		ped := exp.Pedimento()
		w.line(constants.Pedimento.Label(), ped.Name, pagesLabel(ped.PageCount, ped.Span), ped.SourcePath, "")
		for _, t := range exp.Types() {
			if t == constants.Pedimento {
				continue
			}
			for _, d := range exp.Documents(t) {
				w.line(t.Label(), d.Name, pagesLabel(d.PageCount, d.Span), d.SourcePath, "")
			}
		}
		for _, is := range exp.Issues() {
			w.line("", is.File, "", "", is.Reason)
		}
	}
	_ = f.SetColWidth(SheetExpediente, "A", "A", 22)
	_ = f.SetColWidth(SheetExpediente, "B", "B", 40)
	_ = f.SetColWidth(SheetExpediente, "D", "E", 60)
	return nil
}

// WriteJSON encodes the outcome, indented.
func (s *Service) WriteJSON(w io.Writer, out *pipeline.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("json write: %w", err)
	}
	s.logger.Info("export.json.ok", "run_id", out.RunID)
	return nil
}

func outcomeLabel(o constants.Outcome) string {
	switch o {
	case constants.OutcomePassed:
		return "Correcto"
	case constants.OutcomeFailed:
		return "Incorrecto"
	default:
		return "No verificable"
	}
}

func pagesLabel(count int, span *entity.PageRange) string {
	if span != nil {
		return span.Label()
	}
	if count > 0 {
		return fmt.Sprintf("p1-p%d", count)
	}
	return ""
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

// WriteFiles writes <base>.xlsx and <base>.json into dir.
func (s *Service) WriteFiles(dir, base string, out *pipeline.Outcome) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	xlsx, err := s.ReviewXLSX(out)
	if err != nil {
		return nil, err
	}
	xlsxPath := filepath.Join(dir, base+".xlsx")
	if err := os.WriteFile(xlsxPath, xlsx, 0o644); err != nil {
		return nil, err
	}

	jsonPath := filepath.Join(dir, base+".json")
	f, err := os.Create(jsonPath)
	if err != nil {
		return nil, err
	}
	if err := s.WriteJSON(f, out); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}
	return []string{xlsxPath, jsonPath}, nil
}
