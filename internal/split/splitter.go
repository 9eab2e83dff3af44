package split

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
)

// Part is one materialized sub-document with the type its segment declared.
type Part struct {
	Document entity.Document
	Type     constants.DocumentType
}

// Result lists the parts in segment order plus the segments that were skipped.
type Result struct {
	Parts   []Part
	Skipped []*entity.RangeError
}

// Splitter turns classified page ranges into standalone documents.
type Splitter struct {
	engine Engine
	logger *slog.Logger
}

func New(engine Engine, logger *slog.Logger) *Splitter {
	if engine == nil {
		engine = NewPDFCPUEngine()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Splitter{engine: engine, logger: logger}
}

// Split materializes every segment of container. Non-paginated containers are not split:
// each segment maps to the container itself. Invalid ranges are skipped, never fatal; an
// error is returned only when the container itself cannot be read.
func (s *Splitter) Split(container entity.Document, segments []entity.Segment) (Result, error) {
	var res Result
	if !container.Paginated() {
		for _, seg := range segments {
			res.Parts = append(res.Parts, Part{Document: container, Type: seg.Type})
		}
		return res, nil
	}

	start := time.Now()
	pageCount := container.PageCount
	if pageCount <= 0 {
		n, err := s.engine.PageCount(container.Data)
		if err != nil {
			return Result{}, fmt.Errorf("split %s: %w", container.Name, err)
		}
		pageCount = n
	}

	for _, seg := range segments {
		r, ok := seg.Range.Clamp(pageCount)
		if !ok {
			rerr := &entity.RangeError{Document: container.Name, Segment: seg, PageCount: pageCount}
			s.logger.Warn("split.range_skipped", "doc", container.Name, "type", seg.Type, "error", rerr.Error())
			res.Skipped = append(res.Skipped, rerr)
			continue
		}
		data, err := s.engine.Extract(container.Data, r)
		if err != nil {
			return Result{}, fmt.Errorf("split %s: %w", container.Name, err)
		}
		res.Parts = append(res.Parts, Part{Document: subDocument(container, seg.Type, r, data), Type: seg.Type})
	}

	s.logger.Info("split.ok",
		"doc", container.Name,
		"segments", len(segments),
		"parts", len(res.Parts),
		"skipped", len(res.Skipped),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// PartName is the deterministic file name of a split: {base}_{type}_p{start+1}-p{end+1}.pdf
func PartName(container entity.Document, t constants.DocumentType, r entity.PageRange) string {
	return fmt.Sprintf("%s_%s_%s.pdf", container.Base(), t, r.Label())
}

func subDocument(container entity.Document, t constants.DocumentType, r entity.PageRange, data []byte) entity.Document {
	span := r
	if container.Span != nil {
		span = entity.PageRange{Start: container.Span.Start + r.Start, End: container.Span.Start + r.End}
	}
	return entity.Document{
		Name:       PartName(container, t, r),
		Format:     constants.PDF,
		MediaType:  container.MediaType,
		PageCount:  r.Len(),
		SourcePath: container.SourcePath,
		Span:       &span,
		Data:       data,
	}
}
