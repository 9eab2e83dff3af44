package entity

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cargoclaro/glosa-sub000/constants"
)

// Document is one file (or one split-out part of a file) flowing through the pipeline.
type Document struct {
	Name       string     `json:"name"`
	Format     string     `json:"format"` // constants.PDF | XML | IMAGE
	MediaType  string     `json:"media_type"`
	PageCount  int        `json:"page_count"` // 0 for non-paginated formats
	SourcePath string     `json:"source_path,omitempty"`
	HashHex    string     `json:"hash,omitempty"`
	Span       *PageRange `json:"span,omitempty"` // pages of SourcePath this part covers
	Data       []byte     `json:"-"`
}

// Paginated reports whether the document is page-addressable.
func (d Document) Paginated() bool { return constants.Paginated(d.Format) }

// Base returns the file name without its extension.
func (d Document) Base() string {
	return strings.TrimSuffix(d.Name, filepath.Ext(d.Name))
}

// PageRange is a 0-based inclusive span of pages.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len is the number of pages covered.
func (r PageRange) Len() int { return r.End - r.Start + 1 }

// Label renders the range with 1-based page numbers, e.g. "p1-p3".
func (r PageRange) Label() string {
	return fmt.Sprintf("p%d-p%d", r.Start+1, r.End+1)
}

func (r PageRange) String() string { return r.Label() }

// Clamp fits the range into a container of pageCount pages.
// It returns false when nothing valid remains.
func (r PageRange) Clamp(pageCount int) (PageRange, bool) {
	start := max(0, r.Start)
	end := min(pageCount-1, r.End)
	if start > end || start >= pageCount {
		return PageRange{}, false
	}
	return PageRange{Start: start, End: end}, true
}

// Pages lists every page index in the range.
func (r PageRange) Pages() []int {
	if r.End < r.Start {
		return nil
	}
	out := make([]int, 0, r.Len())
	for p := r.Start; p <= r.End; p++ {
		out = append(out, p)
	}
	return out
}

// Segment is one typed page range inside a container.
type Segment struct {
	Type  constants.DocumentType `json:"document_type"`
	Range PageRange              `json:"range"`
}

// RangeError reports a segment that could not be materialized; it is never fatal.
type RangeError struct {
	Document  string
	Segment   Segment
	PageCount int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("range %d..%d of %s (%s) outside %d pages",
		e.Segment.Range.Start, e.Segment.Range.End, e.Document, e.Segment.Type, e.PageCount)
}
