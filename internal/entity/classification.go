package entity

import (
	"fmt"

	"github.com/cargoclaro/glosa-sub000/constants"
)

// ClassificationKind discriminates ClassificationResult.
type ClassificationKind int

const (
	KindSingle ClassificationKind = iota + 1
	KindSegmented
)

func (k ClassificationKind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindSegmented:
		return "segmented"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ClassificationResult is what the classifier says about one input file: either the whole file
// is one document type, or it is a list of typed page ranges. Build it with Single or Segmented.
type ClassificationResult struct {
	Document Document

	kind     ClassificationKind
	single   constants.DocumentType
	segments []Segment
}

func Single(doc Document, t constants.DocumentType) ClassificationResult {
	return ClassificationResult{Document: doc, kind: KindSingle, single: t}
}

func Segmented(doc Document, segments []Segment) ClassificationResult {
	cp := make([]Segment, len(segments))
	copy(cp, segments)
	return ClassificationResult{Document: doc, kind: KindSegmented, segments: cp}
}

func (r ClassificationResult) Kind() ClassificationKind { return r.kind }

// Type returns the label of a Single result.
func (r ClassificationResult) Type() (constants.DocumentType, bool) {
	return r.single, r.kind == KindSingle
}

// Segments returns a copy of the ranges of a Segmented result.
func (r ClassificationResult) Segments() ([]Segment, bool) {
	if r.kind != KindSegmented {
		return nil, false
	}
	cp := make([]Segment, len(r.segments))
	copy(cp, r.segments)
	return cp, true
}

// Summary is the serializable view used in logs and reports (1-based pages).
func (r ClassificationResult) Summary() ClassificationSummary {
	s := ClassificationSummary{File: r.Document.Name, Kind: r.kind.String()}
	switch r.kind {
	case KindSingle:
		s.Type = string(r.single)
	case KindSegmented:
		for _, seg := range r.segments {
			s.Segments = append(s.Segments, SegmentSummary{
				Type:      string(seg.Type),
				StartPage: seg.Range.Start + 1,
				EndPage:   seg.Range.End + 1,
			})
		}
	}
	return s
}

type ClassificationSummary struct {
	File     string           `json:"file"`
	Kind     string           `json:"kind"`
	Type     string           `json:"document_type,omitempty"`
	Segments []SegmentSummary `json:"segments,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type SegmentSummary struct {
	Type      string `json:"document_type"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
}
