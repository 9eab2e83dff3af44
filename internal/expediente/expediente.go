package expediente

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
)

// Expediente is the frozen case file. Build it with a Builder or Assemble.
type Expediente struct {
	ID        uuid.UUID
	pedimento entity.Document
	documents map[constants.DocumentType][]entity.Document
	issues    []Issue
}

// Issue is a non-fatal problem met while assembling, kept for the report.
type Issue struct {
	File   string `json:"file"`
	Reason string `json:"reason"`
}

// Pedimento returns the lead document. It is always present on a frozen expediente.
func (e *Expediente) Pedimento() entity.Document { return e.pedimento }

// Documents returns a copy of the documents of type t, in fold order.
func (e *Expediente) Documents(t constants.DocumentType) []entity.Document {
	if t == constants.Pedimento {
		return []entity.Document{e.pedimento}
	}
	src := e.documents[t]
	out := make([]entity.Document, len(src))
	copy(out, src)
	return out
}

func (e *Expediente) Count(t constants.DocumentType) int {
	if t == constants.Pedimento {
		return 1
	}
	return len(e.documents[t])
}

// Types lists the non-empty types in canonical order.
func (e *Expediente) Types() []constants.DocumentType {
	var out []constants.DocumentType
	for _, t := range constants.AllDocumentTypes() {
		if e.Count(t) > 0 {
			out = append(out, t)
		}
	}
	return out
}

func (e *Expediente) Issues() []Issue {
	out := make([]Issue, len(e.issues))
	copy(out, e.issues)
	return out
}

type docView struct {
	Name       string            `json:"name"`
	Format     string            `json:"format"`
	PageCount  int               `json:"page_count"`
	SourcePath string            `json:"source_path,omitempty"`
	Span       *entity.PageRange `json:"span,omitempty"`
}

// MarshalJSON renders the expediente without document bytes.
func (e *Expediente) MarshalJSON() ([]byte, error) {
	view := func(d entity.Document) docView {
		return docView{Name: d.Name, Format: d.Format, PageCount: d.PageCount, SourcePath: d.SourcePath, Span: d.Span}
	}
	docs := map[string][]docView{}
	for _, t := range e.Types() {
		for _, d := range e.Documents(t) {
			docs[string(t)] = append(docs[string(t)], view(d))
		}
	}
	return json.Marshal(struct {
		ID        uuid.UUID            `json:"id"`
		Documents map[string][]docView `json:"documents"`
		Issues    []Issue              `json:"issues,omitempty"`
	}{ID: e.ID, Documents: docs, Issues: e.issues})
}
