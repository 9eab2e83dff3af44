// Package validation builds named cross-document checks from an extracted expediente, has the
// adjudicator judge each one and groups the outcomes into a report.
package validation

import (
	"time"

	"github.com/cargoclaro/glosa-sub000/constants"
)

// Category is the evidentiary category of a context block.
type Category string

const (
	Provided Category = "provided" // read directly from a document
	Inferred Category = "inferred" // computed here from provided values
	External Category = "external" // catalogs, tariff and exchange-rate lookups
)

var categoryOrder = []Category{Provided, Inferred, External}

// Label is the Spanish heading used in adjudicator evidence.
func (c Category) Label() string {
	switch c {
	case Provided:
		return "Proporcionado"
	case Inferred:
		return "Inferido"
	case External:
		return "Externo"
	}
	return string(c)
}

// Field is one named value inside a context block.
type Field struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

func F(name string, value any) Field { return Field{Name: name, Value: value} }

// Spec is one validation to run. It carries no state across runs. When Blocked is set the
// check is reported as could-not-verify without asking the adjudicator.
type Spec struct {
	Name         string
	Description  string
	Instructions string
	Contexts     map[Category]map[string][]Field
	Blocked      error
}

func NewSpec(name, description, instructions string) *Spec {
	return &Spec{Name: name, Description: description, Instructions: instructions, Contexts: map[Category]map[string][]Field{}}
}

// Add appends fields under a category and source label. Nil values are skipped.
func (s *Spec) Add(cat Category, source string, fields ...Field) *Spec {
	for _, f := range fields {
		if f.Value == nil {
			continue
		}
		if s.Contexts[cat] == nil {
			s.Contexts[cat] = map[string][]Field{}
		}
		s.Contexts[cat][source] = append(s.Contexts[cat][source], f)
	}
	return s
}

// Block marks the spec as not verifiable; the first reason wins.
func (s *Spec) Block(err error) *Spec {
	if s.Blocked == nil {
		s.Blocked = err
	}
	return s
}

// Fields returns the fields of one source in one category.
func (s *Spec) Fields(cat Category, source string) []Field {
	return s.Contexts[cat][source]
}

// Section is a named group of specs, in the order the builder produced them.
type Section struct {
	Name  string
	Specs []*Spec
}

// Result is the judged outcome of one Spec.
type Result struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Analysis      string            `json:"analysis"`
	Valid         bool              `json:"is_valid"`
	ActionsToTake []string          `json:"actions_to_take"`
	Outcome       constants.Outcome `json:"outcome"`
	Error         string            `json:"error,omitempty"`
}

type SectionResult struct {
	Name        string   `json:"section"`
	Validations []Result `json:"validations"`
}

// Report lists sections in declared order.
type Report struct {
	RunID     string          `json:"run_id"`
	CreatedAt time.Time       `json:"created_at"`
	Sections  []SectionResult `json:"sections"`
}

type Summary struct {
	Passed     int `json:"passed"`
	Failed     int `json:"failed"`
	Unverified int `json:"could_not_verify"`
}

func (s Summary) Total() int { return s.Passed + s.Failed + s.Unverified }

func (r *Report) Summary() Summary {
	var s Summary
	for _, sec := range r.Sections {
		for _, v := range sec.Validations {
			switch v.Outcome {
			case constants.OutcomePassed:
				s.Passed++
			case constants.OutcomeFailed:
				s.Failed++
			default:
				s.Unverified++
			}
		}
	}
	return s
}

// Section returns the named section, if present.
func (r *Report) Section(name string) (SectionResult, bool) {
	for _, s := range r.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return SectionResult{}, false
}
