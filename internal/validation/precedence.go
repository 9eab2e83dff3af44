package validation

import (
	"sort"
	"strings"

	"github.com/cargoclaro/glosa-sub000/constants"
)

// Candidate is one document's value for a fact.
type Candidate struct {
	Type   constants.DocumentType `json:"tipo"`
	Source string                 `json:"fuente"`
	Value  string                 `json:"valor"`
}

// The stable rules: for imports a Carta 3.1.8 outranks the invoice, which outranks the COVE;
// for exports the CFDI outranks the COVE and the invoice.
var precedence = map[constants.Operation][]constants.DocumentType{
	constants.OperationImport: {constants.Carta318, constants.Invoice, constants.Cove, constants.CFDI},
	constants.OperationExport: {constants.CFDI, constants.Cove, constants.Invoice, constants.Carta318},
}

const (
	precedenceImport = "Precedencia (importación): si existe una Carta 3.1.8 para la factura, sus datos prevalecen sobre la factura comercial; la factura prevalece sobre el COVE."
	precedenceExport = "Precedencia (exportación): el CFDI prevalece sobre el COVE y sobre la factura comercial."
)

func precedenceText(op constants.Operation) string {
	if op == constants.OperationExport {
		return precedenceExport
	}
	return precedenceImport
}

func rank(op constants.Operation, t constants.DocumentType) int {
	for i, r := range precedence[op] {
		if r == t {
			return i
		}
	}
	return len(precedence[op])
}

// Prevail picks the candidate the stable rules favor. Blank values never win. The input
// slice is left untouched so every candidate stays available as evidence.
func Prevail(op constants.Operation, candidates []Candidate) (Candidate, bool) {
	var usable []Candidate
	for _, c := range candidates {
		if strings.TrimSpace(c.Value) != "" {
			usable = append(usable, c)
		}
	}
	if len(usable) == 0 {
		return Candidate{}, false
	}
	sort.SliceStable(usable, func(i, j int) bool { return rank(op, usable[i].Type) < rank(op, usable[j].Type) })
	return usable[0], true
}

// addCandidates puts every candidate under its own provided source, then the prevailing one
// under an inferred block.
func addCandidates(s *Spec, op constants.Operation, field string, candidates []Candidate) {
	for _, c := range candidates {
		s.Add(Provided, c.Source, F(field, c.Value))
	}
	if p, ok := Prevail(op, candidates); ok {
		s.Add(Inferred, "Precedencia", F(field+"_prevaleciente", p))
	}
}
