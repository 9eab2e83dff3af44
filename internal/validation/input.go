package validation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cargoclaro/glosa-sub000/constants"
	"github.com/cargoclaro/glosa-sub000/internal/catalog"
	"github.com/cargoclaro/glosa-sub000/internal/entity"
	"github.com/cargoclaro/glosa-sub000/internal/extract"
	"github.com/cargoclaro/glosa-sub000/internal/tariff"
)

// ErrCatalogMissing blocks checks whose reference catalog was not loaded.
var ErrCatalogMissing = errors.New("reference catalog not loaded")

// Input is everything a section builder reads. Builders never call out; lookups are
// prefetched into Tariffs.
type Input struct {
	Pedimento *entity.Pedimento // nil when the pedimento could not be extracted
	Documents extract.Documents
	Catalogs  catalog.Set
	Tariffs   *tariff.Snapshot
	Failures  []ExtractionFailure
}

// ExtractionFailure is a document or sub-extraction that produced no data.
type ExtractionFailure struct {
	Document string
	Stage    string
	Err      error
}

func (in *Input) Operation() constants.Operation {
	if in.Pedimento == nil {
		return constants.OperationImport
	}
	return constants.ParseOperation(in.Pedimento.Header.Operation)
}

var dateLayouts = []string{"2006-01-02", "02/01/2006", "02-01-2006", "02/01/06", "2006/01/02"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if len(s) > 10 && strings.Contains(s, "T") {
		s = s[:10]
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TariffDate is the date whose tariff applies: entry date, else payment date.
func (in *Input) TariffDate() time.Time {
	if in.Pedimento == nil {
		return time.Time{}
	}
	if t, ok := parseDate(in.Pedimento.Header.EntryDate); ok {
		return t
	}
	t, _ := parseDate(in.Pedimento.Header.PaymentDate)
	return t
}

// ExchangeDate is the day before payment; the official rate in force is the latest
// published on or before it.
func (in *Input) ExchangeDate() time.Time {
	if in.Pedimento == nil {
		return time.Time{}
	}
	t, ok := parseDate(in.Pedimento.Header.PaymentDate)
	if !ok {
		t = in.TariffDate()
	}
	return t.AddDate(0, 0, -1)
}

func (in *Input) tariffQuery(p entity.Partida) tariff.Query {
	return tariff.Query{
		Fraction:  p.Fraction,
		Nico:      p.Nico,
		Date:      in.TariffDate(),
		Operation: in.Operation(),
		Origin:    p.OriginCountry,
	}
}

// TariffQueries lists one lookup per partida.
func (in *Input) TariffQueries() []tariff.Query {
	if in.Pedimento == nil {
		return nil
	}
	out := make([]tariff.Query, 0, len(in.Pedimento.Partidas))
	for _, p := range in.Pedimento.Partidas {
		if strings.TrimSpace(p.Fraction) == "" {
			continue
		}
		out = append(out, in.tariffQuery(p))
	}
	return out
}

// Currencies lists USD plus every foreign invoice currency, for exchange-rate prefetch.
func (in *Input) Currencies() []string {
	seen := map[string]bool{"USD": true}
	out := []string{"USD"}
	add := func(c string) {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || c == "MXN" || seen[c] {
			return
		}
		seen[c] = true
		out = append(out, c)
	}
	if in.Pedimento != nil {
		for _, f := range in.Pedimento.Header.Invoices {
			add(f.Currency)
		}
	}
	for _, f := range in.Documents.Invoices {
		add(f.Currency)
	}
	return out
}

func source(t constants.DocumentType, name string) string {
	if name == "" {
		return t.Label()
	}
	return fmt.Sprintf("%s (%s)", t.Label(), name)
}

const (
	srcPedimento = "Pedimento"
	srcComputed  = "Cálculo"
)

// dec parses a printed amount; blanks and unparsable values report false.
func dec(s string) (decimal.Decimal, bool) {
	s = strings.NewReplacer(",", "", "$", "", " ", "").Replace(strings.TrimSpace(s))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// sum adds the parsable values and reports which were skipped.
func sum(values ...string) (decimal.Decimal, int) {
	total := decimal.Zero
	skipped := 0
	for _, v := range values {
		d, ok := dec(v)
		if !ok {
			skipped++
			continue
		}
		total = total.Add(d)
	}
	return total, skipped
}

// computed renders an inferred amount with the inputs it came from.
func computed(value decimal.Decimal, formula string, skipped int) map[string]any {
	out := map[string]any{"valor": value.StringFixed(2), "formula": formula}
	if skipped > 0 {
		out["valores_omitidos"] = skipped
	}
	return out
}
