// Package catalog loads the read-only reference tables supplied to validations as external
// evidence: identifiers, units of measure, countries, container types and the like.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Well-known catalog names used by the validation sections.
const (
	Identifiers = "identificadores"
	Units       = "unidades_medida"
	Countries   = "paises"
	Containers  = "tipos_contenedor"
	Currencies  = "monedas"
	Incoterms   = "incoterms"
)

var ErrUnsupportedFormat = errors.New("unsupported catalog format")

// Entry is one row of a catalog. Attributes hold every extra column by header name.
type Entry struct {
	Code        string            `json:"clave"`
	Description string            `json:"descripcion"`
	Attributes  map[string]string `json:"atributos,omitempty"`
}

// Catalog is a versioned table keyed by code.
type Catalog struct {
	Name    string  `json:"nombre"`
	Version string  `json:"version"`
	Entries []Entry `json:"entradas"`

	index map[string]int
}

// New builds an indexed catalog.
func New(name, version string, entries ...Entry) *Catalog {
	c := &Catalog{Name: name, Version: version, Entries: entries}
	c.reindex()
	return c
}

func (c *Catalog) reindex() {
	c.index = make(map[string]int, len(c.Entries))
	for i, e := range c.Entries {
		c.index[normalizeCode(e.Code)] = i
	}
}

func normalizeCode(code string) string { return strings.ToUpper(strings.TrimSpace(code)) }

// Lookup finds an entry by code, ignoring case and surrounding spaces.
func (c *Catalog) Lookup(code string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	key := normalizeCode(code)
	if c.index == nil {
		for _, e := range c.Entries {
			if normalizeCode(e.Code) == key {
				return e, true
			}
		}
		return Entry{}, false
	}
	i, ok := c.index[key]
	if !ok {
		return Entry{}, false
	}
	return c.Entries[i], true
}

// Label is how the catalog is cited in validation evidence.
func (c *Catalog) Label() string {
	if c.Version == "" {
		return "Catálogo " + c.Name
	}
	return fmt.Sprintf("Catálogo %s (v%s)", c.Name, c.Version)
}

// Set is every loaded catalog by name. It is read-only after Load.
type Set map[string]*Catalog

// Get returns the named catalog or nil.
func (s Set) Get(name string) *Catalog { return s[name] }

// Names lists the loaded catalogs sorted by name.
func (s Set) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Load reads every path (.xlsx or .json) into one Set. A later file replaces an earlier
// catalog with the same name.
func Load(paths []string, logger *slog.Logger) (Set, error) {
	if logger == nil {
		logger = slog.Default()
	}
	set := Set{}
	for _, p := range paths {
		var (
			cats []*Catalog
			err  error
		)
		switch strings.ToLower(filepath.Ext(p)) {
		case ".xlsx":
			cats, err = LoadXLSX(p)
		case ".json":
			var f *os.File
			f, err = os.Open(p)
			if err == nil {
				cats, err = LoadJSON(f)
				_ = f.Close()
			}
		default:
			err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, p)
		}
		if err != nil {
			return nil, fmt.Errorf("load catalog %s: %w", p, err)
		}
		for _, c := range cats {
			set[c.Name] = c
			logger.Info("catalog.load.ok", "path", p, "catalog", c.Name, "version", c.Version, "entries", len(c.Entries))
		}
	}
	return set, nil
}

// LoadJSON reads either one catalog object or an array of them.
func LoadJSON(r io.Reader) ([]*Catalog, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var many []*Catalog
	if err := json.Unmarshal(raw, &many); err != nil {
		var one Catalog
		if err2 := json.Unmarshal(raw, &one); err2 != nil {
			return nil, fmt.Errorf("decode catalog json: %w", err)
		}
		many = []*Catalog{&one}
	}
	for _, c := range many {
		if c.Name == "" {
			return nil, errors.New("catalog without nombre")
		}
		c.reindex()
	}
	return many, nil
}

// LoadXLSX reads every non-empty sheet as a catalog named after the sheet. The first row is
// the header; the first column is the code and the second the description. The workbook's
// version property, when set, versions every catalog in it.
func LoadXLSX(path string) ([]*Catalog, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	version := ""
	if props, err := f.GetDocProps(); err == nil && props != nil {
		version = props.Version
	}

	var out []*Catalog
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", sheet, err)
		}
		if len(rows) < 2 {
			continue
		}
		header := rows[0]
		c := &Catalog{Name: strings.ToLower(strings.TrimSpace(sheet)), Version: version}
		for _, row := range rows[1:] {
			if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
				continue
			}
			e := Entry{Code: strings.TrimSpace(row[0])}
			if len(row) > 1 {
				e.Description = strings.TrimSpace(row[1])
			}
			for col := 2; col < len(row) && col < len(header); col++ {
				if v := strings.TrimSpace(row[col]); v != "" {
					if e.Attributes == nil {
						e.Attributes = map[string]string{}
					}
					e.Attributes[strings.TrimSpace(header[col])] = v
				}
			}
			c.Entries = append(c.Entries, e)
		}
		c.reindex()
		out = append(out, c)
	}
	return out, nil
}
