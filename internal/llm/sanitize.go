package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	reDecimal   = regexp.MustCompile(DecimalPattern)
	reThousands = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
)

// ungroup removes thousands separators only when the commas are real grouping, so
// "1,234.50" becomes "1234.50" while "1.234,56" is left untouched.
func ungroup(s string) string {
	if reThousands.MatchString(s) {
		return strings.ReplaceAll(s, ",", "")
	}
	return s
}

// SanitizeAgainstSchema walks raw JSON alongside its schema and repairs the usual adjudicator
// slips so the document can still validate:
//   - drops null/empty optionals and keys the schema does not declare
//   - coerces numbers to strings (and numeric strings to numbers) per the declared type
//   - strips thousands separators and currency signs from decimal strings; other comma
//     placements are dropped rather than guessed
//   - matches enum values case-insensitively
//   - wraps a lone object where an array is expected
//
// It returns the repaired JSON and the list of touched paths.
func SanitizeAgainstSchema(raw []byte, schema map[string]any, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	s := &sanitizer{}
	out, keep := s.walk("$", v, schema)
	if !keep {
		out = map[string]any{}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, s.touched, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(s.touched) > 0 {
		logger.Warn("llm.sanitize.applied", "touched", s.touched)
	}
	return b, s.touched, nil
}

type sanitizer struct {
	touched []string
}

func (s *sanitizer) note(path, what string) {
	s.touched = append(s.touched, path+"("+what+")")
}

// walk returns the repaired value and whether it should be kept.
func (s *sanitizer) walk(path string, v any, schema map[string]any) (any, bool) {
	if v == nil {
		s.note(path, "null")
		return nil, false
	}
	typ, _ := schema["type"].(string)
	switch typ {
	case "object":
		m, ok := v.(map[string]any)
		if !ok {
			s.note(path, "type")
			return nil, false
		}
		return s.object(path, m, schema), true
	case "array":
		items, _ := schema["items"].(map[string]any)
		arr, ok := v.([]any)
		if !ok {
			if _, isObj := v.(map[string]any); isObj {
				s.note(path, "wrapped")
				arr = []any{v}
			} else {
				s.note(path, "type")
				return nil, false
			}
		}
		out := make([]any, 0, len(arr))
		for i, it := range arr {
			if items == nil {
				out = append(out, it)
				continue
			}
			if fixed, keep := s.walk(fmt.Sprintf("%s[%d]", path, i), it, items); keep {
				out = append(out, fixed)
			}
		}
		return out, true
	case "string":
		return s.str(path, v, schema)
	case "integer", "number":
		return s.num(path, v, typ)
	case "boolean":
		return s.boolean(path, v)
	default:
		return v, true
	}
}

func (s *sanitizer) object(path string, m map[string]any, schema map[string]any) map[string]any {
	props, _ := schema["properties"].(map[string]any)
	required := map[string]bool{}
	switch r := schema["required"].(type) {
	case []any:
		for _, k := range r {
			if ks, ok := k.(string); ok {
				required[ks] = true
			}
		}
	case []string:
		for _, k := range r {
			required[k] = true
		}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]any, len(m))
	for _, k := range keys {
		sub, declared := props[k].(map[string]any)
		if !declared {
			if open, ok := schema["additionalProperties"].(bool); ok && !open {
				s.note(path+"."+k, "unknown")
				continue
			}
			out[k] = m[k]
			continue
		}
		fixed, keep := s.walk(path+"."+k, m[k], sub)
		if !keep && !required[k] {
			continue
		}
		if !keep {
			// required but unusable: leave it for validation to reject
			out[k] = m[k]
			continue
		}
		out[k] = fixed
	}
	return out
}

func (s *sanitizer) str(path string, v any, schema map[string]any) (any, bool) {
	var str string
	switch t := v.(type) {
	case string:
		str = strings.TrimSpace(t)
	case float64:
		str = strconv.FormatFloat(t, 'f', -1, 64)
		s.note(path, "number->string")
	case bool:
		str = strconv.FormatBool(t)
		s.note(path, "bool->string")
	default:
		s.note(path, "type")
		return nil, false
	}
	if str == "" || strings.EqualFold(str, "null") || str == "N/A" {
		s.note(path, "empty")
		return nil, false
	}

	if pattern, _ := schema["pattern"].(string); pattern == DecimalPattern && !reDecimal.MatchString(str) {
		cleaned := ungroup(strings.NewReplacer("$", "", " ", "", "USD", "", "MXN", "").Replace(str))
		if reDecimal.MatchString(cleaned) {
			s.note(path, "decimal")
			str = cleaned
		} else {
			s.note(path, "not-decimal")
			return nil, false
		}
	}

	if enum, ok := schema["enum"].([]any); ok {
		for _, e := range enum {
			if es, ok := e.(string); ok && es != str && strings.EqualFold(es, str) {
				s.note(path, "enum-case")
				return es, true
			}
		}
	}
	return str, true
}

func (s *sanitizer) num(path string, v any, typ string) (any, bool) {
	switch t := v.(type) {
	case float64:
		if typ == "integer" && t != float64(int64(t)) {
			s.note(path, "fraction")
			return nil, false
		}
		return t, true
	case string:
		f, err := strconv.ParseFloat(ungroup(strings.TrimSpace(t)), 64)
		if err != nil {
			s.note(path, "not-number")
			return nil, false
		}
		if typ == "integer" {
			if f != float64(int64(f)) {
				s.note(path, "fraction")
				return nil, false
			}
			s.note(path, "string->number")
			return int64(f), true
		}
		s.note(path, "string->number")
		return f, true
	default:
		s.note(path, "type")
		return nil, false
	}
}

func (s *sanitizer) boolean(path string, v any) (any, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "si", "sí", "yes", "verdadero":
			s.note(path, "string->bool")
			return true, true
		case "false", "no", "falso":
			s.note(path, "string->bool")
			return false, true
		}
	}
	s.note(path, "type")
	return nil, false
}
