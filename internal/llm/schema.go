package llm

// Schema builders. Every object is closed (additionalProperties=false) so the lenient
// sanitizer can drop keys the adjudicator invents.

// DecimalPattern accepts plain decimals; amounts keep their printed precision.
const DecimalPattern = `^-?\d+(\.\d+)?$`

func String() map[string]any {
	return map[string]any{"type": "string"}
}

func NonEmptyString() map[string]any {
	return map[string]any{"type": "string", "minLength": 1}
}

func Decimal() map[string]any {
	return map[string]any{"type": "string", "pattern": DecimalPattern}
}

func Integer(minimum int) map[string]any {
	return map[string]any{"type": "integer", "minimum": minimum}
}

// BoundedInteger is Integer with an upper limit.
func BoundedInteger(minimum, maximum int) map[string]any {
	return map[string]any{"type": "integer", "minimum": minimum, "maximum": maximum}
}

func Boolean() map[string]any {
	return map[string]any{"type": "boolean"}
}

func Enum(values ...string) map[string]any {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return map[string]any{"type": "string", "enum": vs}
}

func Array(items map[string]any) map[string]any {
	return map[string]any{"type": "array", "items": items}
}

func Object(props map[string]any, required ...string) map[string]any {
	out := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, r := range required {
			req[i] = r
		}
		out["required"] = req
	}
	return out
}
