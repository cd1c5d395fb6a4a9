// internal/rules/coercion.go
package rules

import (
	"encoding/json"
)

/*
 * Value coercion into the JSON value model.
 *
 * Snapshots and condition operands arrive from JSON, YAML or Go callers, so
 * the same logical value can show up as int, int64, float64 or json.Number.
 * Coerce folds every supported representation into one canonical model
 * before comparison:
 *
 *   - nil
 *   - bool
 *   - float64 (all Go integer and float kinds, json.Number)
 *   - string
 *   - []any (also []string, []map[string]any)
 *   - map[string]any (also map[string]string)
 *
 * Strings are never parsed as numbers: "30" and 30 are different values.
 * Anything else is unsupported and compares unequal to everything,
 * including itself, so exotic caller types fail closed.
 */

// Coerce converts value into the canonical JSON value model.
// Returns false for unsupported types.
func Coerce(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case bool:
		return v, true
	case string:
		return v, true
	case float64:
		return v, true
	case map[string]any, []any:
		return v, true
	}
	if n, ok := toFloat64(value); ok {
		return n, true
	}
	switch v := value.(type) {
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return nil, false
		}
		return f, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = m
		}
		return out, true
	case map[string]string:
		out := make(map[string]any, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// toFloat64 converts Go numeric kinds to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// CloneValue deep-copies maps and slices so a resolved view never shares
// mutable state with the spec it was derived from. Scalars are returned as is.
func CloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return CloneProps(v)
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = CloneValue(elem)
		}
		return out
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	case []string:
		out := make([]string, len(v))
		copy(out, v)
		return out
	default:
		return v
	}
}

// CloneProps deep-copies a customProps bag. Returns nil for nil input.
func CloneProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = CloneValue(v)
	}
	return out
}
