package loader

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// maxNesting bounds document nesting during normalization.
const maxNesting = 256

// Normalize converts a decoded document into the JSON value model:
// YAML's map[any]any becomes map[string]any, every number becomes float64,
// and timestamps become RFC 3339 strings. The input is not modified.
func Normalize(v any) (any, error) {
	return normalize(v, 0)
}

func normalize(v any, depth int) (any, error) {
	if depth > maxNesting {
		return nil, fmt.Errorf("document nesting exceeds %d levels", maxNesting)
	}

	switch val := v.(type) {
	case nil, bool, string:
		return val, nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil, fmt.Errorf("non-finite number %v is not representable", val)
		}
		return val, nil
	case float32:
		return normalize(float64(val), depth)
	case int:
		return float64(val), nil
	case int64:
		return float64(val), nil
	case uint64:
		return float64(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", val, err)
		}
		return f, nil
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano), nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			n, err := normalize(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			n, err := normalize(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprint(k)
			}
			n, err := normalize(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

// kindOf names a normalized value's JSON kind for error messages.
func kindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
