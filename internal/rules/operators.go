// internal/rules/operators.go
package rules

/*
 * Equality over the JSON value model.
 *
 * Equal is the only comparison the condition grammar needs. Both operands
 * pass through Coerce first, so int(30) equals float64(30) while "30" does
 * not. Composite values compare structurally: maps by key set and per-key
 * equality, slices by length and element order.
 *
 * Equality must not depend on which decoder produced the snapshot: int
 * and float64, []string and []any compare by value, not by Go type.
 */

// Equal reports deep structural equality with strict scalar types.
func Equal(a, b any) bool {
	ca, ok := Coerce(a)
	if !ok {
		return false
	}
	cb, ok := Coerce(b)
	if !ok {
		return false
	}

	switch va := ca.(type) {
	case nil:
		return cb == nil
	case bool:
		vb, ok := cb.(bool)
		return ok && va == vb
	case string:
		vb, ok := cb.(string)
		return ok && va == vb
	case float64:
		vb, ok := cb.(float64)
		return ok && va == vb
	case []any:
		vb, ok := cb.([]any)
		return ok && equalSlices(va, vb)
	case map[string]any:
		vb, ok := cb.(map[string]any)
		return ok && equalMaps(va, vb)
	default:
		return false
	}
}

// equalSlices compares element-wise in order.
func equalSlices(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

// equalMaps compares key sets and per-key values.
func equalMaps(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || !Equal(va, vb) {
			return false
		}
	}
	return true
}
