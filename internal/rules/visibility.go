package rules

import "github.com/solatis/formkeeper/internal/types"

// Visibility is the effective hidden/disabled pair of one Section or Input.
type Visibility struct {
	Hidden   bool
	Disabled bool
}

// resolve applies the static-flag short-circuit: a static true is final and
// the matching *Where condition is never evaluated. Absent flags and
// conditions resolve to false.
func (v compiledVisibility) resolve(data any) Visibility {
	return Visibility{
		Hidden:   v.Hidden || (v.HiddenWhere != nil && Matches(v.HiddenWhere, data)),
		Disabled: v.Disabled || (v.DisabledWhere != nil && Matches(v.DisabledWhere, data)),
	}
}

// ResolveVisibility computes the effective flags of a single entity without
// compiling a whole form. Conditions are compiled with the default depth
// limit, and only when the static flag does not already decide the result.
func ResolveVisibility(e types.Entity, data any) Visibility {
	var out Visibility
	if e.IsHidden() {
		out.Hidden = true
	} else if raw := e.HiddenCondition(); raw != nil {
		out.Hidden = MatchesRaw(raw, data)
	}
	if e.IsDisabled() {
		out.Disabled = true
	} else if raw := e.DisabledCondition(); raw != nil {
		out.Disabled = MatchesRaw(raw, data)
	}
	return out
}
