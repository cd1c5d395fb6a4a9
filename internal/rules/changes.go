package rules

import "github.com/solatis/formkeeper/internal/types"

/*
 * Change application.
 *
 * ApplyChanges folds matched changes, in declaration order, onto an entity's
 * base state:
 *   - hint/warning/error: the last non-nil override wins (full replace)
 *   - customProps: shallow key-wise merge starting from the static props;
 *     later changes overwrite matching keys, add new keys, and leave the rest
 *
 * Neither the base state nor the changes are mutated. Merged maps are fresh
 * and hold deep copies of change values.
 */

// MergeProps returns a new map with base's entries overlaid by overlay's.
// Returns nil only when both inputs are nil.
func MergeProps[K comparable, V any](base, overlay map[K]V) map[K]V {
	if base == nil && overlay == nil {
		return nil
	}
	out := make(map[K]V, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// ApplyChanges folds changes onto base and returns the effective state.
// Hidden and Disabled are carried through untouched.
func ApplyChanges(base types.State, changes []types.Change) types.State {
	out := base
	for i := range changes {
		applyChange(&out, &changes[i])
	}
	return out
}

// applyChange folds one change onto state in place.
func applyChange(state *types.State, change *types.Change) {
	if change.Hint != nil {
		state.Hint = *change.Hint
	}
	if change.Warning != nil {
		state.Warning = *change.Warning
	}
	if change.Error != nil {
		state.Error = *change.Error
	}
	if change.CustomProps != nil {
		state.CustomProps = MergeProps(state.CustomProps, CloneProps(change.CustomProps))
	}
}
