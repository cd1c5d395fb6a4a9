package api

import (
	"encoding/json"
	"fmt"
	"strconv"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/solatis/formkeeper/internal/loader"
	"github.com/solatis/formkeeper/internal/types"
)

// DiffViews returns an RFC 7386 merge patch turning prev into next.
//
// Sections and inputs are keyed by position ("sections": {"0": {"inputs":
// {"2": ...}}}) so a change to one input yields a patch naming only that
// input. Positions are stable because both views come from one revision.
// An unchanged view yields "{}".
func DiffViews(prev, next *types.FormView) (json.RawMessage, error) {
	prevDoc, err := json.Marshal(keyedView(prev))
	if err != nil {
		return nil, fmt.Errorf("failed to encode previous view: %w", err)
	}
	nextDoc, err := json.Marshal(keyedView(next))
	if err != nil {
		return nil, fmt.Errorf("failed to encode view: %w", err)
	}
	patch, err := jsonpatch.CreateMergePatch(prevDoc, nextDoc)
	if err != nil {
		return nil, fmt.Errorf("failed to compute view delta: %w", err)
	}
	return patch, nil
}

// keyedView re-shapes a view for merge patching: every array of nodes
// becomes an object keyed by index.
func keyedView(v *types.FormView) map[string]any {
	sections := make(map[string]any, len(v.Sections))
	for i, s := range v.Sections {
		inputs := make(map[string]any, len(s.Inputs))
		for j, in := range s.Inputs {
			inputs[strconv.Itoa(j)] = map[string]any{
				"name":  in.Name,
				"type":  in.Type,
				"label": in.Label,
				"state": in.State,
			}
		}
		sections[strconv.Itoa(i)] = map[string]any{
			"name":   s.Name,
			"title":  s.Title,
			"state":  s.State,
			"inputs": inputs,
		}
	}
	return map[string]any{
		"title":    v.Title,
		"hint":     v.Hint,
		"warning":  v.Warning,
		"error":    v.Error,
		"sections": sections,
	}
}

// ApplyDataPatch applies RFC 6902 operations to a snapshot and returns the
// patched copy. The input snapshot is not modified.
func ApplyDataPatch(data types.Data, ops json.RawMessage) (types.Data, error) {
	if len(ops) == 0 {
		return data, nil
	}
	if data == nil {
		data = types.Data{}
	}

	current, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", ErrInvalidArgument, err)
	}
	patch, err := jsonpatch.DecodePatch(ops)
	if err != nil {
		return nil, fmt.Errorf("%w: patch: %v", ErrInvalidArgument, err)
	}
	modified, err := patch.Apply(current)
	if err != nil {
		return nil, fmt.Errorf("%w: patch: %v", ErrInvalidArgument, err)
	}

	patched, err := loader.DecodeData(modified, loader.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("%w: patched snapshot: %v", ErrInvalidArgument, err)
	}
	return patched, nil
}
