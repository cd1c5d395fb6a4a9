package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/solatis/formkeeper/internal/loader"
	"github.com/solatis/formkeeper/internal/types"
)

// ResolveRequest evaluates a stored form against a snapshot. An empty
// RevisionID selects the current revision.
type ResolveRequest struct {
	FormID     types.FormID     `json:"form_id"`
	RevisionID types.RevisionID `json:"revision_id,omitempty"`
	Data       map[string]any   `json:"data"`
}

// ResolveResponse carries the Resolved Form View.
type ResolveResponse struct {
	FormID     types.FormID     `json:"form_id"`
	RevisionID types.RevisionID `json:"revision_id"`
	View       *types.FormView  `json:"view"`
	HasErrors  bool             `json:"has_errors"`
}

// ResolveDeltaRequest evaluates a form for two snapshots. The new snapshot
// is either Current or, when Patch is set, Previous with the RFC 6902
// operations in Patch applied.
type ResolveDeltaRequest struct {
	FormID     types.FormID     `json:"form_id"`
	RevisionID types.RevisionID `json:"revision_id,omitempty"`
	Previous   map[string]any   `json:"previous"`
	Current    map[string]any   `json:"current,omitempty"`
	Patch      json.RawMessage  `json:"patch,omitempty"`
}

// ResolveDeltaResponse carries the view for the new snapshot and the merge
// patch from the previous snapshot's view to it.
type ResolveDeltaResponse struct {
	FormID     types.FormID     `json:"form_id"`
	RevisionID types.RevisionID `json:"revision_id"`
	Data       types.Data       `json:"data"`
	View       *types.FormView  `json:"view"`
	Delta      json.RawMessage  `json:"delta"`
	HasErrors  bool             `json:"has_errors"`
}

// Resolve evaluates the requested revision against req.Data.
func (s *FormService) Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error) {
	stored, err := s.load(ctx, req.FormID, req.RevisionID)
	if err != nil {
		return nil, err
	}
	data, err := snapshot("data", req.Data)
	if err != nil {
		return nil, err
	}
	form, err := s.compiled(stored)
	if err != nil {
		return nil, err
	}

	view := s.engine.Resolve(form, data)
	return &ResolveResponse{
		FormID:     stored.FormID,
		RevisionID: stored.RevisionID,
		View:       view,
		HasErrors:  view.HasErrors(),
	}, nil
}

// ResolveDelta evaluates the requested revision for both snapshots and
// returns the new view with the delta between the two views.
func (s *FormService) ResolveDelta(ctx context.Context, req *ResolveDeltaRequest) (*ResolveDeltaResponse, error) {
	stored, err := s.load(ctx, req.FormID, req.RevisionID)
	if err != nil {
		return nil, err
	}
	previous, err := snapshot("previous", req.Previous)
	if err != nil {
		return nil, err
	}

	var current types.Data
	if len(req.Patch) > 0 {
		if req.Current != nil {
			return nil, fmt.Errorf("%w: current and patch are mutually exclusive", ErrInvalidArgument)
		}
		current, err = ApplyDataPatch(previous, req.Patch)
	} else {
		current, err = snapshot("current", req.Current)
	}
	if err != nil {
		return nil, err
	}

	form, err := s.compiled(stored)
	if err != nil {
		return nil, err
	}

	prevView := s.engine.Resolve(form, previous)
	view := s.engine.Resolve(form, current)
	delta, err := DiffViews(prevView, view)
	if err != nil {
		return nil, err
	}

	return &ResolveDeltaResponse{
		FormID:     stored.FormID,
		RevisionID: stored.RevisionID,
		Data:       current,
		View:       view,
		Delta:      delta,
		HasErrors:  view.HasErrors(),
	}, nil
}

// snapshot normalizes a request snapshot into the JSON value model.
func snapshot(field string, raw map[string]any) (types.Data, error) {
	if raw == nil {
		return types.Data{}, nil
	}
	data, err := loader.DataFromValue(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidArgument, field, err)
	}
	return data, nil
}
