package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/solatis/formkeeper/internal/core/db"
	"github.com/solatis/formkeeper/internal/loader"
	"github.com/solatis/formkeeper/internal/rules"
	"github.com/solatis/formkeeper/internal/types"
)

// PutSpecRequest stores a new revision of a form. An empty FormID creates a
// new form. IfMatch, when set, must be the form's current revision.
type PutSpecRequest struct {
	FormID  types.FormID     `json:"form_id,omitempty"`
	Name    string           `json:"name"`
	Spec    map[string]any   `json:"spec"`
	IfMatch types.RevisionID `json:"if_match,omitempty"`
}

// PutSpecResponse reports the stored revision and the non-fatal findings
// of compiling it.
type PutSpecResponse struct {
	Revision       *db.StoredSpec  `json:"revision"`
	UnknownFields  []string        `json:"unknown_fields,omitempty"`
	UnknownTargets []string        `json:"unknown_targets,omitempty"`
	Warnings       []types.Problem `json:"warnings,omitempty"`
}

// SpecRevision is a stored revision with its decoded specification.
type SpecRevision struct {
	Revision *db.StoredSpec           `json:"revision"`
	Spec     *types.FormSpecification `json:"spec"`
}

// PutSpec validates and stores a specification.
// Malformed specs are rejected with every problem listed and are never
// stored. The compiled form is cached under the new revision.
func (s *FormService) PutSpec(ctx context.Context, req *PutSpecRequest) (*PutSpecResponse, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}

	formID := req.FormID
	if formID == "" {
		formID = types.NewFormID()
	} else if formID, err = parseFormID(formID); err != nil {
		return nil, err
	}
	ifMatch, err := parseRevisionID(req.IfMatch)
	if err != nil {
		return nil, err
	}
	if req.Spec == nil {
		return nil, fmt.Errorf("%w: spec is required", ErrInvalidArgument)
	}

	doc, err := loader.SpecFromValue(req.Spec)
	if err != nil {
		s.metrics.SpecRejected()
		return nil, err
	}
	form, err := s.engine.Compile(doc.Spec)
	if err != nil {
		s.metrics.SpecRejected()
		return nil, err
	}

	document, err := json.Marshal(doc.Spec)
	if err != nil {
		return nil, fmt.Errorf("%w: spec: %v", ErrInvalidArgument, err)
	}
	if len(document) > s.maxDocumentSize {
		s.metrics.SpecRejected()
		return nil, fmt.Errorf("%w (%d bytes)", types.ErrDocumentTooLarge, len(document))
	}

	stored, err := s.store.PutSpec(ctx, db.PutSpecParams{
		TenantID: tenantID,
		FormID:   formID,
		Name:     req.Name,
		Document: document,
		IfMatch:  ifMatch,
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SpecStored()
	s.metrics.UnknownTargets(len(form.UnknownTargets))
	s.cache.add(stored.RevisionID, form)
	s.logFindings(stored, form)

	return &PutSpecResponse{
		Revision:       stored,
		UnknownFields:  doc.UnknownFields,
		UnknownTargets: form.UnknownTargets,
		Warnings:       form.Warnings,
	}, nil
}

func (s *FormService) logFindings(stored *db.StoredSpec, form *rules.CompiledForm) {
	if len(form.UnknownTargets) > 0 {
		s.logger.Warn("spec has changes targeting unknown names",
			"form_id", stored.FormID,
			"revision_id", stored.RevisionID,
			"targets", form.UnknownTargets)
	}
	for _, w := range form.Warnings {
		s.logger.Warn("spec condition ignored",
			"form_id", stored.FormID,
			"revision_id", stored.RevisionID,
			"location", w.Location,
			"reason", w.Message)
	}
}

// GetSpec returns a revision of a form: the current one when revisionID is
// empty.
func (s *FormService) GetSpec(ctx context.Context, formID types.FormID, revisionID types.RevisionID) (*SpecRevision, error) {
	stored, err := s.load(ctx, formID, revisionID)
	if err != nil {
		return nil, err
	}
	doc, err := loader.DecodeSpec([]byte(stored.Document), loader.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("stored revision %s is unreadable: %w", stored.RevisionID, err)
	}
	return &SpecRevision{Revision: stored, Spec: doc.Spec}, nil
}

// ListSpecs returns the current revision of every form of the caller.
func (s *FormService) ListSpecs(ctx context.Context, limit int) (*db.SpecList, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	return s.store.ListSpecs(ctx, tenantID, limit)
}

// ListRevisions returns the revision history of a form, newest first.
func (s *FormService) ListRevisions(ctx context.Context, formID types.FormID, limit int) ([]db.StoredSpec, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	if formID, err = parseFormID(formID); err != nil {
		return nil, err
	}
	return s.store.ListRevisions(ctx, tenantID, formID, limit)
}

// DeleteForm removes a form and its history.
func (s *FormService) DeleteForm(ctx context.Context, formID types.FormID) error {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return err
	}
	if formID, err = parseFormID(formID); err != nil {
		return err
	}
	return s.store.DeleteForm(ctx, tenantID, formID)
}

// load fetches a stored revision scoped to the caller's tenant.
func (s *FormService) load(ctx context.Context, formID types.FormID, revisionID types.RevisionID) (*db.StoredSpec, error) {
	tenantID, err := tenantFrom(ctx)
	if err != nil {
		return nil, err
	}
	if formID, err = parseFormID(formID); err != nil {
		return nil, err
	}
	if revisionID, err = parseRevisionID(revisionID); err != nil {
		return nil, err
	}
	if revisionID == "" {
		return s.store.LatestSpec(ctx, tenantID, formID)
	}
	return s.store.GetRevision(ctx, tenantID, formID, revisionID)
}

// compiled returns the compiled form of a stored revision, from cache when
// possible.
func (s *FormService) compiled(stored *db.StoredSpec) (*rules.CompiledForm, error) {
	form, hit, err := s.cache.get(stored.RevisionID, func() (*rules.CompiledForm, error) {
		doc, err := loader.DecodeSpec([]byte(stored.Document), loader.FormatJSON)
		if err != nil {
			return nil, fmt.Errorf("stored revision %s is unreadable: %w", stored.RevisionID, err)
		}
		form, err := s.engine.Compile(doc.Spec)
		if err != nil {
			return nil, fmt.Errorf("stored revision %s no longer compiles: %w", stored.RevisionID, err)
		}
		return form, nil
	})
	s.metrics.CacheLookup(hit)
	return form, err
}
