package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/formkeeper/internal/types"
)

// MaxListLimit caps ListSpecs and ListRevisions page sizes.
const MaxListLimit = 10000

// StoredSpec is one revision of a form specification as persisted.
// Document holds the normalized JSON encoding of the spec. List queries
// leave Document empty.
type StoredSpec struct {
	RevisionID       types.RevisionID `db:"revision_id" json:"revision_id"`
	FormID           types.FormID     `db:"form_id" json:"form_id"`
	TenantID         types.TenantID   `db:"tenant_id" json:"tenant_id"`
	ParentRevisionID types.RevisionID `db:"parent_revision_id" json:"parent_revision_id,omitempty"`
	Name             string           `db:"name" json:"name"`
	Document         string           `db:"document" json:"-"`
	Checksum         string           `db:"checksum" json:"checksum"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

// PutSpecParams describes a new revision.
// IfMatch, when set, must name the form's current revision or the write
// fails with ErrRevisionConflict. An empty IfMatch writes unconditionally.
type PutSpecParams struct {
	TenantID types.TenantID
	FormID   types.FormID
	Name     string
	Document []byte
	IfMatch  types.RevisionID
}

// SpecList is a page of current revisions plus an ETag over it.
type SpecList struct {
	Specs []StoredSpec
	ETag  string
}

// SpecStore persists form specification revisions.
// Every write appends a revision. The greatest revision ID of a form is its
// current spec, which UUIDv7 ordering makes the most recent one.
type SpecStore struct {
	db      *sqlx.DB
	queries *Queries
}

// NewSpecStore creates a store over an open, migrated database.
func NewSpecStore(db *sqlx.DB, queries *Queries) *SpecStore {
	return &SpecStore{db: db, queries: queries}
}

// PutSpec appends a revision and returns it.
// Concurrent writers racing on the same parent revision are serialized by
// the (tenant_id, form_id, parent_revision_id) unique constraint: the loser
// gets ErrRevisionConflict.
func (s *SpecStore) PutSpec(ctx context.Context, p PutSpecParams) (*StoredSpec, error) {
	if len(p.Document) > types.MaxDocumentSize {
		return nil, types.ErrDocumentTooLarge
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	q := s.queries.WithTx(tx)

	var parent types.RevisionID
	var current StoredSpec
	err = q.GetContext(ctx, "get-latest-form-spec", &current, p.TenantID, p.FormID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if p.IfMatch != "" {
			return nil, fmt.Errorf("%w: form %s has no revision %s", types.ErrRevisionConflict, p.FormID, p.IfMatch)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to load current revision: %w", err)
	default:
		if p.IfMatch != "" && p.IfMatch != current.RevisionID {
			return nil, fmt.Errorf("%w: current revision is %s", types.ErrRevisionConflict, current.RevisionID)
		}
		parent = current.RevisionID
	}

	spec := StoredSpec{
		RevisionID:       types.NewRevisionID(),
		FormID:           p.FormID,
		TenantID:         p.TenantID,
		ParentRevisionID: parent,
		Name:             p.Name,
		Document:         string(p.Document),
		Checksum:         fmt.Sprintf("%x", sha256.Sum256(p.Document)),
		CreatedAt:        time.Now().UTC().Truncate(time.Microsecond),
	}

	_, err = q.ExecContext(ctx, "insert-form-spec",
		spec.RevisionID, spec.FormID, spec.TenantID, spec.ParentRevisionID,
		spec.Name, spec.Document, spec.Checksum, spec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: concurrent write on form %s", types.ErrRevisionConflict, p.FormID)
		}
		return nil, fmt.Errorf("failed to insert revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: concurrent write on form %s", types.ErrRevisionConflict, p.FormID)
		}
		return nil, fmt.Errorf("failed to commit revision: %w", err)
	}
	return &spec, nil
}

// LatestSpec returns the current revision of a form.
func (s *SpecStore) LatestSpec(ctx context.Context, tenantID types.TenantID, formID types.FormID) (*StoredSpec, error) {
	var spec StoredSpec
	err := s.queries.GetContext(ctx, "get-latest-form-spec", &spec, tenantID, formID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrFormNotFound, formID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query form %s: %w", formID, err)
	}
	return &spec, nil
}

// GetRevision returns one specific revision of a form.
func (s *SpecStore) GetRevision(ctx context.Context, tenantID types.TenantID, formID types.FormID, revisionID types.RevisionID) (*StoredSpec, error) {
	var spec StoredSpec
	err := s.queries.GetContext(ctx, "get-form-spec-revision", &spec, tenantID, formID, revisionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s revision %s", types.ErrFormNotFound, formID, revisionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query revision %s: %w", revisionID, err)
	}
	return &spec, nil
}

// ListSpecs returns the current revision of every form owned by tenantID,
// ordered by form ID, with an ETag that changes whenever any of them does.
func (s *SpecStore) ListSpecs(ctx context.Context, tenantID types.TenantID, limit int) (*SpecList, error) {
	var specs []StoredSpec
	if err := s.queries.SelectContext(ctx, "list-latest-form-specs", &specs, tenantID, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	return &SpecList{Specs: specs, ETag: computeETag(specs)}, nil
}

// ListRevisions returns the revisions of one form, newest first.
func (s *SpecStore) ListRevisions(ctx context.Context, tenantID types.TenantID, formID types.FormID, limit int) ([]StoredSpec, error) {
	var specs []StoredSpec
	if err := s.queries.SelectContext(ctx, "list-form-spec-revisions", &specs, tenantID, formID, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list revisions of %s: %w", formID, err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrFormNotFound, formID)
	}
	return specs, nil
}

// DeleteForm removes every revision of a form.
func (s *SpecStore) DeleteForm(ctx context.Context, tenantID types.TenantID, formID types.FormID) error {
	res, err := s.queries.ExecContext(ctx, "delete-form-specs", tenantID, formID)
	if err != nil {
		return fmt.Errorf("failed to delete form %s: %w", formID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete form %s: %w", formID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrFormNotFound, formID)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// computeETag hashes the sorted revision IDs and checksums of a listing.
// Same revisions always produce the same ETag.
func computeETag(specs []StoredSpec) string {
	ids := make([]string, 0, len(specs))
	for _, s := range specs {
		ids = append(ids, string(s.RevisionID)+":"+s.Checksum)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
