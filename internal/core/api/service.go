// Package api provides the form service behind the gRPC and HTTP transports:
// spec storage with compile-time validation, and evaluation of stored specs
// against data snapshots.
package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solatis/formkeeper/internal/core/auth"
	"github.com/solatis/formkeeper/internal/core/config"
	"github.com/solatis/formkeeper/internal/core/db"
	"github.com/solatis/formkeeper/internal/core/metrics"
	"github.com/solatis/formkeeper/internal/rules"
	"github.com/solatis/formkeeper/internal/types"
)

// SpecStore persists spec revisions. Implemented by *db.SpecStore.
type SpecStore interface {
	PutSpec(ctx context.Context, p db.PutSpecParams) (*db.StoredSpec, error)
	LatestSpec(ctx context.Context, tenantID types.TenantID, formID types.FormID) (*db.StoredSpec, error)
	GetRevision(ctx context.Context, tenantID types.TenantID, formID types.FormID, revisionID types.RevisionID) (*db.StoredSpec, error)
	ListSpecs(ctx context.Context, tenantID types.TenantID, limit int) (*db.SpecList, error)
	ListRevisions(ctx context.Context, tenantID types.TenantID, formID types.FormID, limit int) ([]db.StoredSpec, error)
	DeleteForm(ctx context.Context, tenantID types.TenantID, formID types.FormID) error
}

// FormService implements the form operations shared by both transports.
// Thin orchestration layer delegating to the store, loader and rules engine.
type FormService struct {
	store           SpecStore
	engine          *rules.Engine
	metrics         *metrics.Metrics
	logger          *slog.Logger
	cache           *compileCache
	maxDocumentSize int
}

// NewFormService creates service instance with dependencies.
func NewFormService(store SpecStore, cfg *config.ServerConfig, m *metrics.Metrics, logger *slog.Logger) (*FormService, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &FormService{
		store:           store,
		engine:          rules.NewEngine(rules.Options{MaxConditionDepth: cfg.MaxConditionDepth}),
		metrics:         m,
		logger:          logger,
		cache:           newCompileCache(cfg.CacheSize),
		maxDocumentSize: cfg.MaxDocumentSize,
	}, nil
}

// Engine returns the rules engine the service compiles with.
func (s *FormService) Engine() *rules.Engine {
	return s.engine
}

func tenantFrom(ctx context.Context) (types.TenantID, error) {
	tenantID := auth.TenantIDFromContext(ctx)
	if tenantID == "" {
		return "", ErrMissingTenant
	}
	return tenantID, nil
}

func parseFormID(raw types.FormID) (types.FormID, error) {
	id, err := types.ParseFormID(string(raw))
	if err != nil {
		return "", fmt.Errorf("%w: form_id %q: %v", ErrInvalidArgument, raw, err)
	}
	return id, nil
}

// parseRevisionID accepts an empty ID, meaning "latest".
func parseRevisionID(raw types.RevisionID) (types.RevisionID, error) {
	if raw == "" {
		return "", nil
	}
	id, err := types.ParseRevisionID(string(raw))
	if err != nil {
		return "", fmt.Errorf("%w: revision_id %q: %v", ErrInvalidArgument, raw, err)
	}
	return id, nil
}
