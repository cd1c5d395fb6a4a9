package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/solatis/formkeeper/internal/types"
)

// APIKey is the stored metadata of an issued key. The key itself is never
// stored, only its HMAC.
type APIKey struct {
	APIKeyID   string         `db:"api_key_id"`
	TenantID   types.TenantID `db:"tenant_id"`
	Name       string         `db:"name"`
	SecretID   string         `db:"secret_id"`
	CreatedAt  time.Time      `db:"created_at"`
	LastUsedAt sql.NullTime   `db:"last_used_at"`
	RevokedAt  sql.NullTime   `db:"revoked_at"`
}

// APIKeyStore manages API key rows. Authentication lookups go through
// auth.Authenticator, which queries by hash directly.
type APIKeyStore struct {
	queries *Queries
}

// NewAPIKeyStore creates a key store over loaded queries.
func NewAPIKeyStore(queries *Queries) *APIKeyStore {
	return &APIKeyStore{queries: queries}
}

// InsertAPIKey records a newly issued key under its HMAC.
func (s *APIKeyStore) InsertAPIKey(ctx context.Context, key APIKey, keyHash []byte) error {
	_, err := s.queries.ExecContext(ctx, "insert-api-key",
		key.APIKeyID, key.TenantID, key.Name, key.SecretID, keyHash, key.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("API key %s already exists", key.APIKeyID)
		}
		return fmt.Errorf("failed to insert API key: %w", err)
	}
	return nil
}

// RevokeAPIKey marks a key revoked. Revoking twice reports not found.
func (s *APIKeyStore) RevokeAPIKey(ctx context.Context, apiKeyID string) error {
	res, err := s.queries.ExecContext(ctx, "revoke-api-key", time.Now().UTC(), apiKeyID)
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke API key: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("no active API key %s", apiKeyID)
	}
	return nil
}

// ListAPIKeys returns every key issued to a tenant, revoked ones included.
func (s *APIKeyStore) ListAPIKeys(ctx context.Context, tenantID types.TenantID) ([]APIKey, error) {
	var keys []APIKey
	if err := s.queries.SelectContext(ctx, "list-api-keys", &keys, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	return keys, nil
}
