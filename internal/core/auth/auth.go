// Package auth provides HMAC-based API key authentication for the gRPC and
// HTTP form services.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/solatis/formkeeper/internal/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// HeaderAPIKey carries the API key in gRPC metadata and HTTP headers.
const HeaderAPIKey = "x-api-key"

// contextKey is a typed key for context values to avoid collisions.
type contextKey string

// tenantIDKey is the context key for storing authenticated tenant ID.
const tenantIDKey = contextKey("tenant_id")

// Queries interface defines database operations needed for authentication.
// Implemented by *db.Queries.
type Queries interface {
	GetContext(ctx context.Context, name string, dest any, args ...any) error
	ExecContext(ctx context.Context, name string, args ...any) (sql.Result, error)
}

// Authenticator validates API keys using HMAC-SHA256 signatures.
// Holds in-memory secret map for O(1) lookup and queries for key verification.
type Authenticator struct {
	secrets map[string][]byte
	queries Queries
	now     func() time.Time
}

// NewAuthenticator creates an authenticator with HMAC secrets and query interface.
func NewAuthenticator(secrets map[string][]byte, queries Queries) *Authenticator {
	return &Authenticator{
		secrets: secrets,
		queries: queries,
		now:     time.Now,
	}
}

// Authenticate validates API key and returns tenant_id on success.
// Returns specific error for each failure mode (5-tier taxonomy).
func (a *Authenticator) Authenticate(ctx context.Context, apiKey string) (types.TenantID, error) {
	if apiKey == "" {
		return "", ErrMissingKey
	}
	secretID, _, err := ParseAPIKey(apiKey)
	if err != nil {
		return "", err
	}

	secret, ok := a.secrets[secretID]
	if !ok {
		return "", ErrUnknownKey
	}

	computedHash := ComputeHMAC(secret, apiKey)

	// Unique constraint on key_hash ensures a single result
	var result struct {
		TenantID   types.TenantID `db:"tenant_id"`
		RevokedAt  sql.NullTime   `db:"revoked_at"`
		APIKeyID   string         `db:"api_key_id"`
		LastUsedAt sql.NullTime   `db:"last_used_at"`
	}

	err = a.queries.GetContext(ctx, "get-api-key-by-hash", &result, computedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInvalidKey
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyStore, err)
	}

	if result.RevokedAt.Valid {
		return "", ErrKeyRevoked
	}

	// 1-minute throttle keeps busy clients from writing on every request
	if a.shouldUpdateLastUsed(result.LastUsedAt) {
		_, _ = a.queries.ExecContext(ctx, "update-last-used", a.now().UTC(), result.APIKeyID)
	}

	return result.TenantID, nil
}

func (a *Authenticator) shouldUpdateLastUsed(lastUsed sql.NullTime) bool {
	if !lastUsed.Valid {
		return true
	}
	return a.now().Sub(lastUsed.Time) > time.Minute
}

// GRPCCode maps an authentication error to its gRPC status code.
func GRPCCode(err error) codes.Code {
	switch {
	case errors.Is(err, ErrKeyRevoked):
		return codes.PermissionDenied
	case errors.Is(err, ErrKeyStore):
		return codes.Unavailable
	default:
		return codes.Unauthenticated
	}
}

// HTTPStatus maps an authentication error to its HTTP status code.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrKeyRevoked):
		return http.StatusForbidden
	case errors.Is(err, ErrKeyStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnauthorized
	}
}

// UnaryInterceptor returns gRPC interceptor that authenticates requests.
// Health checks pass through unauthenticated.
func (a *Authenticator) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, "/grpc.health.v1.Health/") {
			return handler(ctx, req)
		}

		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return nil, status.Error(codes.Unauthenticated, "missing metadata")
		}

		apiKeys := md.Get(HeaderAPIKey)
		if len(apiKeys) == 0 {
			return nil, status.Error(codes.Unauthenticated, ErrMissingKey.Error())
		}

		tenantID, err := a.Authenticate(ctx, apiKeys[0])
		if err != nil {
			return nil, status.Error(GRPCCode(err), err.Error())
		}

		return handler(WithTenantID(ctx, tenantID), req)
	}
}

// Middleware authenticates HTTP requests by the x-api-key header.
// Failures are answered with a JSON error body.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := a.Authenticate(r.Context(), r.Header.Get(HeaderAPIKey))
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(HTTPStatus(err))
			fmt.Fprintf(w, "{\"error\":%q}\n", err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTenantID(r.Context(), tenantID)))
	})
}

// WithTenantID returns a context carrying an authenticated tenant.
func WithTenantID(ctx context.Context, tenantID types.TenantID) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantIDFromContext extracts tenant ID from context.
// Returns empty string if not found.
func TenantIDFromContext(ctx context.Context) types.TenantID {
	if tenantID, ok := ctx.Value(tenantIDKey).(types.TenantID); ok {
		return tenantID
	}
	return ""
}
