package auth

import "errors"

// Authentication error types enable 5-tier error taxonomy.
// UNAUTHENTICATED for missing/invalid (doesn't confirm key existence).
// PERMISSION_DENIED for revoked (confirms key exists but blocked).
// UNAVAILABLE when the key store cannot be reached.
var (
	ErrMissingKey       = errors.New("API key required in x-api-key header")
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	ErrUnknownKey       = errors.New("unknown secret ID")
	ErrInvalidKey       = errors.New("invalid API key")
	ErrKeyRevoked       = errors.New("API key has been revoked")
	ErrKeyStore         = errors.New("API key store unavailable")
)
