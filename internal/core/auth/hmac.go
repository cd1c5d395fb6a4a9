package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// API keys look like fk-v1-<secret_id>-<random_data>:
// secret_id names the HMAC secret (32 hex chars), random_data is 256 bits
// of hex. 102 chars total.
const (
	keyPrefix     = "fk"
	keyVersion    = "v1"
	secretIDLen   = 32
	randomDataLen = 64
)

// ParseAPIKey extracts secret_id and random_data from API key format.
// Returns ErrInvalidKeyFormat if format doesn't match.
func ParseAPIKey(key string) (secretID, randomData string, err error) {
	parts := strings.Split(key, "-")
	if len(parts) != 4 || parts[0] != keyPrefix || parts[1] != keyVersion {
		return "", "", ErrInvalidKeyFormat
	}

	secretID = parts[2]
	randomData = parts[3]
	if len(secretID) != secretIDLen || len(randomData) != randomDataLen {
		return "", "", ErrInvalidKeyFormat
	}
	if !isLowerHex(secretID) || !isLowerHex(randomData) {
		return "", "", ErrInvalidKeyFormat
	}

	return secretID, randomData, nil
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// ComputeHMAC computes HMAC-SHA256 signature of API key using secret.
func ComputeHMAC(secret []byte, apiKey string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(apiKey))
	return h.Sum(nil)
}

// VerifyHMAC verifies HMAC signature using constant-time comparison.
func VerifyHMAC(expectedHash, computedHash []byte) bool {
	return hmac.Equal(expectedHash, computedHash)
}

// FormatAPIKey constructs API key from components.
func FormatAPIKey(secretID, randomData string) string {
	return fmt.Sprintf("%s-%s-%s-%s", keyPrefix, keyVersion, secretID, randomData)
}

// GenerateAPIKey issues a new key under secretID and returns it with the
// HMAC to store. The plaintext key is shown once and never persisted.
func GenerateAPIKey(secretID string, secret []byte) (key string, keyHash []byte, err error) {
	if len(secretID) != secretIDLen || !isLowerHex(secretID) {
		return "", nil, fmt.Errorf("secret ID must be %d lowercase hex chars", secretIDLen)
	}
	buf := make([]byte, randomDataLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, fmt.Errorf("failed to read random data: %w", err)
	}
	key = FormatAPIKey(secretID, hex.EncodeToString(buf))
	return key, ComputeHMAC(secret, key), nil
}
