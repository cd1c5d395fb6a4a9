package types

import (
	"time"

	"github.com/google/uuid"
)

// FormID identifies a form across all of its revisions.
// String alias enables type safety while maintaining JSON string serialization.
type FormID string

// RevisionID represents a UUIDv7 spec revision identifier.
// UUIDv7 time-ordering makes the latest revision the greatest ID.
type RevisionID string

// TenantID identifies the API key owner a form belongs to.
type TenantID string

// NewFormID generates a UUIDv7 form identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewFormID() FormID {
	return FormID(uuid.Must(uuid.NewV7()).String())
}

// NewRevisionID generates a UUIDv7 revision identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRevisionID() RevisionID {
	return RevisionID(uuid.Must(uuid.NewV7()).String())
}

// ParseFormID validates and converts a string to FormID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the store.
func ParseFormID(s string) (FormID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return FormID(s), nil
}

// ParseRevisionID validates and converts a string to RevisionID.
func ParseRevisionID(s string) (RevisionID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return RevisionID(s), nil
}

// RevisionTime extracts the timestamp embedded in a UUIDv7 revision ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func RevisionTime(id RevisionID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
