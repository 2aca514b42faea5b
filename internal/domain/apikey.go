package domain

import (
	"time"

	"github.com/google/uuid"
)

// KeyID is a value object for API key identity.
type KeyID struct{ uuid.UUID }

// NewKeyID creates a new KeyID from uuid.
func NewKeyID(id uuid.UUID) KeyID { return KeyID{UUID: id} }

// String returns the canonical string form.
func (k KeyID) String() string { return k.UUID.String() }

// KeyPrefix is the fixed prefix of every raw API key ("sk_<opaque>").
const KeyPrefix = "sk_"

// APIKey is a bearer credential for a single user. The raw key is never
// persisted; only the SHA-256 hex hash is stored.
type APIKey struct {
	ID         KeyID
	UserID     UserID
	KeyHash    string
	CreatedAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
}

// Revoked reports whether the key has been revoked.
func (k *APIKey) Revoked() bool { return k.RevokedAt != nil }
