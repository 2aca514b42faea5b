package domain

import (
	"time"

	"github.com/google/uuid"
)

// UserID is a value object for user identity.
type UserID struct{ uuid.UUID }

// NewUserID creates a new UserID from uuid.
func NewUserID(id uuid.UUID) UserID { return UserID{UUID: id} }

// String returns the canonical string form.
func (u UserID) String() string { return u.UUID.String() }

// Tier is a user's subscription level.
type Tier string

const (
	TierFree      Tier = "free"
	TierUnlimited Tier = "unlimited"
)

// Unlimited reports whether the tier has no memory cap.
func (t Tier) Unlimited() bool { return t == TierUnlimited }

// User owns API keys, memories and snapshots.
type User struct {
	ID        UserID
	Email     string
	Tier      Tier
	CreatedAt time.Time
	UpdatedAt time.Time
}
