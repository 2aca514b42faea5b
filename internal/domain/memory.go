package domain

import (
	"time"

	"github.com/google/uuid"
)

// MemoryID is a value object for memory identity.
type MemoryID struct{ uuid.UUID }

// NewMemoryID creates a new MemoryID from uuid.
func NewMemoryID(id uuid.UUID) MemoryID { return MemoryID{UUID: id} }

// String returns the canonical string form.
func (m MemoryID) String() string { return m.UUID.String() }

// Memory is a stored fact/learning record with free-text content.
// Content is non-empty at persistence time and Importance is always one of
// the canonical values after normalization.
type Memory struct {
	ID         MemoryID
	UserID     UserID
	Content    string
	Context    string
	Importance MemoryImportance
	Tags       []string
	CreatedAt  time.Time
}
