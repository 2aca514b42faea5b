package domain

import (
	"time"

	"github.com/google/uuid"
)

// SnapshotID is a value object for snapshot identity.
type SnapshotID struct{ uuid.UUID }

// NewSnapshotID creates a new SnapshotID from uuid.
func NewSnapshotID(id uuid.UUID) SnapshotID { return SnapshotID{UUID: id} }

// String returns the canonical string form.
func (s SnapshotID) String() string { return s.UUID.String() }

// Snapshot is a stored project-state record capturing work-in-progress
// context. ProjectPath, Summary and Context are always present.
type Snapshot struct {
	ID          SnapshotID
	UserID      UserID
	ProjectPath string
	Summary     string
	Context     string
	Decisions   string
	NextSteps   string
	Files       []string
	Importance  SnapshotImportance
	CreatedAt   time.Time
}
