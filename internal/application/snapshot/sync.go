package snapshot

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/domain"
	domerrors "github.com/engram-labs/engram/internal/domain/errors"
)

// MaxBulkItems caps a single bulk-sync request.
const MaxBulkItems = 100

// ItemInput is one client-supplied snapshot record.
type ItemInput struct {
	ProjectPath string
	Summary     string
	Context     string
	Decisions   string
	NextSteps   string
	Files       []string
	Importance  any
	CreatedAt   *int64 // epoch millis; nil means server time
}

func (item ItemInput) valid() bool {
	return strings.TrimSpace(item.ProjectPath) != "" &&
		strings.TrimSpace(item.Summary) != "" &&
		strings.TrimSpace(item.Context) != ""
}

func build(userID domain.UserID, item ItemInput) *domain.Snapshot {
	createdAt := time.Now()
	if item.CreatedAt != nil {
		createdAt = time.UnixMilli(*item.CreatedAt)
	}
	return &domain.Snapshot{
		ID:          domain.NewSnapshotID(uuid.New()),
		UserID:      userID,
		ProjectPath: item.ProjectPath,
		Summary:     item.Summary,
		Context:     item.Context,
		Decisions:   item.Decisions,
		NextSteps:   item.NextSteps,
		Files:       item.Files,
		Importance:  domain.NormalizeSnapshotImportance(item.Importance),
		CreatedAt:   createdAt,
	}
}

// SyncSnapshot stores a single snapshot. Snapshot writes are unmetered.
type SyncSnapshot struct {
	snapshots ports.SnapshotRepository
}

// NewSyncSnapshot builds the use case.
func NewSyncSnapshot(snapshots ports.SnapshotRepository) *SyncSnapshot {
	return &SyncSnapshot{snapshots: snapshots}
}

// Execute validates and persists one snapshot.
func (uc *SyncSnapshot) Execute(ctx context.Context, userID domain.UserID, item ItemInput) (*domain.Snapshot, error) {
	if !item.valid() {
		return nil, domerrors.ErrMissingSnapshotFields
	}
	s := build(userID, item)
	if err := uc.snapshots.Insert(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// BulkSyncSnapshots stores up to MaxBulkItems snapshots in one call.
type BulkSyncSnapshots struct {
	snapshots ports.SnapshotRepository
	log       zerolog.Logger
}

// NewBulkSyncSnapshots builds the use case.
func NewBulkSyncSnapshots(snapshots ports.SnapshotRepository, log zerolog.Logger) *BulkSyncSnapshots {
	return &BulkSyncSnapshots{snapshots: snapshots, log: log}
}

// Execute processes items in array order. Items missing required fields are
// skipped silently and a failed insert is logged and skipped; only the
// aggregate counts are reported.
func (uc *BulkSyncSnapshots) Execute(ctx context.Context, userID domain.UserID, items []ItemInput) (synced, total int) {
	total = len(items)
	for _, item := range items {
		if !item.valid() {
			continue
		}
		s := build(userID, item)
		if err := uc.snapshots.Insert(ctx, s); err != nil {
			uc.log.Error().Err(err).Str("user_id", userID.String()).Msg("bulk sync: insert snapshot failed")
			continue
		}
		synced++
	}
	return synced, total
}
