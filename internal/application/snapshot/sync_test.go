package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engram-labs/engram/internal/domain"
	domerrors "github.com/engram-labs/engram/internal/domain/errors"
)

type fakeSnapshotRepo struct {
	inserted  []*domain.Snapshot
	insertErr error
}

func (f *fakeSnapshotRepo) Insert(ctx context.Context, s *domain.Snapshot) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, s)
	return nil
}

func validItem() ItemInput {
	return ItemInput{
		ProjectPath: "/home/dev/app",
		Summary:     "wired the payment flow",
		Context:     "mid-refactor, tests green",
	}
}

func TestSyncSnapshot_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ItemInput)
	}{
		{"missing projectPath", func(i *ItemInput) { i.ProjectPath = "" }},
		{"missing summary", func(i *ItemInput) { i.Summary = "" }},
		{"missing context", func(i *ItemInput) { i.Context = "" }},
		{"whitespace context", func(i *ItemInput) { i.Context = "  " }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeSnapshotRepo{}
			uc := NewSyncSnapshot(repo)
			item := validItem()
			tt.mutate(&item)
			_, err := uc.Execute(context.Background(), domain.NewUserID(uuid.New()), item)
			assert.True(t, errors.Is(err, domerrors.ErrMissingSnapshotFields))
			assert.Empty(t, repo.inserted)
		})
	}
}

func TestSyncSnapshot_ImportanceFailSoft(t *testing.T) {
	repo := &fakeSnapshotRepo{}
	uc := NewSyncSnapshot(repo)
	userID := domain.NewUserID(uuid.New())

	item := validItem()
	item.Importance = "reference"
	s, err := uc.Execute(context.Background(), userID, item)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotImportanceReference, s.Importance)

	// "high" is a memory value, not a snapshot one.
	item = validItem()
	item.Importance = "high"
	s, err = uc.Execute(context.Background(), userID, item)
	require.NoError(t, err)
	assert.Equal(t, domain.SnapshotImportanceNormal, s.Importance)
}

func TestSyncSnapshot_OptionalFields(t *testing.T) {
	repo := &fakeSnapshotRepo{}
	uc := NewSyncSnapshot(repo)
	item := validItem()
	item.Decisions = "kept the old schema"
	item.NextSteps = "migrate the workers"
	item.Files = []string{"main.go", "worker.go"}
	s, err := uc.Execute(context.Background(), domain.NewUserID(uuid.New()), item)
	require.NoError(t, err)
	assert.Equal(t, "kept the old schema", s.Decisions)
	assert.Equal(t, "migrate the workers", s.NextSteps)
	assert.Equal(t, []string{"main.go", "worker.go"}, s.Files)
}

func TestBulkSyncSnapshots_SkipsInvalidSilently(t *testing.T) {
	repo := &fakeSnapshotRepo{}
	uc := NewBulkSyncSnapshots(repo, zerolog.Nop())
	userID := domain.NewUserID(uuid.New())

	bad := validItem()
	bad.Context = ""
	synced, total := uc.Execute(context.Background(), userID, []ItemInput{validItem(), bad, validItem()})
	assert.Equal(t, 2, synced)
	assert.Equal(t, 3, total)
	assert.Len(t, repo.inserted, 2)
}

func TestBulkSyncSnapshots_InsertFailureSkipped(t *testing.T) {
	repo := &fakeSnapshotRepo{insertErr: errors.New("boom")}
	uc := NewBulkSyncSnapshots(repo, zerolog.Nop())
	synced, total := uc.Execute(context.Background(), domain.NewUserID(uuid.New()), []ItemInput{validItem(), validItem()})
	assert.Equal(t, 0, synced)
	assert.Equal(t, 2, total)
}
