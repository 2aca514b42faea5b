package ports

import (
	"context"

	"github.com/engram-labs/engram/internal/domain"
)

// UserRepository defines persistence for users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, userID domain.UserID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// APIKeyRepository defines persistence for API keys. Lookup is by SHA-256
// hex hash only; raw keys never reach this layer.
type APIKeyRepository interface {
	Create(ctx context.Context, key *domain.APIKey) error
	GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error)
	TouchLastUsed(ctx context.Context, keyID domain.KeyID) error
	Revoke(ctx context.Context, keyID domain.KeyID) error
	RevokeAllForUser(ctx context.Context, userID domain.UserID) error
}

// MemoryFilter narrows a memory list query.
type MemoryFilter struct {
	Importance domain.MemoryImportance // empty means no filter
	Limit      int
}

// MemoryRepository defines persistence for memories. All access is scoped by
// the owning user; no cross-user path exists.
type MemoryRepository interface {
	Insert(ctx context.Context, memory *domain.Memory) error
	CountByUser(ctx context.Context, userID domain.UserID) (int, error)
	ListByUser(ctx context.Context, userID domain.UserID, filter MemoryFilter) ([]*domain.Memory, error)
	SearchByUser(ctx context.Context, userID domain.UserID, query string, limit int) ([]*domain.Memory, error)
	// DeleteOwned removes the memory only if it belongs to userID. Returns
	// ErrMemoryNotFound for both a missing row and an ownership mismatch.
	DeleteOwned(ctx context.Context, userID domain.UserID, memoryID domain.MemoryID) error
}

// SnapshotRepository defines persistence for snapshots. Reads live elsewhere;
// this service only ingests.
type SnapshotRepository interface {
	Insert(ctx context.Context, snapshot *domain.Snapshot) error
}
