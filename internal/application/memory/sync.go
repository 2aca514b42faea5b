package memory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/application/tier"
	"github.com/engram-labs/engram/internal/domain"
	domerrors "github.com/engram-labs/engram/internal/domain/errors"
)

// MaxBulkItems caps a single bulk-sync request.
const MaxBulkItems = 100

// ItemInput is one client-supplied memory record. Importance is left untyped
// at the boundary: clients send either an enum string or a 0-10 score.
type ItemInput struct {
	Content      string
	Context      string
	Summary      string
	Type         string
	Importance   any
	Tags         []string
	MetadataTags []string
	CreatedAt    *int64 // epoch millis; nil means server time
}

// build turns an item into a domain memory. Fallbacks for alternate client
// shapes: a missing context is synthesized from summary/type, and tags may
// come from metadata.tags.
func build(userID domain.UserID, item ItemInput) *domain.Memory {
	ctx := item.Context
	if ctx == "" && item.Summary != "" {
		if item.Type != "" {
			ctx = "[" + item.Type + "] " + item.Summary
		} else {
			ctx = item.Summary
		}
	}
	tags := item.Tags
	if tags == nil {
		tags = item.MetadataTags
	}
	createdAt := time.Now()
	if item.CreatedAt != nil {
		createdAt = time.UnixMilli(*item.CreatedAt)
	}
	return &domain.Memory{
		ID:         domain.NewMemoryID(uuid.New()),
		UserID:     userID,
		Content:    item.Content,
		Context:    ctx,
		Importance: domain.NormalizeMemoryImportance(item.Importance),
		Tags:       tags,
		CreatedAt:  createdAt,
	}
}

// SyncMemory stores a single memory, enforcing the tier limit.
type SyncMemory struct {
	memories ports.MemoryRepository
	limiter  *tier.Limiter
}

// NewSyncMemory builds the use case.
func NewSyncMemory(memories ports.MemoryRepository, limiter *tier.Limiter) *SyncMemory {
	return &SyncMemory{memories: memories, limiter: limiter}
}

// Execute validates, normalizes and persists one memory. Returns
// *tier.LimitError when the user is at the free-tier ceiling.
func (uc *SyncMemory) Execute(ctx context.Context, userID domain.UserID, item ItemInput) (*domain.Memory, error) {
	if strings.TrimSpace(item.Content) == "" {
		return nil, domerrors.ErrMissingContent
	}
	if err := uc.limiter.CheckWrite(ctx, userID, 1); err != nil {
		return nil, err
	}
	m := build(userID, item)
	if err := uc.memories.Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// BulkSyncMemories stores up to MaxBulkItems memories in one call.
type BulkSyncMemories struct {
	memories ports.MemoryRepository
	limiter  *tier.Limiter
	log      zerolog.Logger
}

// NewBulkSyncMemories builds the use case.
func NewBulkSyncMemories(memories ports.MemoryRepository, limiter *tier.Limiter, log zerolog.Logger) *BulkSyncMemories {
	return &BulkSyncMemories{memories: memories, limiter: limiter, log: log}
}

// Execute pre-checks the whole batch against the remaining quota (all or
// nothing, never partial admission), then processes items in array order.
// Items missing content are skipped silently and a failed insert is logged
// and skipped; only the aggregate counts are reported. Callers needing
// per-item diagnostics would require a protocol change.
func (uc *BulkSyncMemories) Execute(ctx context.Context, userID domain.UserID, items []ItemInput) (synced, total int, err error) {
	total = len(items)
	if err := uc.limiter.CheckWrite(ctx, userID, total); err != nil {
		return 0, total, err
	}
	for _, item := range items {
		if strings.TrimSpace(item.Content) == "" {
			continue
		}
		m := build(userID, item)
		if err := uc.memories.Insert(ctx, m); err != nil {
			uc.log.Error().Err(err).Str("user_id", userID.String()).Msg("bulk sync: insert memory failed")
			continue
		}
		synced++
	}
	return synced, total, nil
}
