package tier

import (
	"context"
	"fmt"

	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/domain"
	domerrors "github.com/engram-labs/engram/internal/domain/errors"
)

// DefaultFreeLimit is the free-tier memory ceiling.
const DefaultFreeLimit = 500

// LimitError reports a rejected write with enough detail for an
// upgrade-oriented response. Requested is 0 for single writes.
type LimitError struct {
	Limit     int
	Current   int
	Requested int
}

func (e *LimitError) Error() string {
	if e.Requested > 0 {
		return fmt.Sprintf("free tier limit reached: %d stored, %d requested, limit %d", e.Current, e.Requested, e.Limit)
	}
	return fmt.Sprintf("free tier limit reached: %d stored, limit %d", e.Current, e.Limit)
}

// Limiter decides whether a user may store more memories. Quota is derived,
// not stored: the count is recomputed on every write request. Snapshot writes
// are unmetered.
type Limiter struct {
	users    ports.UserRepository
	memories ports.MemoryRepository
	limit    int
}

// NewLimiter builds a limiter with the given free-tier ceiling (<=0 uses
// DefaultFreeLimit).
func NewLimiter(users ports.UserRepository, memories ports.MemoryRepository, limit int) *Limiter {
	if limit <= 0 {
		limit = DefaultFreeLimit
	}
	return &Limiter{users: users, memories: memories, limit: limit}
}

// Limit returns the free-tier ceiling.
func (l *Limiter) Limit() int { return l.limit }

// CheckWrite returns nil if the user may write batch more memories, or a
// *LimitError if the write would exceed the free tier. Partial admission is
// never offered: a batch either fits entirely or is rejected.
//
// Known race: two concurrent requests that each pass this check can jointly
// exceed the limit. Exact enforcement would need a serializable transaction
// around count-then-insert; the weaker model is accepted here.
func (l *Limiter) CheckWrite(ctx context.Context, userID domain.UserID, batch int) error {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return domerrors.ErrUserNotFound
	}
	if user.Tier.Unlimited() {
		return nil
	}
	current, err := l.memories.CountByUser(ctx, userID)
	if err != nil {
		return err
	}
	if current+batch > l.limit {
		lerr := &LimitError{Limit: l.limit, Current: current}
		if batch > 1 {
			lerr.Requested = batch
		}
		return lerr
	}
	return nil
}
