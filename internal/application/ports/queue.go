package ports

import (
	"context"

	"github.com/engram-labs/engram/internal/domain"
)

// TaskEnqueuer schedules background work. Enqueue failures are logged by the
// implementation and must never propagate into the request path.
type TaskEnqueuer interface {
	// EnqueueTouchAPIKey schedules a best-effort update of the key's
	// last-used timestamp. Fire-and-forget telemetry, not correctness.
	EnqueueTouchAPIKey(ctx context.Context, keyID domain.KeyID) error
}
