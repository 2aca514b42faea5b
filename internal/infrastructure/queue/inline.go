package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/domain"
)

// InlineEnqueuer runs tasks in a detached goroutine when Redis/Asynq is not
// configured. Same fire-and-forget contract: the touch is decoupled from the
// request context so a slow or failed update can never delay a response.
type InlineEnqueuer struct {
	keys ports.APIKeyRepository
	log  zerolog.Logger
}

func NewInlineEnqueuer(keys ports.APIKeyRepository, log zerolog.Logger) *InlineEnqueuer {
	return &InlineEnqueuer{keys: keys, log: log}
}

func (q *InlineEnqueuer) EnqueueTouchAPIKey(_ context.Context, keyID domain.KeyID) error {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.keys.TouchLastUsed(ctx, keyID); err != nil {
			q.log.Warn().Err(err).Str("key_id", keyID.String()).Msg("API key touch failed")
		}
	}()
	return nil
}

var _ ports.TaskEnqueuer = (*InlineEnqueuer)(nil)
