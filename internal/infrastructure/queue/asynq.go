package queue

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/domain"
)

const TypeTouchAPIKey = "apikey:touch"

// touchPayload matches the JSON enqueued by TaskEnqueuer.EnqueueTouchAPIKey.
type touchPayload struct {
	KeyID string `json:"key_id"`
}

// TaskEnqueuer schedules background tasks on Redis via Asynq.
type TaskEnqueuer struct {
	client *asynq.Client
	log    zerolog.Logger
}

func NewAsynqEnqueuer(redisOpt asynq.RedisClientOpt, log zerolog.Logger) (*TaskEnqueuer, error) {
	client := asynq.NewClient(redisOpt)
	return &TaskEnqueuer{client: client, log: log}, nil
}

func (q *TaskEnqueuer) Close() error {
	return q.client.Close()
}

// EnqueueTouchAPIKey schedules the last-used timestamp update. Failures are
// logged only; the caller never waits on the update itself.
func (q *TaskEnqueuer) EnqueueTouchAPIKey(ctx context.Context, keyID domain.KeyID) error {
	payload, _ := json.Marshal(touchPayload{KeyID: keyID.String()})
	task := asynq.NewTask(TypeTouchAPIKey, payload)
	_, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		q.log.Warn().Err(err).Str("key_id", keyID.String()).Msg("enqueue API key touch failed")
		return err
	}
	return nil
}

var _ ports.TaskEnqueuer = (*TaskEnqueuer)(nil)
