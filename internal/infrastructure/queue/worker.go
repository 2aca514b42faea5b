package queue

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/domain"
)

// Worker runs Asynq task handlers (API key touch).
type Worker struct {
	srv  *asynq.Server
	mux  *asynq.ServeMux
	keys ports.APIKeyRepository
	log  zerolog.Logger
}

// NewWorker creates an Asynq server and registers handlers. Call Run() to start.
func NewWorker(redisOpt asynq.RedisClientOpt, keys ports.APIKeyRepository, log zerolog.Logger) *Worker {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		LogLevel:    asynq.InfoLevel,
	})
	mux := asynq.NewServeMux()
	w := &Worker{srv: srv, mux: mux, keys: keys, log: log}
	mux.HandleFunc(TypeTouchAPIKey, w.handleTouchAPIKey)
	return w
}

func (w *Worker) handleTouchAPIKey(ctx context.Context, t *asynq.Task) error {
	var p touchPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		w.log.Error().Err(err).Msg("API key touch payload invalid")
		return err
	}
	id, err := uuid.Parse(p.KeyID)
	if err != nil {
		w.log.Error().Err(err).Str("key_id", p.KeyID).Msg("API key touch id invalid")
		return err
	}
	if err := w.keys.TouchLastUsed(ctx, domain.NewKeyID(id)); err != nil {
		w.log.Warn().Err(err).Str("key_id", p.KeyID).Msg("API key touch failed")
		return err
	}
	return nil
}

// Run blocks until shutdown. Use Shutdown for graceful stop.
func (w *Worker) Run() error {
	return w.srv.Run(w.mux)
}

// Shutdown stops the worker.
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}
