package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/domain"
)

const insertSnapshotSQL = `INSERT INTO snapshots
	(id, user_id, project_path, summary, context, decisions, next_steps, files, importance, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

type SnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

func (r *SnapshotRepository) Insert(ctx context.Context, snapshot *domain.Snapshot) error {
	_, err := r.pool.Exec(ctx, insertSnapshotSQL,
		snapshot.ID.UUID, snapshot.UserID.UUID, snapshot.ProjectPath, snapshot.Summary,
		snapshot.Context, snapshot.Decisions, snapshot.NextSteps, snapshot.Files,
		string(snapshot.Importance), snapshot.CreatedAt)
	return err
}

// Ensure SnapshotRepository implements ports.SnapshotRepository.
var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)
