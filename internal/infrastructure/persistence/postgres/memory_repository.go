package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/engram-labs/engram/internal/application/ports"
	"github.com/engram-labs/engram/internal/domain"
	domerrors "github.com/engram-labs/engram/internal/domain/errors"
)

const (
	insertMemorySQL = `INSERT INTO memories (id, user_id, content, context, importance, tags, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	countMemoriesSQL = `SELECT COUNT(*) FROM memories WHERE user_id = $1`
	listMemoriesSQL  = `SELECT id, user_id, content, context, importance, tags, created_at
		FROM memories WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2`
	listMemoriesByImportanceSQL = `SELECT id, user_id, content, context, importance, tags, created_at
		FROM memories WHERE user_id = $1 AND importance = $2
		ORDER BY created_at DESC LIMIT $3`
	searchMemoriesSQL = `SELECT id, user_id, content, context, importance, tags, created_at
		FROM memories
		WHERE user_id = $1 AND to_tsvector('english', content) @@ plainto_tsquery('english', $2)
		ORDER BY ts_rank(to_tsvector('english', content), plainto_tsquery('english', $2)) DESC
		LIMIT $3`
	deleteMemorySQL = `DELETE FROM memories WHERE id = $1 AND user_id = $2`
)

type MemoryRepository struct {
	pool *pgxpool.Pool
}

func NewMemoryRepository(pool *pgxpool.Pool) *MemoryRepository {
	return &MemoryRepository{pool: pool}
}

func (r *MemoryRepository) Insert(ctx context.Context, memory *domain.Memory) error {
	_, err := r.pool.Exec(ctx, insertMemorySQL,
		memory.ID.UUID, memory.UserID.UUID, memory.Content, memory.Context,
		string(memory.Importance), memory.Tags, memory.CreatedAt)
	return err
}

func (r *MemoryRepository) CountByUser(ctx context.Context, userID domain.UserID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, countMemoriesSQL, userID.UUID).Scan(&count)
	return count, err
}

func (r *MemoryRepository) ListByUser(ctx context.Context, userID domain.UserID, filter ports.MemoryFilter) ([]*domain.Memory, error) {
	var rows pgx.Rows
	var err error
	if filter.Importance != "" {
		rows, err = r.pool.Query(ctx, listMemoriesByImportanceSQL, userID.UUID, string(filter.Importance), filter.Limit)
	} else {
		rows, err = r.pool.Query(ctx, listMemoriesSQL, userID.UUID, filter.Limit)
	}
	if err != nil {
		return nil, err
	}
	return scanMemories(rows)
}

func (r *MemoryRepository) SearchByUser(ctx context.Context, userID domain.UserID, query string, limit int) ([]*domain.Memory, error) {
	rows, err := r.pool.Query(ctx, searchMemoriesSQL, userID.UUID, query, limit)
	if err != nil {
		return nil, err
	}
	return scanMemories(rows)
}

func (r *MemoryRepository) DeleteOwned(ctx context.Context, userID domain.UserID, memoryID domain.MemoryID) error {
	tag, err := r.pool.Exec(ctx, deleteMemorySQL, memoryID.UUID, userID.UUID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domerrors.ErrMemoryNotFound
	}
	return nil
}

func scanMemories(rows pgx.Rows) ([]*domain.Memory, error) {
	defer rows.Close()
	var list []*domain.Memory
	for rows.Next() {
		var m domain.Memory
		var importance string
		if err := rows.Scan(&m.ID.UUID, &m.UserID.UUID, &m.Content, &m.Context, &importance, &m.Tags, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Importance = domain.MemoryImportance(importance)
		list = append(list, &m)
	}
	return list, rows.Err()
}

// Ensure MemoryRepository implements ports.MemoryRepository.
var _ ports.MemoryRepository = (*MemoryRepository)(nil)
