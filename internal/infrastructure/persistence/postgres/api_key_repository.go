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
	insertKeySQL      = `INSERT INTO api_keys (id, user_id, key_hash, created_at) VALUES ($1, $2, $3, $4)`
	getKeyByHashSQL   = `SELECT id, user_id, key_hash, created_at, last_used_at, revoked_at FROM api_keys WHERE key_hash = $1`
	touchKeySQL       = `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`
	revokeKeySQL      = `UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`
	revokeUserKeysSQL = `UPDATE api_keys SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`
)

type APIKeyRepository struct {
	pool *pgxpool.Pool
}

func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

func (r *APIKeyRepository) Create(ctx context.Context, key *domain.APIKey) error {
	_, err := r.pool.Exec(ctx, insertKeySQL,
		key.ID.UUID, key.UserID.UUID, key.KeyHash, key.CreatedAt)
	return err
}

func (r *APIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*domain.APIKey, error) {
	var k domain.APIKey
	err := r.pool.QueryRow(ctx, getKeyByHashSQL, keyHash).
		Scan(&k.ID.UUID, &k.UserID.UUID, &k.KeyHash, &k.CreatedAt, &k.LastUsedAt, &k.RevokedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &k, nil
}

func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, keyID domain.KeyID) error {
	_, err := r.pool.Exec(ctx, touchKeySQL, keyID.UUID)
	return err
}

func (r *APIKeyRepository) Revoke(ctx context.Context, keyID domain.KeyID) error {
	tag, err := r.pool.Exec(ctx, revokeKeySQL, keyID.UUID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domerrors.ErrKeyNotFound
	}
	return nil
}

func (r *APIKeyRepository) RevokeAllForUser(ctx context.Context, userID domain.UserID) error {
	_, err := r.pool.Exec(ctx, revokeUserKeysSQL, userID.UUID)
	return err
}

// Ensure APIKeyRepository implements ports.APIKeyRepository.
var _ ports.APIKeyRepository = (*APIKeyRepository)(nil)
