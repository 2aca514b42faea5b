package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied idempotently at startup.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         UUID PRIMARY KEY,
	email      TEXT NOT NULL UNIQUE,
	tier       TEXT NOT NULL DEFAULT 'free',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS api_keys (
	id           UUID PRIMARY KEY,
	user_id      UUID NOT NULL REFERENCES users(id),
	key_hash     TEXT NOT NULL UNIQUE,
	created_at   TIMESTAMPTZ NOT NULL,
	last_used_at TIMESTAMPTZ,
	revoked_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_api_keys_user ON api_keys(user_id);

CREATE TABLE IF NOT EXISTS memories (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL REFERENCES users(id),
	content    TEXT NOT NULL,
	context    TEXT NOT NULL DEFAULT '',
	importance TEXT NOT NULL DEFAULT 'normal',
	tags       TEXT[],
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_memories_user_created ON memories(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_memories_user_importance ON memories(user_id, importance);
CREATE INDEX IF NOT EXISTS idx_memories_content_fts ON memories
	USING GIN (to_tsvector('english', content));

CREATE TABLE IF NOT EXISTS snapshots (
	id           UUID PRIMARY KEY,
	user_id      UUID NOT NULL REFERENCES users(id),
	project_path TEXT NOT NULL,
	summary      TEXT NOT NULL,
	context      TEXT NOT NULL,
	decisions    TEXT NOT NULL DEFAULT '',
	next_steps   TEXT NOT NULL DEFAULT '',
	files        TEXT[],
	importance   TEXT NOT NULL DEFAULT 'normal',
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_user_created ON snapshots(user_id, created_at DESC);
`

// Migrate creates the tables and indexes if they do not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
