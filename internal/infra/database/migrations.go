package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied on every start; each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS teachers (
		id          BIGSERIAL PRIMARY KEY,
		telegram_id BIGINT NOT NULL,
		first_name  TEXT NOT NULL,
		last_name   TEXT,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT teachers_telegram_id_key UNIQUE (telegram_id)
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		path       TEXT PRIMARY KEY,
		body       JSONB,
		version    BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS append_log (
		collection  TEXT NOT NULL,
		record_key  TEXT NOT NULL,
		body        JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (collection, record_key)
	)`,
}

// Migrate creates the tables the bot needs.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
