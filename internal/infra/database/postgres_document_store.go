package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"reading_program_bot/internal/domain/document"
)

// PostgresDocumentStore keeps documents as JSONB rows. AtomicUpdate holds a row lock for
// the duration of the mutator; a placeholder row with a NULL body is inserted first so
// that two callers creating the same document also serialize on it.
type PostgresDocumentStore struct {
	db *sql.DB
}

func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

func (s *PostgresDocumentStore) Read(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE path = $1`, path).Scan(&body)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, document.ErrNotFound
		}
		return nil, fmt.Errorf("error reading document %s: %w", path, err)
	}
	if body == nil {
		return nil, document.ErrNotFound
	}
	return body, nil
}

func (s *PostgresDocumentStore) ReadMany(ctx context.Context, paths []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(paths))
	if len(paths) == 0 {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, body FROM documents WHERE path = ANY($1::text[]) AND body IS NOT NULL`,
		pq.Array(paths))
	if err != nil {
		return nil, fmt.Errorf("error reading documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var path string
		var body []byte
		if err := rows.Scan(&path, &body); err != nil {
			return nil, fmt.Errorf("error scanning document row: %w", err)
		}
		out[path] = body
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}
	return out, nil
}

func (s *PostgresDocumentStore) AtomicUpdate(ctx context.Context, path string, fn document.Mutator) ([]byte, error) {
	txn, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for %s: %w", path, err)
	}
	defer txn.Rollback() // Rollback if not committed

	if _, err := txn.ExecContext(ctx,
		`INSERT INTO documents (path, body) VALUES ($1, NULL) ON CONFLICT (path) DO NOTHING`, path); err != nil {
		return nil, fmt.Errorf("error reserving document %s: %w", path, err)
	}

	var current []byte
	if err := txn.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE path = $1 FOR UPDATE`, path).Scan(&current); err != nil {
		return nil, fmt.Errorf("error locking document %s: %w", path, err)
	}

	next, err := fn(current)
	if errors.Is(err, document.ErrUnchanged) {
		if err := txn.Commit(); err != nil {
			return nil, fmt.Errorf("error committing %s: %w", path, err)
		}
		return current, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := txn.ExecContext(ctx,
		`UPDATE documents SET body = $2::jsonb, version = version + 1, updated_at = NOW() WHERE path = $1`,
		path, string(next)); err != nil {
		return nil, fmt.Errorf("error writing document %s: %w", path, err)
	}
	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("error committing %s: %w", path, err)
	}
	return next, nil
}

func (s *PostgresDocumentStore) Append(ctx context.Context, collection, key string, body []byte) (string, error) {
	if key == "" {
		key = uuid.NewString()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO append_log (collection, record_key, body) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, record_key) DO NOTHING`,
		collection, key, string(body))
	if err != nil {
		return "", fmt.Errorf("error appending to %s: %w", collection, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("error appending to %s: %w", collection, err)
	}
	if n == 0 {
		return key, document.ErrAlreadyExists
	}
	return key, nil
}

func (s *PostgresDocumentStore) List(ctx context.Context, collection string) ([][]byte, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM append_log WHERE collection = $1 ORDER BY record_key`, collection)
	if err != nil {
		return nil, fmt.Errorf("error listing %s: %w", collection, err)
	}
	defer rows.Close()
	out := make([][]byte, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("error scanning %s record: %w", collection, err)
		}
		out = append(out, body)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s records: %w", collection, err)
	}
	return out, nil
}
