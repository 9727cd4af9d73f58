package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sproutlog/sproutlog/internal/domain/model"
)

// ResultStore keeps rendered export payloads in Postgres under opaque result
// keys. Payloads are small enough (single-report PDFs and CSVs) that a blob
// column beats wiring a separate object store.
type ResultStore struct {
	db     *sql.DB
	config RepoConfig
}

// NewResultStore creates a new ResultStore with the given database connection.
func NewResultStore(db *sql.DB, config RepoConfig) *ResultStore {
	return &ResultStore{db: db, config: config}
}

// Put stores a payload under key, replacing any previous payload.
func (s *ResultStore) Put(ctx context.Context, key string, contentType string, payload []byte) error {
	if key == "" {
		return fmt.Errorf("result key cannot be empty")
	}

	query := `
		INSERT INTO export_results (result_key, content_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (result_key) DO UPDATE SET
			content_type = EXCLUDED.content_type,
			payload = EXCLUDED.payload,
			created_at = EXCLUDED.created_at`

	now := s.config.timeProvider().Now()
	if _, err := s.db.ExecContext(ctx, query, key, contentType, payload, now); err != nil {
		return fmt.Errorf("failed to store export result: %w", err)
	}
	return nil
}

// Get returns the payload stored under key. Returns ErrResultNotFound when
// the key does not exist.
func (s *ResultStore) Get(ctx context.Context, key string) (string, []byte, error) {
	if key == "" {
		return "", nil, fmt.Errorf("result key cannot be empty")
	}

	query := `SELECT content_type, payload FROM export_results WHERE result_key = $1`

	var contentType string
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, key).Scan(&contentType, &payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil, model.ErrResultNotFound
		}
		return "", nil, fmt.Errorf("failed to fetch export result: %w", err)
	}
	return contentType, payload, nil
}

// Delete removes the payload stored under key. Deleting a missing key is not
// an error.
func (s *ResultStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("result key cannot be empty")
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM export_results WHERE result_key = $1`, key); err != nil {
		return fmt.Errorf("failed to delete export result: %w", err)
	}
	return nil
}
