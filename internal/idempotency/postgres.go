package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sungwon/task-pipeline/internal/storage"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS processed_tasks (
	task_id      TEXT PRIMARY KEY,
	completed_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at   TIMESTAMPTZ
)`

// PostgresStore keeps completed task ids in the processed_tasks table.
type PostgresStore struct {
	db *storage.DB
}

// NewPostgresStore creates the processed_tasks table if needed.
func NewPostgresStore(ctx context.Context, db *storage.DB) (*PostgresStore, error) {
	if _, err := db.Pool.Exec(ctx, createTableSQL); err != nil {
		return nil, fmt.Errorf("create processed_tasks table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// IsCompleted reports whether an unexpired row exists for taskID.
func (s *PostgresStore) IsCompleted(ctx context.Context, taskID string) (bool, error) {
	var one int
	err := s.db.Pool.QueryRow(ctx,
		`SELECT 1 FROM processed_tasks WHERE task_id = $1 AND (expires_at IS NULL OR expires_at > now())`,
		taskID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query processed task %s: %w", taskID, err)
	}
	return true, nil
}

// MarkCompleted inserts a row for taskID. An expired row is refreshed; a live
// row is left as is.
func (s *PostgresStore) MarkCompleted(ctx context.Context, taskID string, ttl time.Duration) error {
	var expires *time.Time
	if ttl > 0 {
		t := time.Now().Add(ttl)
		expires = &t
	}

	_, err := s.db.Pool.Exec(ctx, `
INSERT INTO processed_tasks (task_id, expires_at) VALUES ($1, $2)
ON CONFLICT (task_id) DO UPDATE
	SET completed_at = now(), expires_at = EXCLUDED.expires_at
	WHERE processed_tasks.expires_at IS NOT NULL AND processed_tasks.expires_at <= now()`,
		taskID, expires,
	)
	if err != nil {
		return fmt.Errorf("insert processed task %s: %w", taskID, err)
	}
	return nil
}
