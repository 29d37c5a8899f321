package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is one completed translation operation: which file, how many
// entries came back done, how many failed.
type Record struct {
	ID        int64
	FileName  string
	Dialect   string
	Requested int
	Done      int
	Failed    int
	Message   string
	CreatedAt time.Time
}

// Store persists operation records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the history table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS operation_history (
			id BIGSERIAL PRIMARY KEY,
			file_name TEXT NOT NULL,
			dialect TEXT NOT NULL,
			requested INT NOT NULL,
			done INT NOT NULL,
			failed INT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

// Add appends one operation record.
func (s *Store) Add(ctx context.Context, r Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO operation_history (file_name, dialect, requested, done, failed, message)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.FileName, r.Dialect, r.Requested, r.Done, r.Failed, r.Message)
	if err != nil {
		return fmt.Errorf("add history record: %w", err)
	}
	return nil
}

// List returns the most recent records, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, file_name, dialect, requested, done, failed, message, created_at
		FROM operation_history
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.FileName, &r.Dialect, &r.Requested, &r.Done, &r.Failed, &r.Message, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}

	return records, nil
}
