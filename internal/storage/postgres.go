package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps documents in the documents table (see migrations).
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Read loads a document by name
func (s *PostgresStore) Read(ctx context.Context, name string, dst any) (bool, error) {
	query := `
		SELECT body
		FROM documents
		WHERE name = $1
	`

	var body []byte
	err := s.pool.QueryRow(ctx, query, name).Scan(&body)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("read document: %w", err)
	}

	return true, decode(name, body, dst)
}

// Write inserts or overwrites a document
func (s *PostgresStore) Write(ctx context.Context, name string, src any) error {
	body, err := encode(name, src)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (name, body, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET body = EXCLUDED.body, updated_at = now()
	`

	if _, err := s.pool.Exec(ctx, query, name, body); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	return nil
}
