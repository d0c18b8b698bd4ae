// Package postgres is the alternative ticket store backend for multi-host
// deployments. It carries the same coordination semantics as the SQLite
// backend: every primitive is a single transaction, cycle checks are
// serialized with an advisory lock, and dedup rests on a partial unique
// index.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketPrefix = "tk"

// PostgresStorage implements the Storage interface using PostgreSQL.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL storage backend from a connection URL.
func New(ctx context.Context, url string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// nextTicketID atomically increments the per-prefix counter inside the
// caller's transaction.
func nextTicketID(ctx context.Context, tx pgx.Tx) (string, error) {
	var n int64
	err := tx.QueryRow(ctx, `
		INSERT INTO ticket_counters (prefix, last_id) VALUES ($1, 1)
		ON CONFLICT (prefix) DO UPDATE SET last_id = ticket_counters.last_id + 1
		RETURNING last_id
	`, ticketPrefix).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("failed to generate ticket id: %w", err)
	}
	return fmt.Sprintf("%s-%d", ticketPrefix, n), nil
}

// isUniqueViolation checks for a Postgres unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Close closes the connection pool.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}
