// Package sqlite is the primary ticket store backend. All coordination
// primitives — dedup-on-create, conditional status transitions, cycle-checked
// dependency inserts — are expressed as single SQLite transactions so that
// independent processes sharing the database file agree on every outcome.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

const ticketPrefix = "tk"

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// New creates a new SQLite storage backend at the given path.
// ":memory:" opens an in-memory database, useful for tests.
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL mode for multi-process readers; foreign keys on so ticket
	// deletion (which never happens through this API) cannot orphan rows.
	dsn := path + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000"
	if path == ":memory:" {
		// A shared cache keeps every pool connection on the same in-memory
		// database; without it each connection would see an empty schema.
		dsn = "file::memory:?cache=shared&_foreign_keys=ON"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// beginImmediate acquires a dedicated connection and starts an IMMEDIATE
// transaction on it. IMMEDIATE takes the write lock up front, serializing
// concurrent writers; database/sql's BeginTx cannot express this mode, so
// the transaction is driven with raw Exec on one connection.
//
// The returned cleanup must be deferred; it rolls back unless commit ran.
func (s *SQLiteStorage) beginImmediate(ctx context.Context) (*sql.Conn, func(), func() error, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		conn.Close()
		return nil, nil, nil, fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	committed := false
	cleanup := func() {
		if !committed {
			// Background context so rollback still runs if ctx is canceled.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
		conn.Close()
	}
	commit := func() error {
		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		committed = true
		return nil
	}
	return conn, cleanup, commit, nil
}

// nextTicketID atomically increments the per-prefix counter and returns the
// next id, inside the caller's transaction.
func nextTicketID(ctx context.Context, conn *sql.Conn) (string, error) {
	var n int64
	err := conn.QueryRowContext(ctx, `
		INSERT INTO ticket_counters (prefix, last_id) VALUES (?, 1)
		ON CONFLICT(prefix) DO UPDATE SET last_id = last_id + 1
		RETURNING last_id
	`, ticketPrefix).Scan(&n)
	if err != nil {
		return "", fmt.Errorf("failed to generate ticket id: %w", err)
	}
	return fmt.Sprintf("%s-%d", ticketPrefix, n), nil
}

// isUniqueConstraintError checks for a SQLite unique-constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
