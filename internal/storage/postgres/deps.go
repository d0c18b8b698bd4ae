package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harnesslab/harness/internal/storage/storeerr"
	"github.com/harnesslab/harness/internal/types"
)

// depGraphLockID serializes dependency-graph mutations across connections.
// Postgres has no IMMEDIATE transactions, so an advisory xact lock plays
// the role the sqlite backend gets from BEGIN IMMEDIATE: no two cycle
// checks can interleave with each other's inserts.
const depGraphLockID = 0x7469636b6574 // "ticket"

// AddDependency inserts the edge ticket_id → depends_on_id, rejecting any
// edge that would close a cycle.
func (s *PostgresStorage) AddDependency(ctx context.Context, dep *types.Dependency, actor string) error {
	if dep.TicketID == dep.DependsOnID {
		return fmt.Errorf("ticket %s cannot depend on itself: %w", dep.TicketID, storeerr.ErrCycleDetected)
	}

	now := time.Now().UTC()
	dep.CreatedAt = now
	if dep.CreatedBy == "" {
		dep.CreatedBy = actor
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", depGraphLockID); err != nil {
		return fmt.Errorf("failed to acquire dependency lock: %w", err)
	}

	for _, id := range []string{dep.TicketID, dep.DependsOnID} {
		var exists bool
		err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM tickets WHERE id = $1)", id).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check ticket existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("ticket %s: %w", id, storeerr.ErrNotFound)
		}
	}

	// The new edge ticket→depends_on closes a cycle iff ticket is already
	// reachable from depends_on through existing edges.
	var cyclic bool
	err = tx.QueryRow(ctx, `
		WITH RECURSIVE reachable(id) AS (
			SELECT depends_on_id FROM ticket_dependencies WHERE ticket_id = $1
			UNION
			SELECT d.depends_on_id
			FROM ticket_dependencies d
			JOIN reachable r ON d.ticket_id = r.id
		)
		SELECT EXISTS(SELECT 1 FROM reachable WHERE id = $2)
	`, dep.DependsOnID, dep.TicketID).Scan(&cyclic)
	if err != nil {
		return fmt.Errorf("failed to run cycle check: %w", err)
	}
	if cyclic {
		return fmt.Errorf("edge %s → %s: %w", dep.TicketID, dep.DependsOnID, storeerr.ErrCycleDetected)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ticket_dependencies (ticket_id, depends_on_id, created_at, created_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticket_id, depends_on_id) DO NOTHING
	`, dep.TicketID, dep.DependsOnID, dep.CreatedAt, dep.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to insert dependency: %w", err)
	}

	payload, _ := json.Marshal(map[string]any{"depends_on_id": dep.DependsOnID})
	_, err = tx.Exec(ctx, `
		INSERT INTO ticket_events (ticket_id, kind, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, dep.TicketID, types.EventDependencyAdded, actor, payload, now)
	if err != nil {
		return fmt.Errorf("failed to record dependency event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// RemoveDependency deletes the edge unconditionally.
func (s *PostgresStorage) RemoveDependency(ctx context.Context, ticketID, dependsOnID, actor string) error {
	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		DELETE FROM ticket_dependencies WHERE ticket_id = $1 AND depends_on_id = $2
	`, ticketID, dependsOnID)
	if err != nil {
		return fmt.Errorf("failed to remove dependency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("dependency %s → %s: %w", ticketID, dependsOnID, storeerr.ErrNotFound)
	}

	payload, _ := json.Marshal(map[string]any{"depends_on_id": dependsOnID})
	_, err = tx.Exec(ctx, `
		INSERT INTO ticket_events (ticket_id, kind, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ticketID, types.EventDependencyRemoved, actor, payload, now)
	if err != nil {
		return fmt.Errorf("failed to record dependency event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// GetDependencies returns the tickets this ticket depends on.
func (s *PostgresStorage) GetDependencies(ctx context.Context, ticketID string) ([]*types.Ticket, error) {
	return s.queryLinkedTickets(ctx, ticketID, `
		SELECT `+prefixed(ticketColumns)+`
		FROM tickets t
		JOIN ticket_dependencies d ON t.id = d.depends_on_id
		WHERE d.ticket_id = $1
		ORDER BY t.priority DESC, t.created_at ASC
	`)
}

// GetDependents returns the tickets that depend on this ticket.
func (s *PostgresStorage) GetDependents(ctx context.Context, ticketID string) ([]*types.Ticket, error) {
	return s.queryLinkedTickets(ctx, ticketID, `
		SELECT `+prefixed(ticketColumns)+`
		FROM tickets t
		JOIN ticket_dependencies d ON t.id = d.ticket_id
		WHERE d.depends_on_id = $1
		ORDER BY t.priority DESC, t.created_at ASC
	`)
}

func (s *PostgresStorage) queryLinkedTickets(ctx context.Context, ticketID, query string) ([]*types.Ticket, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}
