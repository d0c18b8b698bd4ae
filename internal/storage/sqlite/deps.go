package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harnesslab/harness/internal/storage/storeerr"
	"github.com/harnesslab/harness/internal/types"
)

// AddDependency inserts the edge ticket_id → depends_on_id, rejecting any
// edge that would close a cycle. The reachability check and the insert run
// in one IMMEDIATE transaction, so two processes adding complementary edges
// cannot jointly create a cycle neither check alone would see.
func (s *SQLiteStorage) AddDependency(ctx context.Context, dep *types.Dependency, actor string) error {
	if dep.TicketID == dep.DependsOnID {
		return fmt.Errorf("ticket %s cannot depend on itself: %w", dep.TicketID, storeerr.ErrCycleDetected)
	}

	now := time.Now().UTC()
	dep.CreatedAt = now
	if dep.CreatedBy == "" {
		dep.CreatedBy = actor
	}

	conn, cleanup, commit, err := s.beginImmediate(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	for _, id := range []string{dep.TicketID, dep.DependsOnID} {
		var exists bool
		err := conn.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM tickets WHERE id = ?)", id).Scan(&exists)
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
	err = conn.QueryRowContext(ctx, `
		WITH RECURSIVE reachable(id) AS (
			SELECT depends_on_id FROM ticket_dependencies WHERE ticket_id = ?
			UNION
			SELECT d.depends_on_id
			FROM ticket_dependencies d
			JOIN reachable r ON d.ticket_id = r.id
		)
		SELECT EXISTS(SELECT 1 FROM reachable WHERE id = ?)
	`, dep.DependsOnID, dep.TicketID).Scan(&cyclic)
	if err != nil {
		return fmt.Errorf("failed to run cycle check: %w", err)
	}
	if cyclic {
		return fmt.Errorf("edge %s → %s: %w", dep.TicketID, dep.DependsOnID, storeerr.ErrCycleDetected)
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO ticket_dependencies (ticket_id, depends_on_id, created_at, created_by)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticket_id, depends_on_id) DO NOTHING
	`, dep.TicketID, dep.DependsOnID, dep.CreatedAt, dep.CreatedBy)
	if err != nil {
		return fmt.Errorf("failed to insert dependency: %w", err)
	}

	payload, _ := json.Marshal(map[string]any{"depends_on_id": dep.DependsOnID})
	_, err = conn.ExecContext(ctx, `
		INSERT INTO ticket_events (ticket_id, kind, actor, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, dep.TicketID, types.EventDependencyAdded, actor, string(payload), now)
	if err != nil {
		return fmt.Errorf("failed to record dependency event: %w", err)
	}

	return commit()
}

// RemoveDependency deletes the edge unconditionally.
func (s *SQLiteStorage) RemoveDependency(ctx context.Context, ticketID, dependsOnID, actor string) error {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM ticket_dependencies WHERE ticket_id = ? AND depends_on_id = ?
	`, ticketID, dependsOnID)
	if err != nil {
		return fmt.Errorf("failed to remove dependency: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("dependency %s → %s: %w", ticketID, dependsOnID, storeerr.ErrNotFound)
	}

	payload, _ := json.Marshal(map[string]any{"depends_on_id": dependsOnID})
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ticket_events (ticket_id, kind, actor, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ticketID, types.EventDependencyRemoved, actor, string(payload), now)
	if err != nil {
		return fmt.Errorf("failed to record dependency event: %w", err)
	}

	return tx.Commit()
}

// GetDependencies returns the tickets this ticket depends on.
func (s *SQLiteStorage) GetDependencies(ctx context.Context, ticketID string) ([]*types.Ticket, error) {
	return s.queryLinkedTickets(ctx, ticketID, `
		SELECT `+prefixedTicketColumns+`
		FROM tickets t
		JOIN ticket_dependencies d ON t.id = d.depends_on_id
		WHERE d.ticket_id = ?
		ORDER BY t.priority DESC, t.created_at ASC
	`)
}

// GetDependents returns the tickets that depend on this ticket.
func (s *SQLiteStorage) GetDependents(ctx context.Context, ticketID string) ([]*types.Ticket, error) {
	return s.queryLinkedTickets(ctx, ticketID, `
		SELECT `+prefixedTicketColumns+`
		FROM tickets t
		JOIN ticket_dependencies d ON t.id = d.ticket_id
		WHERE d.depends_on_id = ?
		ORDER BY t.priority DESC, t.created_at ASC
	`)
}

const prefixedTicketColumns = `t.id, t.objective, t.success_criteria, t.context, t.status,
	t.priority, t.source_kind, t.source_id, t.claimed_by, t.created_at, t.updated_at, t.resolved_at`

func (s *SQLiteStorage) queryLinkedTickets(ctx context.Context, ticketID, query string) ([]*types.Ticket, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dependencies: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}
