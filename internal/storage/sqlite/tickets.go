package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/harnesslab/harness/internal/storage/storeerr"
	"github.com/harnesslab/harness/internal/types"
)

const ticketColumns = `id, objective, success_criteria, context, status, priority,
	source_kind, source_id, claimed_by, created_at, updated_at, resolved_at`

// CreateTicket persists a new ticket, deduplicating against open tickets
// from the same source. The lookup and insert run in one IMMEDIATE
// transaction; if a concurrent writer still wins the race, the partial
// unique index converts this insert into a deduplicated result.
func (s *SQLiteStorage) CreateTicket(ctx context.Context, ticket *types.Ticket, actor string) (types.CreateResult, error) {
	if ticket.Status == "" {
		ticket.Status = types.StatusPending
	}
	if ticket.Status != types.StatusPending {
		return types.CreateResult{}, fmt.Errorf("tickets must be created in pending status (got %s)", ticket.Status)
	}
	if err := ticket.Validate(); err != nil {
		return types.CreateResult{}, fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now

	ctxJSON, err := marshalContext(ticket.Context)
	if err != nil {
		return types.CreateResult{}, err
	}

	conn, cleanup, commit, err := s.beginImmediate(ctx)
	if err != nil {
		return types.CreateResult{}, err
	}
	defer cleanup()

	// Dedup lookup: any still-open ticket for this source wins.
	if ticket.SourceID != "" {
		var existing string
		err := conn.QueryRowContext(ctx, `
			SELECT id FROM tickets
			WHERE source_kind = ? AND source_id = ?
			  AND status IN ('pending', 'in_progress', 'blocked')
		`, ticket.SourceKind, ticket.SourceID).Scan(&existing)
		if err == nil {
			if err := commit(); err != nil {
				return types.CreateResult{}, err
			}
			return types.CreateResult{TicketID: existing, Deduplicated: true}, nil
		}
		if err != sql.ErrNoRows {
			return types.CreateResult{}, fmt.Errorf("failed to check for duplicate source: %w", err)
		}
	}

	if ticket.ID == "" {
		id, err := nextTicketID(ctx, conn)
		if err != nil {
			return types.CreateResult{}, err
		}
		ticket.ID = id
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO tickets (
			id, objective, success_criteria, context, status, priority,
			source_kind, source_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ticket.ID, ticket.Objective, ticket.SuccessCriteria, ctxJSON,
		ticket.Status, ticket.Priority, ticket.SourceKind, ticket.SourceID,
		ticket.CreatedAt, ticket.UpdatedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			// Lost a dedup race outside this transaction's view.
			return s.resolveDedupWinner(ctx, ticket)
		}
		return types.CreateResult{}, fmt.Errorf("failed to insert ticket: %w", err)
	}

	payload, _ := json.Marshal(map[string]any{
		"initial_status": string(ticket.Status),
		"priority":       int(ticket.Priority),
		"source_kind":    string(ticket.SourceKind),
	})
	_, err = conn.ExecContext(ctx, `
		INSERT INTO ticket_events (ticket_id, kind, actor, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, ticket.ID, types.EventCreated, actor, string(payload), now)
	if err != nil {
		return types.CreateResult{}, fmt.Errorf("failed to record created event: %w", err)
	}

	if err := commit(); err != nil {
		return types.CreateResult{}, err
	}
	return types.CreateResult{TicketID: ticket.ID}, nil
}

// resolveDedupWinner looks up the open ticket that beat this create.
func (s *SQLiteStorage) resolveDedupWinner(ctx context.Context, ticket *types.Ticket) (types.CreateResult, error) {
	var winner string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM tickets
		WHERE source_kind = ? AND source_id = ?
		  AND status IN ('pending', 'in_progress', 'blocked')
	`, ticket.SourceKind, ticket.SourceID).Scan(&winner)
	if err != nil {
		return types.CreateResult{}, fmt.Errorf("failed to resolve dedup winner: %w", err)
	}
	return types.CreateResult{TicketID: winner, Deduplicated: true}, nil
}

// GetTicket retrieves a ticket by id.
func (s *SQLiteStorage) GetTicket(ctx context.Context, id string) (*types.Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE id = ?", id)
	ticket, err := scanTicket(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("ticket %s: %w", id, storeerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return ticket, nil
}

// ListTickets returns tickets matching the filter, ordered by priority
// descending then creation time ascending. The ordering is stable: ties
// break on id, which increases monotonically.
func (s *SQLiteStorage) ListTickets(ctx context.Context, filter types.TicketFilter) ([]*types.Ticket, error) {
	from := "tickets"
	if filter.Ready {
		from = "ready_tickets"
	}

	whereClauses := []string{}
	args := []interface{}{}

	if filter.Status != nil {
		whereClauses = append(whereClauses, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.SourceKind != nil {
		whereClauses = append(whereClauses, "source_kind = ?")
		args = append(args, *filter.SourceKind)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = "WHERE " + strings.Join(whereClauses, " AND ")
	}
	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		%s
		ORDER BY priority DESC, created_at ASC, id ASC
		%s
	`, ticketColumns, from, whereSQL, limitSQL)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	return scanTickets(rows)
}

// GetReadyTickets returns pending tickets whose dependencies are all
// completed, in claim order.
func (s *SQLiteStorage) GetReadyTickets(ctx context.Context, limit int) ([]*types.Ticket, error) {
	return s.ListTickets(ctx, types.TicketFilter{Ready: true, Limit: limit})
}

// IsReady reports whether the ticket is pending with all dependencies
// completed.
func (s *SQLiteStorage) IsReady(ctx context.Context, id string) (bool, error) {
	if _, err := s.GetTicket(ctx, id); err != nil {
		return false, err
	}
	var ready bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM ready_tickets WHERE id = ?)", id).Scan(&ready)
	if err != nil {
		return false, fmt.Errorf("failed to check readiness: %w", err)
	}
	return ready, nil
}

// GetStatistics returns aggregate ticket counts.
func (s *SQLiteStorage) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	var stats types.Statistics
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'in_progress'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COUNT(*) FILTER (WHERE status = 'blocked')
		FROM tickets
	`).Scan(
		&stats.TotalTickets, &stats.PendingTickets, &stats.InProgressTickets,
		&stats.CompletedTickets, &stats.FailedTickets, &stats.BlockedTickets,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket counts: %w", err)
	}

	err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ready_tickets").Scan(&stats.ReadyTickets)
	if err != nil {
		return nil, fmt.Errorf("failed to get ready count: %w", err)
	}
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row rowScanner) (*types.Ticket, error) {
	var t types.Ticket
	var ctxJSON string
	var resolvedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.Objective, &t.SuccessCriteria, &ctxJSON, &t.Status,
		&t.Priority, &t.SourceKind, &t.SourceID, &t.ClaimedBy,
		&t.CreatedAt, &t.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	if resolvedAt.Valid {
		t.ResolvedAt = &resolvedAt.Time
	}
	if ctxJSON != "" && ctxJSON != "{}" {
		if err := json.Unmarshal([]byte(ctxJSON), &t.Context); err != nil {
			return nil, fmt.Errorf("failed to decode ticket context: %w", err)
		}
	}
	return &t, nil
}

func scanTickets(rows *sql.Rows) ([]*types.Ticket, error) {
	var tickets []*types.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickets: %w", err)
	}
	return tickets, nil
}

// marshalContext encodes the opaque context payload. The engine stores and
// returns it verbatim, never inspecting its shape.
func marshalContext(c map[string]any) (string, error) {
	if c == nil {
		return "{}", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode ticket context: %w", err)
	}
	return string(b), nil
}
