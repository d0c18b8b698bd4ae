package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/harnesslab/harness/internal/storage/storeerr"
	"github.com/harnesslab/harness/internal/types"
)

const ticketColumns = `id, objective, success_criteria, context, status, priority,
	source_kind, source_id, claimed_by, created_at, updated_at, resolved_at`

// CreateTicket persists a new ticket with the same dedup semantics as the
// SQLite backend. The partial unique index is the backstop for races that
// slip past the in-transaction lookup.
func (s *PostgresStorage) CreateTicket(ctx context.Context, ticket *types.Ticket, actor string) (types.CreateResult, error) {
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

	ctxJSON, err := json.Marshal(orEmpty(ticket.Context))
	if err != nil {
		return types.CreateResult{}, fmt.Errorf("failed to encode ticket context: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.CreateResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if ticket.SourceID != "" {
		var existing string
		err := tx.QueryRow(ctx, `
			SELECT id FROM tickets
			WHERE source_kind = $1 AND source_id = $2
			  AND status IN ('pending', 'in_progress', 'blocked')
		`, ticket.SourceKind, ticket.SourceID).Scan(&existing)
		if err == nil {
			if err := tx.Commit(ctx); err != nil {
				return types.CreateResult{}, fmt.Errorf("failed to commit: %w", err)
			}
			return types.CreateResult{TicketID: existing, Deduplicated: true}, nil
		}
		if err != pgx.ErrNoRows {
			return types.CreateResult{}, fmt.Errorf("failed to check for duplicate source: %w", err)
		}
	}

	if ticket.ID == "" {
		id, err := nextTicketID(ctx, tx)
		if err != nil {
			return types.CreateResult{}, err
		}
		ticket.ID = id
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO tickets (
			id, objective, success_criteria, context, status, priority,
			source_kind, source_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		ticket.ID, ticket.Objective, ticket.SuccessCriteria, ctxJSON,
		ticket.Status, ticket.Priority, ticket.SourceKind, ticket.SourceID,
		ticket.CreatedAt, ticket.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			_ = tx.Rollback(ctx)
			return s.resolveDedupWinner(ctx, ticket)
		}
		return types.CreateResult{}, fmt.Errorf("failed to insert ticket: %w", err)
	}

	payload, _ := json.Marshal(map[string]any{
		"initial_status": string(ticket.Status),
		"priority":       int(ticket.Priority),
		"source_kind":    string(ticket.SourceKind),
	})
	_, err = tx.Exec(ctx, `
		INSERT INTO ticket_events (ticket_id, kind, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ticket.ID, types.EventCreated, actor, payload, now)
	if err != nil {
		return types.CreateResult{}, fmt.Errorf("failed to record created event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return types.CreateResult{}, fmt.Errorf("failed to commit: %w", err)
	}
	return types.CreateResult{TicketID: ticket.ID}, nil
}

func (s *PostgresStorage) resolveDedupWinner(ctx context.Context, ticket *types.Ticket) (types.CreateResult, error) {
	var winner string
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM tickets
		WHERE source_kind = $1 AND source_id = $2
		  AND status IN ('pending', 'in_progress', 'blocked')
	`, ticket.SourceKind, ticket.SourceID).Scan(&winner)
	if err != nil {
		return types.CreateResult{}, fmt.Errorf("failed to resolve dedup winner: %w", err)
	}
	return types.CreateResult{TicketID: winner, Deduplicated: true}, nil
}

// GetTicket retrieves a ticket by id.
func (s *PostgresStorage) GetTicket(ctx context.Context, id string) (*types.Ticket, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+ticketColumns+" FROM tickets WHERE id = $1", id)
	ticket, err := scanTicket(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("ticket %s: %w", id, storeerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return ticket, nil
}

// ListTickets returns tickets matching the filter in claim order:
// priority descending, creation time ascending, stable.
func (s *PostgresStorage) ListTickets(ctx context.Context, filter types.TicketFilter) ([]*types.Ticket, error) {
	whereClauses := []string{}
	args := []interface{}{}
	param := 1

	if filter.Status != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("t.status = $%d", param))
		args = append(args, *filter.Status)
		param++
	}
	if filter.SourceKind != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("t.source_kind = $%d", param))
		args = append(args, *filter.SourceKind)
		param++
	}
	if filter.Ready {
		whereClauses = append(whereClauses, `t.status = 'pending'
			AND NOT EXISTS (
				SELECT 1 FROM ticket_dependencies d
				JOIN tickets dep ON d.depends_on_id = dep.id
				WHERE d.ticket_id = t.id AND dep.status != 'completed'
			)`)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = "WHERE " + strings.Join(whereClauses, " AND ")
	}
	limitSQL := ""
	if filter.Limit > 0 {
		limitSQL = fmt.Sprintf(" LIMIT $%d", param)
		args = append(args, filter.Limit)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM tickets t
		%s
		ORDER BY t.priority DESC, t.created_at ASC, t.id ASC
		%s
	`, prefixed(ticketColumns), whereSQL, limitSQL)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()
	return scanTickets(rows)
}

// GetReadyTickets returns pending tickets with all dependencies completed.
func (s *PostgresStorage) GetReadyTickets(ctx context.Context, limit int) ([]*types.Ticket, error) {
	return s.ListTickets(ctx, types.TicketFilter{Ready: true, Limit: limit})
}

// IsReady reports whether the ticket is pending with all dependencies
// completed.
func (s *PostgresStorage) IsReady(ctx context.Context, id string) (bool, error) {
	if _, err := s.GetTicket(ctx, id); err != nil {
		return false, err
	}
	var ready bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM tickets t
			WHERE t.id = $1 AND t.status = 'pending'
			  AND NOT EXISTS (
				SELECT 1 FROM ticket_dependencies d
				JOIN tickets dep ON d.depends_on_id = dep.id
				WHERE d.ticket_id = t.id AND dep.status != 'completed'
			  )
		)
	`, id).Scan(&ready)
	if err != nil {
		return false, fmt.Errorf("failed to check readiness: %w", err)
	}
	return ready, nil
}

// GetStatistics returns aggregate ticket counts.
func (s *PostgresStorage) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	var stats types.Statistics
	err := s.pool.QueryRow(ctx, `
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

	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM tickets t
		WHERE t.status = 'pending'
		  AND NOT EXISTS (
			SELECT 1 FROM ticket_dependencies d
			JOIN tickets dep ON d.depends_on_id = dep.id
			WHERE d.ticket_id = t.id AND dep.status != 'completed'
		  )
	`).Scan(&stats.ReadyTickets)
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
	var ctxJSON []byte
	var resolvedAt *time.Time

	err := row.Scan(
		&t.ID, &t.Objective, &t.SuccessCriteria, &ctxJSON, &t.Status,
		&t.Priority, &t.SourceKind, &t.SourceID, &t.ClaimedBy,
		&t.CreatedAt, &t.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	t.ResolvedAt = resolvedAt
	if len(ctxJSON) > 0 && string(ctxJSON) != "{}" {
		if err := json.Unmarshal(ctxJSON, &t.Context); err != nil {
			return nil, fmt.Errorf("failed to decode ticket context: %w", err)
		}
	}
	return &t, nil
}

func scanTickets(rows pgx.Rows) ([]*types.Ticket, error) {
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

func orEmpty(c map[string]any) map[string]any {
	if c == nil {
		return map[string]any{}
	}
	return c
}

// prefixed qualifies the shared column list with the tickets alias.
func prefixed(cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = "t." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
