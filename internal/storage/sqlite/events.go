package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harnesslab/harness/internal/types"
)

// AppendEvent appends one immutable event to a ticket's trajectory and
// returns its id. Events are never updated or deleted.
func (s *SQLiteStorage) AppendEvent(ctx context.Context, event *types.TicketEvent) (int64, error) {
	if !event.Kind.IsValid() {
		return 0, fmt.Errorf("invalid event kind: %s", event.Kind)
	}
	if _, err := s.GetTicket(ctx, event.TicketID); err != nil {
		return 0, err
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	payload := "{}"
	if event.Payload != nil {
		b, err := json.Marshal(event.Payload)
		if err != nil {
			return 0, fmt.Errorf("failed to encode event payload: %w", err)
		}
		payload = string(b)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO ticket_events (ticket_id, kind, actor, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, event.TicketID, event.Kind, event.Actor, payload, event.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to append event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get event id: %w", err)
	}
	event.ID = id
	return id, nil
}

// ListEvents returns a ticket's full trajectory in stable total order:
// creation time ascending, ties broken by id.
func (s *SQLiteStorage) ListEvents(ctx context.Context, ticketID string) ([]*types.TicketEvent, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticket_id, kind, actor, payload, created_at
		FROM ticket_events
		WHERE ticket_id = ?
		ORDER BY created_at ASC, id ASC
	`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*types.TicketEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (*types.TicketEvent, error) {
	var e types.TicketEvent
	var payload string
	if err := rows.Scan(&e.ID, &e.TicketID, &e.Kind, &e.Actor, &payload, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan event: %w", err)
	}
	if payload != "" && payload != "{}" {
		if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode event payload: %w", err)
		}
	}
	return &e, nil
}
