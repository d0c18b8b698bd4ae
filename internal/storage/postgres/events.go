package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harnesslab/harness/internal/types"
)

// AppendEvent appends one immutable event to a ticket's trajectory and
// returns its id.
func (s *PostgresStorage) AppendEvent(ctx context.Context, event *types.TicketEvent) (int64, error) {
	if !event.Kind.IsValid() {
		return 0, fmt.Errorf("invalid event kind: %s", event.Kind)
	}
	if _, err := s.GetTicket(ctx, event.TicketID); err != nil {
		return 0, err
	}

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	payload := []byte("{}")
	if event.Payload != nil {
		b, err := json.Marshal(event.Payload)
		if err != nil {
			return 0, fmt.Errorf("failed to encode event payload: %w", err)
		}
		payload = b
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO ticket_events (ticket_id, kind, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, event.TicketID, event.Kind, event.Actor, payload, event.CreatedAt).Scan(&event.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to append event: %w", err)
	}
	return event.ID, nil
}

// ListEvents returns a ticket's full trajectory in stable total order:
// creation time ascending, ties broken by id.
func (s *PostgresStorage) ListEvents(ctx context.Context, ticketID string) ([]*types.TicketEvent, error) {
	if _, err := s.GetTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, ticket_id, kind, actor, payload, created_at
		FROM ticket_events
		WHERE ticket_id = $1
		ORDER BY created_at ASC, id ASC
	`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*types.TicketEvent
	for rows.Next() {
		var e types.TicketEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.TicketID, &e.Kind, &e.Actor, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if len(payload) > 0 && string(payload) != "{}" {
			if err := json.Unmarshal(payload, &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode event payload: %w", err)
			}
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}
	return events, nil
}
