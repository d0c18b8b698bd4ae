package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/harnesslab/harness/internal/storage/storeerr"
	"github.com/harnesslab/harness/internal/types"
)

// ApplyTransition is the conditional status write; see the sqlite backend
// for the full contract. The WHERE clause on status linearizes concurrent
// attempts.
func (s *PostgresStorage) ApplyTransition(ctx context.Context, id string, expected, next types.Status, reason, actor string) error {
	if !expected.IsValid() {
		return fmt.Errorf("invalid expected status %q: %w", expected, storeerr.ErrInvalidTransition)
	}
	if !next.IsValid() {
		return fmt.Errorf("invalid target status %q: %w", next, storeerr.ErrInvalidTransition)
	}
	if !expected.CanTransitionTo(next) {
		return fmt.Errorf("%s → %s: %w", expected, next, storeerr.ErrInvalidTransition)
	}

	now := time.Now().UTC()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	claimedBy := ""
	if next == types.StatusInProgress {
		claimedBy = actor
	}
	var tag pgconn.CommandTag
	if next.IsTerminal() {
		tag, err = tx.Exec(ctx, `
			UPDATE tickets
			SET status = $1, updated_at = $2, claimed_by = '',
			    resolved_at = COALESCE(resolved_at, $2)
			WHERE id = $3 AND status = $4
		`, next, now, id, expected)
	} else {
		tag, err = tx.Exec(ctx, `
			UPDATE tickets
			SET status = $1, updated_at = $2, claimed_by = $3
			WHERE id = $4 AND status = $5
		`, next, now, claimedBy, id, expected)
	}
	if err != nil {
		return fmt.Errorf("failed to apply transition: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var current types.Status
		err := tx.QueryRow(ctx, "SELECT status FROM tickets WHERE id = $1", id).Scan(&current)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("ticket %s: %w", id, storeerr.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to verify ticket status: %w", err)
		}
		return fmt.Errorf("ticket %s is %s, expected %s: %w", id, current, expected, storeerr.ErrClaimConflict)
	}

	payload, _ := json.Marshal(map[string]any{
		"old_status": string(expected),
		"new_status": string(next),
		"reason":     reason,
	})
	_, err = tx.Exec(ctx, `
		INSERT INTO ticket_events (ticket_id, kind, actor, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, types.EventStatusChanged, actor, payload, now)
	if err != nil {
		return fmt.Errorf("failed to record status change event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ClaimTicket performs the conditional pending→in_progress transition.
func (s *PostgresStorage) ClaimTicket(ctx context.Context, id, actor string) (*types.Ticket, error) {
	err := s.ApplyTransition(ctx, id, types.StatusPending, types.StatusInProgress, "claimed", actor)
	if err != nil {
		return nil, err
	}
	return s.GetTicket(ctx, id)
}
