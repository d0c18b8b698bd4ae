package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harnesslab/harness/internal/storage/storeerr"
	"github.com/harnesslab/harness/internal/types"
)

// ApplyTransition is the engine's only status mutation primitive: a
// conditional write that commits iff the stored status still equals
// expected. Concurrent attempts on one ticket are linearized by the
// UPDATE's WHERE clause — exactly one wins, the rest observe
// ErrClaimConflict.
func (s *SQLiteStorage) ApplyTransition(ctx context.Context, id string, expected, next types.Status, reason, actor string) error {
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

	conn, cleanup, commit, err := s.beginImmediate(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	// resolved_at is set exactly once, on the first entry into a terminal
	// state. A claim stamps claimed_by; leaving in_progress clears it.
	var res sql.Result
	switch {
	case next.IsTerminal():
		res, err = conn.ExecContext(ctx, `
			UPDATE tickets
			SET status = ?, updated_at = ?, claimed_by = '',
			    resolved_at = COALESCE(resolved_at, ?)
			WHERE id = ? AND status = ?
		`, next, now, now, id, expected)
	case next == types.StatusInProgress:
		res, err = conn.ExecContext(ctx, `
			UPDATE tickets
			SET status = ?, updated_at = ?, claimed_by = ?
			WHERE id = ? AND status = ?
		`, next, now, actor, id, expected)
	default:
		res, err = conn.ExecContext(ctx, `
			UPDATE tickets
			SET status = ?, updated_at = ?, claimed_by = ''
			WHERE id = ? AND status = ?
		`, next, now, id, expected)
	}
	if err != nil {
		return fmt.Errorf("failed to apply transition: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Either the ticket does not exist or its status moved under us.
		var current types.Status
		err := conn.QueryRowContext(ctx, "SELECT status FROM tickets WHERE id = ?", id).Scan(&current)
		if err == sql.ErrNoRows {
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
	_, err = conn.ExecContext(ctx, `
		INSERT INTO ticket_events (ticket_id, kind, actor, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, types.EventStatusChanged, actor, string(payload), now)
	if err != nil {
		return fmt.Errorf("failed to record status change event: %w", err)
	}

	return commit()
}

// ClaimTicket performs the conditional pending→in_progress transition that
// grants exclusive ownership to one worker. Losers of a concurrent race
// get ErrClaimConflict and should move on to the next ready candidate.
func (s *SQLiteStorage) ClaimTicket(ctx context.Context, id, actor string) (*types.Ticket, error) {
	err := s.ApplyTransition(ctx, id, types.StatusPending, types.StatusInProgress, "claimed", actor)
	if err != nil {
		return nil, err
	}
	return s.GetTicket(ctx, id)
}
