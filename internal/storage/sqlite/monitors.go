package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/harnesslab/harness/internal/storage/storeerr"
	"github.com/harnesslab/harness/internal/types"
)

// CreateSLO registers a service level objective.
func (s *SQLiteStorage) CreateSLO(ctx context.Context, slo *types.SLO) error {
	if slo.WindowDays == 0 {
		slo.WindowDays = 30
	}
	if slo.FastBurn == 0 {
		slo.FastBurn = 14.4
	}
	if slo.SlowBurn == 0 {
		slo.SlowBurn = 6.0
	}
	if err := slo.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	slo.CreatedAt = now
	slo.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO slos (name, description, target, window_days, metric_query,
			fast_burn, slow_burn, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, slo.Name, slo.Description, slo.Target, slo.WindowDays, slo.MetricQuery,
		slo.FastBurn, slo.SlowBurn, slo.Enabled, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert slo: %w", err)
	}
	slo.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get slo id: %w", err)
	}
	return nil
}

// GetSLO retrieves an SLO by name.
func (s *SQLiteStorage) GetSLO(ctx context.Context, name string) (*types.SLO, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, target, window_days, metric_query,
		       fast_burn, slow_burn, enabled, created_at, updated_at
		FROM slos WHERE name = ?
	`, name)

	var slo types.SLO
	err := row.Scan(&slo.ID, &slo.Name, &slo.Description, &slo.Target,
		&slo.WindowDays, &slo.MetricQuery, &slo.FastBurn, &slo.SlowBurn,
		&slo.Enabled, &slo.CreatedAt, &slo.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("slo %s: %w", name, storeerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slo: %w", err)
	}
	return &slo, nil
}

// ListSLOs returns all SLOs, optionally only enabled ones.
func (s *SQLiteStorage) ListSLOs(ctx context.Context, enabledOnly bool) ([]*types.SLO, error) {
	query := `
		SELECT id, name, description, target, window_days, metric_query,
		       fast_burn, slow_burn, enabled, created_at, updated_at
		FROM slos`
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list slos: %w", err)
	}
	defer rows.Close()

	var slos []*types.SLO
	for rows.Next() {
		var slo types.SLO
		err := rows.Scan(&slo.ID, &slo.Name, &slo.Description, &slo.Target,
			&slo.WindowDays, &slo.MetricQuery, &slo.FastBurn, &slo.SlowBurn,
			&slo.Enabled, &slo.CreatedAt, &slo.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slo: %w", err)
		}
		slos = append(slos, &slo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating slos: %w", err)
	}
	return slos, nil
}

// SetSLOEnabled toggles an SLO.
func (s *SQLiteStorage) SetSLOEnabled(ctx context.Context, name string, enabled bool) error {
	return s.setEnabled(ctx, "slos", name, enabled)
}

// CreateInvariant registers an invariant.
func (s *SQLiteStorage) CreateInvariant(ctx context.Context, inv *types.Invariant) error {
	if err := inv.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO invariants (name, description, query, condition, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, inv.Name, inv.Description, inv.Query, inv.Condition, inv.Enabled, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert invariant: %w", err)
	}
	inv.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get invariant id: %w", err)
	}
	return nil
}

// GetInvariant retrieves an invariant by name.
func (s *SQLiteStorage) GetInvariant(ctx context.Context, name string) (*types.Invariant, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, query, condition, enabled, created_at, updated_at
		FROM invariants WHERE name = ?
	`, name)

	var inv types.Invariant
	err := row.Scan(&inv.ID, &inv.Name, &inv.Description, &inv.Query,
		&inv.Condition, &inv.Enabled, &inv.CreatedAt, &inv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("invariant %s: %w", name, storeerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invariant: %w", err)
	}
	return &inv, nil
}

// ListInvariants returns all invariants, optionally only enabled ones.
func (s *SQLiteStorage) ListInvariants(ctx context.Context, enabledOnly bool) ([]*types.Invariant, error) {
	query := `
		SELECT id, name, description, query, condition, enabled, created_at, updated_at
		FROM invariants`
	if enabledOnly {
		query += " WHERE enabled = 1"
	}
	query += " ORDER BY name ASC"

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list invariants: %w", err)
	}
	defer rows.Close()

	var invs []*types.Invariant
	for rows.Next() {
		var inv types.Invariant
		err := rows.Scan(&inv.ID, &inv.Name, &inv.Description, &inv.Query,
			&inv.Condition, &inv.Enabled, &inv.CreatedAt, &inv.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invariant: %w", err)
		}
		invs = append(invs, &inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invariants: %w", err)
	}
	return invs, nil
}

// SetInvariantEnabled toggles an invariant.
func (s *SQLiteStorage) SetInvariantEnabled(ctx context.Context, name string, enabled bool) error {
	return s.setEnabled(ctx, "invariants", name, enabled)
}

func (s *SQLiteStorage) setEnabled(ctx context.Context, table, name string, enabled bool) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET enabled = ?, updated_at = ? WHERE name = ?", table),
		enabled, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), name, storeerr.ErrNotFound)
	}
	return nil
}
