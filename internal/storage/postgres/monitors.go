package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/harnesslab/harness/internal/storage/storeerr"
	"github.com/harnesslab/harness/internal/types"
)

// CreateSLO registers a service level objective.
func (s *PostgresStorage) CreateSLO(ctx context.Context, slo *types.SLO) error {
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

	err := s.pool.QueryRow(ctx, `
		INSERT INTO slos (name, description, target, window_days, metric_query,
			fast_burn, slow_burn, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, slo.Name, slo.Description, slo.Target, slo.WindowDays, slo.MetricQuery,
		slo.FastBurn, slo.SlowBurn, slo.Enabled, now, now).Scan(&slo.ID)
	if err != nil {
		return fmt.Errorf("failed to insert slo: %w", err)
	}
	return nil
}

// GetSLO retrieves an SLO by name.
func (s *PostgresStorage) GetSLO(ctx context.Context, name string) (*types.SLO, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, description, target, window_days, metric_query,
		       fast_burn, slow_burn, enabled, created_at, updated_at
		FROM slos WHERE name = $1
	`, name)

	var slo types.SLO
	err := row.Scan(&slo.ID, &slo.Name, &slo.Description, &slo.Target,
		&slo.WindowDays, &slo.MetricQuery, &slo.FastBurn, &slo.SlowBurn,
		&slo.Enabled, &slo.CreatedAt, &slo.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("slo %s: %w", name, storeerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slo: %w", err)
	}
	return &slo, nil
}

// ListSLOs returns all SLOs, optionally only enabled ones.
func (s *PostgresStorage) ListSLOs(ctx context.Context, enabledOnly bool) ([]*types.SLO, error) {
	query := `
		SELECT id, name, description, target, window_days, metric_query,
		       fast_burn, slow_burn, enabled, created_at, updated_at
		FROM slos`
	if enabledOnly {
		query += " WHERE enabled"
	}
	query += " ORDER BY name ASC"

	rows, err := s.pool.Query(ctx, query)
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
func (s *PostgresStorage) SetSLOEnabled(ctx context.Context, name string, enabled bool) error {
	return s.setEnabled(ctx, "slos", name, enabled)
}

// CreateInvariant registers an invariant.
func (s *PostgresStorage) CreateInvariant(ctx context.Context, inv *types.Invariant) error {
	if err := inv.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	err := s.pool.QueryRow(ctx, `
		INSERT INTO invariants (name, description, query, condition, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, inv.Name, inv.Description, inv.Query, inv.Condition, inv.Enabled, now, now).Scan(&inv.ID)
	if err != nil {
		return fmt.Errorf("failed to insert invariant: %w", err)
	}
	return nil
}

// GetInvariant retrieves an invariant by name.
func (s *PostgresStorage) GetInvariant(ctx context.Context, name string) (*types.Invariant, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, description, query, condition, enabled, created_at, updated_at
		FROM invariants WHERE name = $1
	`, name)

	var inv types.Invariant
	err := row.Scan(&inv.ID, &inv.Name, &inv.Description, &inv.Query,
		&inv.Condition, &inv.Enabled, &inv.CreatedAt, &inv.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("invariant %s: %w", name, storeerr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invariant: %w", err)
	}
	return &inv, nil
}

// ListInvariants returns all invariants, optionally only enabled ones.
func (s *PostgresStorage) ListInvariants(ctx context.Context, enabledOnly bool) ([]*types.Invariant, error) {
	query := `
		SELECT id, name, description, query, condition, enabled, created_at, updated_at
		FROM invariants`
	if enabledOnly {
		query += " WHERE enabled"
	}
	query += " ORDER BY name ASC"

	rows, err := s.pool.Query(ctx, query)
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
func (s *PostgresStorage) SetInvariantEnabled(ctx context.Context, name string, enabled bool) error {
	return s.setEnabled(ctx, "invariants", name, enabled)
}

func (s *PostgresStorage) setEnabled(ctx context.Context, table, name string, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET enabled = $1, updated_at = $2 WHERE name = $3", table),
		enabled, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), name, storeerr.ErrNotFound)
	}
	return nil
}
