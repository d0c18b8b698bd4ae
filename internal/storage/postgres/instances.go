package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/harnesslab/harness/internal/storage/storeerr"
	"github.com/harnesslab/harness/internal/types"
)

// RegisterInstance records a running agent process. Re-registering an
// existing instance id refreshes its heartbeat.
func (s *PostgresStorage) RegisterInstance(ctx context.Context, instance *types.AgentInstance) error {
	if err := instance.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	if instance.StartedAt.IsZero() {
		instance.StartedAt = now
	}
	instance.LastHeartbeat = now

	_, err := s.pool.Exec(ctx, `
		INSERT INTO agent_instances (instance_id, hostname, pid, started_at, last_heartbeat, version)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (instance_id) DO UPDATE SET last_heartbeat = EXCLUDED.last_heartbeat
	`, instance.InstanceID, instance.Hostname, instance.PID,
		instance.StartedAt, instance.LastHeartbeat, instance.Version)
	if err != nil {
		return fmt.Errorf("failed to register instance: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes an instance's liveness timestamp.
func (s *PostgresStorage) UpdateHeartbeat(ctx context.Context, instanceID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agent_instances SET last_heartbeat = $1 WHERE instance_id = $2
	`, time.Now().UTC(), instanceID)
	if err != nil {
		return fmt.Errorf("failed to update heartbeat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("instance %s: %w", instanceID, storeerr.ErrNotFound)
	}
	return nil
}

// GetActiveInstances returns all registered instances, most recent
// heartbeat first. Staleness policy belongs to the caller.
func (s *PostgresStorage) GetActiveInstances(ctx context.Context) ([]*types.AgentInstance, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT instance_id, hostname, pid, started_at, last_heartbeat, version
		FROM agent_instances
		ORDER BY last_heartbeat DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	var instances []*types.AgentInstance
	for rows.Next() {
		var inst types.AgentInstance
		err := rows.Scan(&inst.InstanceID, &inst.Hostname, &inst.PID,
			&inst.StartedAt, &inst.LastHeartbeat, &inst.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instance: %w", err)
		}
		instances = append(instances, &inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instances: %w", err)
	}
	return instances, nil
}
