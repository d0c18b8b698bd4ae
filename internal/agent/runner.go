package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/harnesslab/harness/internal/storage"
	"github.com/harnesslab/harness/internal/types"
)

// Version is stamped at build time.
var Version = "dev"

// Runner is the polling worker. It registers itself as an agent instance,
// heartbeats while alive, and repeatedly claims the highest-priority ready
// ticket. Losing a claim race is routine when several runners share a
// store; the loser just moves to the next candidate.
type Runner struct {
	store             storage.Storage
	handler           Handler
	instanceID        string
	pollInterval      time.Duration
	heartbeatInterval time.Duration
	logger            *slog.Logger
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	Store             storage.Storage
	Handler           Handler
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	Logger            *slog.Logger
}

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{
		store:             cfg.Store,
		handler:           cfg.Handler,
		instanceID:        uuid.New().String(),
		pollInterval:      cfg.PollInterval,
		heartbeatInterval: cfg.HeartbeatInterval,
		logger:            cfg.Logger,
	}, nil
}

// InstanceID returns this runner's registered identity.
func (r *Runner) InstanceID() string {
	return r.instanceID
}

// Start runs the poll loop until the context is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	hostname, _ := os.Hostname()
	if err := r.store.RegisterInstance(ctx, &types.AgentInstance{
		InstanceID: r.instanceID,
		Hostname:   hostname,
		PID:        os.Getpid(),
		Version:    Version,
	}); err != nil {
		return fmt.Errorf("failed to register instance: %w", err)
	}
	r.logger.Info("agent started",
		"instance", r.instanceID, "host", hostname, "poll_interval", r.pollInterval)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.heartbeatLoop(ctx) })
	g.Go(func() error { return r.pollLoop(ctx) })
	return g.Wait()
}

func (r *Runner) heartbeatLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.store.UpdateHeartbeat(ctx, r.instanceID); err != nil {
				r.logger.Warn("heartbeat failed", "error", err)
			}
		}
	}
}

func (r *Runner) pollLoop(ctx context.Context) error {
	for {
		worked, err := r.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("poll cycle failed", "error", err)
		}

		// Drain ready work back to back; only sleep when idle.
		if worked {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.pollInterval):
		}
	}
}

// RunOnce claims and works at most one ticket. It reports whether any
// ticket was worked.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	ready, err := r.store.GetReadyTickets(ctx, 10)
	if err != nil {
		return false, fmt.Errorf("failed to list ready tickets: %w", err)
	}

	for _, candidate := range ready {
		ticket, err := r.store.ClaimTicket(ctx, candidate.ID, r.instanceID)
		if errors.Is(err, storage.ErrClaimConflict) || errors.Is(err, storage.ErrNotFound) {
			// Another runner got there first.
			continue
		}
		if err != nil {
			return false, fmt.Errorf("failed to claim ticket %s: %w", candidate.ID, err)
		}

		r.work(ctx, ticket)
		return true, nil
	}
	return false, nil
}

func (r *Runner) work(ctx context.Context, ticket *types.Ticket) {
	r.logger.Info("working ticket",
		"ticket", ticket.ID, "objective", ticket.Objective, "priority", ticket.Priority)

	outcome, err := r.handler.Handle(ctx, ticket)
	if err != nil {
		r.logger.Error("handler failed", "ticket", ticket.ID, "error", err)
		r.transition(ctx, ticket.ID, types.StatusFailed, fmt.Sprintf("handler error: %v", err))
		return
	}

	status := outcome.Status
	if status != types.StatusCompleted && status != types.StatusFailed && status != types.StatusBlocked {
		r.logger.Warn("handler returned unusable status, failing ticket",
			"ticket", ticket.ID, "status", status)
		status = types.StatusFailed
	}

	reason := outcome.Summary
	if reason == "" {
		reason = "agent finished"
	}
	r.transition(ctx, ticket.ID, status, reason)
	r.logger.Info("finished ticket",
		"ticket", ticket.ID, "status", status, "turns", outcome.Turns)
}

func (r *Runner) transition(ctx context.Context, ticketID string, next types.Status, reason string) {
	err := r.store.ApplyTransition(ctx, ticketID, types.StatusInProgress, next, reason, r.instanceID)
	if err != nil {
		r.logger.Error("failed to record outcome",
			"ticket", ticketID, "status", next, "error", err)
	}
}
