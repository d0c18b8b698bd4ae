package monitor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/harnesslab/harness/internal/storage"
	"github.com/harnesslab/harness/internal/types"
)

// Runner drives the evaluation loop: on each tick it evaluates every
// enabled SLO and invariant and files tickets for violations. Duplicate
// filings are absorbed by the store's deduplication, so a violation that
// persists across ticks yields exactly one open ticket.
type Runner struct {
	store      storage.Storage
	slos       *SLOEvaluator
	invariants *InvariantEvaluator
	cron       *cron.Cron
	schedule   string
	logger     *slog.Logger
}

// Summary is the result of one evaluation cycle.
type Summary struct {
	SLOEvaluations       []SLOEvaluation
	InvariantEvaluations []InvariantEvaluation
	TicketsFiled         []string
	Errors               []string
}

// NewRunner wires the evaluators to the store. schedule is a cron
// expression or a shorthand like "@every 1m".
func NewRunner(store storage.Storage, metrics MetricSource, schedule string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:      store,
		slos:       NewSLOEvaluator(metrics, logger),
		invariants: NewInvariantEvaluator(metrics, logger),
		cron:       cron.New(),
		schedule:   schedule,
		logger:     logger,
	}
}

// Start runs the loop until the context is cancelled. The first evaluation
// happens immediately rather than waiting for the first tick.
func (r *Runner) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.schedule, func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error("evaluation cycle failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid monitor schedule %q: %w", r.schedule, err)
	}

	r.logger.Info("monitor started", "schedule", r.schedule)
	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Error("initial evaluation failed", "error", err)
	}

	r.cron.Start()
	<-ctx.Done()
	r.cron.Stop()
	r.logger.Info("monitor stopped")
	return ctx.Err()
}

// RunOnce performs a single evaluation cycle.
func (r *Runner) RunOnce(ctx context.Context) (*Summary, error) {
	summary := &Summary{}

	slos, err := r.store.ListSLOs(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load slos: %w", err)
	}
	for _, slo := range slos {
		eval := r.slos.Evaluate(ctx, slo)
		summary.SLOEvaluations = append(summary.SLOEvaluations, eval)
		if !eval.Violating {
			continue
		}
		r.logger.Warn("slo violation detected",
			"slo", eval.SLOName, "severity", eval.Severity, "burn_rate", eval.BurnRate)
		r.file(ctx, summary, r.slos.ViolationTicket(eval))
	}

	invariants, err := r.store.ListInvariants(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load invariants: %w", err)
	}
	for _, inv := range invariants {
		eval := r.invariants.Evaluate(ctx, inv)
		summary.InvariantEvaluations = append(summary.InvariantEvaluations, eval)
		if eval.Passing {
			continue
		}
		r.logger.Warn("invariant violation detected",
			"invariant", eval.InvariantName, "condition", eval.Condition)
		r.file(ctx, summary, r.invariants.ViolationTicket(eval))
	}

	return summary, nil
}

func (r *Runner) file(ctx context.Context, summary *Summary, ticket *types.Ticket) {
	result, err := r.store.CreateTicket(ctx, ticket, "monitor")
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		r.logger.Error("failed to file violation ticket",
			"source_kind", ticket.SourceKind, "source_id", ticket.SourceID, "error", err)
		return
	}
	if result.Deduplicated {
		r.logger.Debug("violation already has an open ticket",
			"ticket", result.TicketID, "source_id", ticket.SourceID)
		return
	}
	summary.TicketsFiled = append(summary.TicketsFiled, result.TicketID)
	r.logger.Info("violation ticket filed",
		"ticket", result.TicketID, "source_kind", ticket.SourceKind, "source_id", ticket.SourceID)
}
