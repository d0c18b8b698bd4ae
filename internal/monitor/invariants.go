package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harnesslab/harness/internal/types"
)

// InvariantEvaluation is the outcome of one invariant check.
type InvariantEvaluation struct {
	InvariantName string
	Query         string
	Condition     string
	CurrentValue  *float64
	Threshold     float64
	Passing       bool
	EvaluatedAt   time.Time
	Err           string
}

// InvariantEvaluator checks binary pass/fail conditions against metrics.
// Examples: capacity headroom > 20, error count == 0.
type InvariantEvaluator struct {
	metrics MetricSource
	logger  *slog.Logger
}

func NewInvariantEvaluator(metrics MetricSource, logger *slog.Logger) *InvariantEvaluator {
	return &InvariantEvaluator{metrics: metrics, logger: logger}
}

// Evaluate checks one invariant. Missing data, query failures, and
// unparseable conditions all count as passing; an invariant only fails on a
// real measurement that breaks its condition.
func (e *InvariantEvaluator) Evaluate(ctx context.Context, inv *types.Invariant) InvariantEvaluation {
	eval := InvariantEvaluation{
		InvariantName: inv.Name,
		Query:         inv.Query,
		Condition:     inv.Condition,
		Passing:       true,
		EvaluatedAt:   time.Now().UTC(),
	}

	cond, err := ParseCondition(inv.Condition)
	if err != nil {
		eval.Err = err.Error()
		e.logger.Error("invalid invariant condition", "invariant", inv.Name, "error", err)
		return eval
	}
	eval.Threshold = cond.Threshold

	current, ok, err := e.metrics.MetricValue(ctx, inv.Query)
	if err != nil {
		eval.Err = err.Error()
		e.logger.Warn("invariant query failed", "invariant", inv.Name, "error", err)
		return eval
	}
	if !ok {
		eval.Err = "no data returned from prometheus"
		return eval
	}

	eval.CurrentValue = &current
	eval.Passing = cond.Holds(current)
	return eval
}

// ViolationTicket builds the ticket a failing evaluation should file.
func (e *InvariantEvaluator) ViolationTicket(eval InvariantEvaluation) *types.Ticket {
	ticketCtx := map[string]any{
		"invariant_name":  eval.InvariantName,
		"query":           eval.Query,
		"condition":       eval.Condition,
		"threshold_value": eval.Threshold,
		"detected_at":     eval.EvaluatedAt.Format(time.RFC3339),
	}
	if eval.CurrentValue != nil {
		ticketCtx["current_value"] = *eval.CurrentValue
	}

	return &types.Ticket{
		Objective:       fmt.Sprintf("Fix invariant violation: %s", eval.InvariantName),
		SuccessCriteria: fmt.Sprintf("Invariant %s condition (%s) is satisfied", eval.InvariantName, eval.Condition),
		Context:         ticketCtx,
		Priority:        types.PriorityHigh,
		SourceKind:      types.SourceInvariantViolation,
		SourceID:        eval.InvariantName,
	}
}
