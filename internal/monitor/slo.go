package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/harnesslab/harness/internal/types"
)

// MetricSource is the query surface the evaluators need. The grafana
// Prometheus client satisfies it.
type MetricSource interface {
	MetricValue(ctx context.Context, promql string) (float64, bool, error)
}

// Burn windows follow the Google SRE multiwindow alerting defaults: a
// fast burn observed over 1 hour pages, a slow burn over 6 hours files
// high-priority work.
const (
	fastBurnWindow = 60 * time.Minute
	slowBurnWindow = 360 * time.Minute
)

// SLOEvaluation is the outcome of one SLO check.
type SLOEvaluation struct {
	SLOName         string
	Target          float64
	CurrentValue    *float64
	BudgetRemaining *float64
	BurnRate        float64
	Severity        string
	Violating       bool
	EvaluatedAt     time.Time
	Err             string
}

// SLOEvaluator computes burn rates for SLOs from live metrics.
type SLOEvaluator struct {
	metrics MetricSource
	logger  *slog.Logger
}

func NewSLOEvaluator(metrics MetricSource, logger *slog.Logger) *SLOEvaluator {
	return &SLOEvaluator{metrics: metrics, logger: logger}
}

// Evaluate checks one SLO. Query failures and missing data never produce a
// violation; they are reported in Err and the SLO is treated as healthy.
func (e *SLOEvaluator) Evaluate(ctx context.Context, slo *types.SLO) SLOEvaluation {
	eval := SLOEvaluation{
		SLOName:     slo.Name,
		Target:      slo.Target,
		EvaluatedAt: time.Now().UTC(),
	}

	current, ok, err := e.metrics.MetricValue(ctx, slo.MetricQuery)
	if err != nil {
		eval.Err = err.Error()
		e.logger.Warn("slo query failed", "slo", slo.Name, "error", err)
		return eval
	}
	if !ok {
		eval.Err = "no data returned from prometheus"
		return eval
	}
	eval.CurrentValue = &current

	// The error budget is everything the target leaves on the table. A
	// 99.9% target gives a 0.1% budget; consumption is the observed error
	// rate measured against it.
	budget := 1 - slo.Target
	if budget > 0 {
		errorRate := 1 - current
		remaining := max(0, (1-errorRate/budget)*100)
		eval.BudgetRemaining = &remaining
	}

	type window struct {
		severity  string
		duration  time.Duration
		threshold float64
	}
	windows := []window{
		{"fast", fastBurnWindow, slo.FastBurn},
		{"slow", slowBurnWindow, slo.SlowBurn},
	}

	for _, w := range windows {
		burn, ok, err := e.burnRate(ctx, slo, budget, w.duration)
		if err != nil {
			e.logger.Warn("burn rate query failed",
				"slo", slo.Name, "window", w.duration, "error", err)
			continue
		}
		if !ok {
			continue
		}
		if burn > eval.BurnRate {
			eval.BurnRate = burn
		}
		// Windows are ordered most severe first, so the first hit wins.
		if burn >= w.threshold && !eval.Violating {
			eval.Violating = true
			eval.Severity = w.severity
		}
	}

	return eval
}

// burnRate measures budget consumption speed over the window. A burn rate
// of 1 exhausts the budget in exactly the SLO window; 14.4 exhausts a
// 30-day budget in about two days.
func (e *SLOEvaluator) burnRate(ctx context.Context, slo *types.SLO, budget float64, window time.Duration) (float64, bool, error) {
	if budget <= 0 {
		return 0, false, nil
	}

	minutes := int(window.Minutes())
	rangeQuery := fmt.Sprintf("avg_over_time((%s)[%dm:])", slo.MetricQuery, minutes)
	value, ok, err := e.metrics.MetricValue(ctx, rangeQuery)
	if err != nil || !ok {
		return 0, false, err
	}

	windowErrorRate := 1 - value
	sustainable := budget * (window.Minutes() / (float64(slo.WindowDays) * 24 * 60))
	if sustainable <= 0 {
		return 0, false, nil
	}
	return windowErrorRate / sustainable, true, nil
}

// ViolationTicket builds the ticket a violating evaluation should file.
// Deduplication against an already-open ticket for the same SLO happens in
// the store, keyed by (slo_violation, name).
func (e *SLOEvaluator) ViolationTicket(eval SLOEvaluation) *types.Ticket {
	priority := types.PriorityHigh
	if eval.Severity == "fast" {
		priority = types.PriorityCritical
	}

	ticketCtx := map[string]any{
		"slo_name":           eval.SLOName,
		"target":             eval.Target,
		"burn_rate":          eval.BurnRate,
		"violation_severity": eval.Severity,
		"detected_at":        eval.EvaluatedAt.Format(time.RFC3339),
	}
	if eval.CurrentValue != nil {
		ticketCtx["current_value"] = *eval.CurrentValue
	}
	if eval.BudgetRemaining != nil {
		ticketCtx["error_budget_remaining"] = *eval.BudgetRemaining
	}

	return &types.Ticket{
		Objective:       fmt.Sprintf("Investigate SLO violation: %s", eval.SLOName),
		SuccessCriteria: fmt.Sprintf("SLO %s burn rate returns below threshold and error budget is recovering", eval.SLOName),
		Context:         ticketCtx,
		Priority:        priority,
		SourceKind:      types.SourceSLOViolation,
		SourceID:        eval.SLOName,
	}
}
