package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/harnesslab/harness/internal/types"
)

// fakeMetrics serves canned values keyed by the exact query string.
type fakeMetrics struct {
	values map[string]float64
	err    error
}

func (f *fakeMetrics) MetricValue(ctx context.Context, promql string) (float64, bool, error) {
	if f.err != nil {
		return 0, false, f.err
	}
	v, ok := f.values[promql]
	return v, ok, nil
}

func testSLO() *types.SLO {
	return &types.SLO{
		Name:        "api-availability",
		Target:      0.999,
		WindowDays:  30,
		MetricQuery: "slo:availability:ratio",
		FastBurn:    14.4,
		SlowBurn:    6.0,
		Enabled:     true,
	}
}

func fastQuery(q string) string { return fmt.Sprintf("avg_over_time((%s)[60m:])", q) }
func slowQuery(q string) string { return fmt.Sprintf("avg_over_time((%s)[360m:])", q) }

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestSLOEvaluateHealthy(t *testing.T) {
	slo := testSLO()
	metrics := &fakeMetrics{values: map[string]float64{
		slo.MetricQuery:            0.99999,
		fastQuery(slo.MetricQuery): 0.99999,
		slowQuery(slo.MetricQuery): 0.99999,
	}}

	eval := NewSLOEvaluator(metrics, quietLogger()).Evaluate(context.Background(), slo)
	if eval.Violating {
		t.Errorf("healthy slo flagged as violating: %+v", eval)
	}
	if eval.CurrentValue == nil || *eval.CurrentValue != 0.99999 {
		t.Errorf("current value = %v", eval.CurrentValue)
	}
	if eval.BudgetRemaining == nil || *eval.BudgetRemaining <= 0 {
		t.Errorf("budget remaining = %v", eval.BudgetRemaining)
	}
}

func TestSLOEvaluateFastBurn(t *testing.T) {
	// A 0.1% error rate over the last hour burns a 30d/99.9% budget at
	// 720x sustainable, far past the 14.4x page threshold.
	slo := testSLO()
	metrics := &fakeMetrics{values: map[string]float64{
		slo.MetricQuery:            0.999,
		fastQuery(slo.MetricQuery): 0.999,
		slowQuery(slo.MetricQuery): 0.999,
	}}

	eval := NewSLOEvaluator(metrics, quietLogger()).Evaluate(context.Background(), slo)
	if !eval.Violating {
		t.Fatalf("expected violation: %+v", eval)
	}
	if eval.Severity != "fast" {
		t.Errorf("severity = %q, want fast", eval.Severity)
	}
	if eval.BurnRate < slo.FastBurn {
		t.Errorf("burn rate = %v, want >= %v", eval.BurnRate, slo.FastBurn)
	}

	ticket := NewSLOEvaluator(metrics, quietLogger()).ViolationTicket(eval)
	if ticket.Priority != types.PriorityCritical {
		t.Errorf("fast burn ticket priority = %v, want critical", ticket.Priority)
	}
	if ticket.SourceKind != types.SourceSLOViolation || ticket.SourceID != slo.Name {
		t.Errorf("ticket source = %s/%s", ticket.SourceKind, ticket.SourceID)
	}
}

func TestSLOEvaluateSlowBurnOnly(t *testing.T) {
	// Fast window recovered; the six-hour window still burns over 6x.
	slo := testSLO()
	metrics := &fakeMetrics{values: map[string]float64{
		slo.MetricQuery:            0.9999,
		fastQuery(slo.MetricQuery): 0.99999, // 7.2x, under 14.4
		slowQuery(slo.MetricQuery): 0.99994, // 7.2x, over 6.0
	}}

	eval := NewSLOEvaluator(metrics, quietLogger()).Evaluate(context.Background(), slo)
	if !eval.Violating {
		t.Fatalf("expected slow-burn violation: %+v", eval)
	}
	if eval.Severity != "slow" {
		t.Errorf("severity = %q, want slow", eval.Severity)
	}

	ticket := NewSLOEvaluator(metrics, quietLogger()).ViolationTicket(eval)
	if ticket.Priority != types.PriorityHigh {
		t.Errorf("slow burn ticket priority = %v, want high", ticket.Priority)
	}
}

func TestSLOEvaluateQueryErrorIsNotAViolation(t *testing.T) {
	slo := testSLO()
	metrics := &fakeMetrics{err: fmt.Errorf("prometheus unreachable")}

	eval := NewSLOEvaluator(metrics, quietLogger()).Evaluate(context.Background(), slo)
	if eval.Violating {
		t.Error("query failure must not count as a violation")
	}
	if eval.Err == "" {
		t.Error("expected the error to be reported")
	}
}

func TestSLOEvaluateNoDataIsNotAViolation(t *testing.T) {
	slo := testSLO()
	metrics := &fakeMetrics{values: map[string]float64{}}

	eval := NewSLOEvaluator(metrics, quietLogger()).Evaluate(context.Background(), slo)
	if eval.Violating {
		t.Error("missing data must not count as a violation")
	}
	if eval.Err == "" {
		t.Error("expected a no-data note")
	}
}
