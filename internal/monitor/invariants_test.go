package monitor

import (
	"context"
	"fmt"
	"testing"

	"github.com/harnesslab/harness/internal/types"
)

func testInvariant() *types.Invariant {
	return &types.Invariant{
		Name:      "capacity-headroom",
		Query:     "min(capacity_headroom_percent)",
		Condition: "> 20",
		Enabled:   true,
	}
}

func TestInvariantEvaluatePassing(t *testing.T) {
	inv := testInvariant()
	metrics := &fakeMetrics{values: map[string]float64{inv.Query: 45}}

	eval := NewInvariantEvaluator(metrics, quietLogger()).Evaluate(context.Background(), inv)
	if !eval.Passing {
		t.Errorf("expected pass at 45 > 20: %+v", eval)
	}
	if eval.CurrentValue == nil || *eval.CurrentValue != 45 {
		t.Errorf("current value = %v", eval.CurrentValue)
	}
}

func TestInvariantEvaluateFailing(t *testing.T) {
	inv := testInvariant()
	metrics := &fakeMetrics{values: map[string]float64{inv.Query: 12}}

	evaluator := NewInvariantEvaluator(metrics, quietLogger())
	eval := evaluator.Evaluate(context.Background(), inv)
	if eval.Passing {
		t.Fatalf("expected failure at 12 > 20: %+v", eval)
	}

	ticket := evaluator.ViolationTicket(eval)
	if ticket.Priority != types.PriorityHigh {
		t.Errorf("priority = %v, want high", ticket.Priority)
	}
	if ticket.SourceKind != types.SourceInvariantViolation || ticket.SourceID != inv.Name {
		t.Errorf("ticket source = %s/%s", ticket.SourceKind, ticket.SourceID)
	}
	if ticket.Context["current_value"] != 12.0 {
		t.Errorf("context = %v", ticket.Context)
	}
}

func TestInvariantEvaluateSoftFailures(t *testing.T) {
	evaluator := NewInvariantEvaluator(&fakeMetrics{err: fmt.Errorf("loki is down")}, quietLogger())

	// Query errors count as passing.
	eval := evaluator.Evaluate(context.Background(), testInvariant())
	if !eval.Passing || eval.Err == "" {
		t.Errorf("query error should pass with err recorded: %+v", eval)
	}

	// No data counts as passing.
	evaluator = NewInvariantEvaluator(&fakeMetrics{values: map[string]float64{}}, quietLogger())
	eval = evaluator.Evaluate(context.Background(), testInvariant())
	if !eval.Passing || eval.Err == "" {
		t.Errorf("missing data should pass with err recorded: %+v", eval)
	}

	// An unparseable condition never fires; it is reported instead.
	inv := testInvariant()
	inv.Condition = "roughly 20"
	evaluator = NewInvariantEvaluator(&fakeMetrics{values: map[string]float64{inv.Query: 12}}, quietLogger())
	eval = evaluator.Evaluate(context.Background(), inv)
	if !eval.Passing || eval.Err == "" {
		t.Errorf("bad condition should pass with err recorded: %+v", eval)
	}
}
