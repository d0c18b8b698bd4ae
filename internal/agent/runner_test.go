package agent

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/harnesslab/harness/internal/storage/sqlite"
	"github.com/harnesslab/harness/internal/types"
)

func newAgentStore(t *testing.T) *sqlite.SQLiteStorage {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedTicket(t *testing.T, store *sqlite.SQLiteStorage, objective string, p types.Priority) string {
	t.Helper()
	result, err := store.CreateTicket(context.Background(), &types.Ticket{
		Objective:  objective,
		Priority:   p,
		SourceKind: types.SourceHuman,
	}, "test")
	if err != nil {
		t.Fatalf("failed to seed ticket: %v", err)
	}
	return result.TicketID
}

func newTestRunner(t *testing.T, store *sqlite.SQLiteStorage, handler Handler) *Runner {
	t.Helper()
	runner, err := NewRunner(RunnerConfig{
		Store:   store,
		Handler: handler,
		Logger:  slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("NewRunner failed: %v", err)
	}
	return runner
}

func TestRunOnceCompletesTicket(t *testing.T) {
	ctx := context.Background()
	store := newAgentStore(t)
	id := seedTicket(t, store, "restart the flapping pod", types.PriorityHigh)

	var handled *types.Ticket
	handler := HandlerFunc(func(ctx context.Context, ticket *types.Ticket) (Outcome, error) {
		handled = ticket
		return Outcome{Status: types.StatusCompleted, Summary: "pod restarted, errors stopped", Turns: 3}, nil
	})
	runner := newTestRunner(t, store, handler)

	worked, err := runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if !worked {
		t.Fatal("expected a ticket to be worked")
	}
	if handled == nil || handled.ID != id {
		t.Fatalf("handler got %v, want %s", handled, id)
	}
	// The handler sees the ticket already claimed.
	if handled.Status != types.StatusInProgress {
		t.Errorf("handler saw status %s, want in_progress", handled.Status)
	}

	ticket, err := store.GetTicket(ctx, id)
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if ticket.Status != types.StatusCompleted {
		t.Errorf("final status = %s, want completed", ticket.Status)
	}
	if ticket.ResolvedAt == nil {
		t.Error("completed ticket not resolved")
	}
}

func TestRunOnceIdleWhenNoReadyWork(t *testing.T) {
	store := newAgentStore(t)
	handler := HandlerFunc(func(ctx context.Context, ticket *types.Ticket) (Outcome, error) {
		t.Error("handler called with no ready work")
		return Outcome{}, nil
	})
	runner := newTestRunner(t, store, handler)

	worked, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if worked {
		t.Error("RunOnce reported work with an empty store")
	}
}

func TestRunOncePicksHighestPriority(t *testing.T) {
	ctx := context.Background()
	store := newAgentStore(t)
	seedTicket(t, store, "tidy docs", types.PriorityLow)
	urgent := seedTicket(t, store, "prod is down", types.PriorityCritical)

	handler := HandlerFunc(func(ctx context.Context, ticket *types.Ticket) (Outcome, error) {
		if ticket.ID != urgent {
			t.Errorf("worked %s first, want %s", ticket.ID, urgent)
		}
		return Outcome{Status: types.StatusCompleted}, nil
	})
	runner := newTestRunner(t, store, handler)

	if _, err := runner.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
}

func TestRunOnceSkipsAlreadyClaimedTickets(t *testing.T) {
	ctx := context.Background()
	store := newAgentStore(t)
	contested := seedTicket(t, store, "contested", types.PriorityCritical)
	fallback := seedTicket(t, store, "fallback", types.PriorityLow)

	handler := HandlerFunc(func(ctx context.Context, ticket *types.Ticket) (Outcome, error) {
		return Outcome{Status: types.StatusCompleted}, nil
	})
	runner := newTestRunner(t, store, handler)

	// A rival grabs the best candidate between listing and claiming.
	if _, err := store.ClaimTicket(ctx, contested, "rival"); err != nil {
		t.Fatalf("rival claim failed: %v", err)
	}

	worked, err := runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if !worked {
		t.Fatal("runner gave up instead of moving to the next candidate")
	}

	ticket, err := store.GetTicket(ctx, fallback)
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if ticket.Status != types.StatusCompleted {
		t.Errorf("fallback status = %s, want completed", ticket.Status)
	}
}

func TestHandlerErrorFailsTicket(t *testing.T) {
	ctx := context.Background()
	store := newAgentStore(t)
	id := seedTicket(t, store, "doomed", types.PriorityMedium)

	handler := HandlerFunc(func(ctx context.Context, ticket *types.Ticket) (Outcome, error) {
		return Outcome{}, fmt.Errorf("model API unavailable")
	})
	runner := newTestRunner(t, store, handler)

	if _, err := runner.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	ticket, err := store.GetTicket(ctx, id)
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if ticket.Status != types.StatusFailed {
		t.Errorf("status = %s, want failed", ticket.Status)
	}
}

func TestUnusableOutcomeStatusFailsTicket(t *testing.T) {
	ctx := context.Background()
	store := newAgentStore(t)
	id := seedTicket(t, store, "confused", types.PriorityMedium)

	// A handler must not leave a ticket pending or in_progress.
	handler := HandlerFunc(func(ctx context.Context, ticket *types.Ticket) (Outcome, error) {
		return Outcome{Status: types.StatusPending}, nil
	})
	runner := newTestRunner(t, store, handler)

	if _, err := runner.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	ticket, err := store.GetTicket(ctx, id)
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if ticket.Status != types.StatusFailed {
		t.Errorf("status = %s, want failed", ticket.Status)
	}
}

func TestBlockedOutcomeIsRecorded(t *testing.T) {
	ctx := context.Background()
	store := newAgentStore(t)
	id := seedTicket(t, store, "needs human approval", types.PriorityMedium)

	handler := HandlerFunc(func(ctx context.Context, ticket *types.Ticket) (Outcome, error) {
		return Outcome{Status: types.StatusBlocked, Summary: "requires a config change only humans can approve"}, nil
	})
	runner := newTestRunner(t, store, handler)

	if _, err := runner.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	ticket, err := store.GetTicket(ctx, id)
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if ticket.Status != types.StatusBlocked {
		t.Errorf("status = %s, want blocked", ticket.Status)
	}
}
