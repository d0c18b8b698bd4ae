package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/harnesslab/harness/internal/storage/storeerr"
	"github.com/harnesslab/harness/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func createTestTicket(t *testing.T, store *SQLiteStorage, objective string) string {
	t.Helper()
	result, err := store.CreateTicket(context.Background(), &types.Ticket{
		Objective:  objective,
		Priority:   types.PriorityMedium,
		SourceKind: types.SourceHuman,
	}, "test")
	if err != nil {
		t.Fatalf("failed to create ticket: %v", err)
	}
	if result.Deduplicated {
		t.Fatalf("unexpected dedup for %q", objective)
	}
	return result.TicketID
}

func TestCreateAndGetTicket(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	result, err := store.CreateTicket(ctx, &types.Ticket{
		Objective:       "investigate latency regression",
		SuccessCriteria: "p99 back under 200ms",
		Priority:        types.PriorityHigh,
		SourceKind:      types.SourceHuman,
		Context:         map[string]any{"region": "us-east-1"},
	}, "alice")
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	if result.TicketID == "" {
		t.Fatal("expected a ticket id")
	}

	ticket, err := store.GetTicket(ctx, result.TicketID)
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if ticket.Objective != "investigate latency regression" {
		t.Errorf("objective = %q", ticket.Objective)
	}
	if ticket.Status != types.StatusPending {
		t.Errorf("new ticket status = %s, want pending", ticket.Status)
	}
	if ticket.Priority != types.PriorityHigh {
		t.Errorf("priority = %v", ticket.Priority)
	}
	if ticket.ResolvedAt != nil {
		t.Error("new ticket should not be resolved")
	}
	if ticket.Context["region"] != "us-east-1" {
		t.Errorf("context not preserved: %v", ticket.Context)
	}

	// The creation event is recorded.
	events, err := store.ListEvents(ctx, result.TicketID)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Kind != types.EventCreated {
		t.Errorf("expected a single created event, got %v", events)
	}
	if events[0].Actor != "alice" {
		t.Errorf("event actor = %q, want alice", events[0].Actor)
	}
}

func TestGetTicketNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetTicket(context.Background(), "tk-999")
	if !errors.Is(err, storeerr.ErrNotFound) {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestTicketIDsAreSequential(t *testing.T) {
	store := newTestStore(t)
	first := createTestTicket(t, store, "first")
	second := createTestTicket(t, store, "second")
	if first != "tk-1" || second != "tk-2" {
		t.Errorf("expected tk-1, tk-2; got %s, %s", first, second)
	}
}

func TestCreateTicketRejectsNonPending(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateTicket(context.Background(), &types.Ticket{
		Objective:  "already running",
		Status:     types.StatusInProgress,
		Priority:   types.PriorityMedium,
		SourceKind: types.SourceHuman,
	}, "test")
	if err == nil {
		t.Error("expected error creating ticket with non-pending status")
	}
}

func TestListTicketsOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mkTicket := func(objective string, p types.Priority) string {
		result, err := store.CreateTicket(ctx, &types.Ticket{
			Objective:  objective,
			Priority:   p,
			SourceKind: types.SourceHuman,
		}, "test")
		if err != nil {
			t.Fatalf("failed to create %q: %v", objective, err)
		}
		return result.TicketID
	}

	low := mkTicket("low", types.PriorityLow)
	critical := mkTicket("critical", types.PriorityCritical)
	mediumFirst := mkTicket("medium-first", types.PriorityMedium)
	mediumSecond := mkTicket("medium-second", types.PriorityMedium)

	tickets, err := store.ListTickets(ctx, types.TicketFilter{})
	if err != nil {
		t.Fatalf("ListTickets failed: %v", err)
	}
	if len(tickets) != 4 {
		t.Fatalf("got %d tickets, want 4", len(tickets))
	}

	// Priority descending, then creation order for equal priorities.
	want := []string{critical, mediumFirst, mediumSecond, low}
	for i, id := range want {
		if tickets[i].ID != id {
			t.Errorf("position %d: got %s, want %s", i, tickets[i].ID, id)
		}
	}
}

func TestListTicketsFilters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id := createTestTicket(t, store, "to claim")
	createTestTicket(t, store, "stays pending")

	if _, err := store.ClaimTicket(ctx, id, "worker"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	pending := types.StatusPending
	tickets, err := store.ListTickets(ctx, types.TicketFilter{Status: &pending})
	if err != nil {
		t.Fatalf("ListTickets failed: %v", err)
	}
	if len(tickets) != 1 || tickets[0].Objective != "stays pending" {
		t.Errorf("status filter returned %d tickets", len(tickets))
	}

	inProgress := types.StatusInProgress
	tickets, err = store.ListTickets(ctx, types.TicketFilter{Status: &inProgress})
	if err != nil {
		t.Fatalf("ListTickets failed: %v", err)
	}
	if len(tickets) != 1 || tickets[0].ID != id {
		t.Errorf("in_progress filter returned wrong tickets: %v", tickets)
	}

	human := types.SourceHuman
	tickets, err = store.ListTickets(ctx, types.TicketFilter{SourceKind: &human})
	if err != nil {
		t.Fatalf("ListTickets failed: %v", err)
	}
	if len(tickets) != 2 {
		t.Errorf("source filter returned %d tickets, want 2", len(tickets))
	}
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	a := createTestTicket(t, store, "a")
	b := createTestTicket(t, store, "b")
	createTestTicket(t, store, "c")

	if _, err := store.ClaimTicket(ctx, a, "worker"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := store.ClaimTicket(ctx, b, "worker"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.ApplyTransition(ctx, b, types.StatusInProgress, types.StatusCompleted, "done", "worker"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	stats, err := store.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if stats.TotalTickets != 3 {
		t.Errorf("total = %d, want 3", stats.TotalTickets)
	}
	if stats.PendingTickets != 1 {
		t.Errorf("pending = %d, want 1", stats.PendingTickets)
	}
	if stats.InProgressTickets != 1 {
		t.Errorf("in_progress = %d, want 1", stats.InProgressTickets)
	}
	if stats.CompletedTickets != 1 {
		t.Errorf("completed = %d, want 1", stats.CompletedTickets)
	}
	if stats.ReadyTickets != 1 {
		t.Errorf("ready = %d, want 1", stats.ReadyTickets)
	}
}
