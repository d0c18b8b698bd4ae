package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/harnesslab/harness/internal/storage/storeerr"
	"github.com/harnesslab/harness/internal/types"
)

func addDep(t *testing.T, store *SQLiteStorage, ticketID, dependsOnID string) {
	t.Helper()
	err := store.AddDependency(context.Background(), &types.Dependency{
		TicketID:    ticketID,
		DependsOnID: dependsOnID,
	}, "test")
	if err != nil {
		t.Fatalf("failed to add dependency %s → %s: %v", ticketID, dependsOnID, err)
	}
}

func TestAddAndListDependencies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	deploy := createTestTicket(t, store, "deploy fix")
	review := createTestTicket(t, store, "review fix")
	addDep(t, store, deploy, review)

	deps, err := store.GetDependencies(ctx, deploy)
	if err != nil {
		t.Fatalf("GetDependencies failed: %v", err)
	}
	if len(deps) != 1 || deps[0].ID != review {
		t.Errorf("dependencies = %v", deps)
	}

	dependents, err := store.GetDependents(ctx, review)
	if err != nil {
		t.Fatalf("GetDependents failed: %v", err)
	}
	if len(dependents) != 1 || dependents[0].ID != deploy {
		t.Errorf("dependents = %v", dependents)
	}

	// The edge lands in the dependent ticket's event trail.
	events, err := store.ListEvents(ctx, deploy)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	var found bool
	for _, e := range events {
		if e.Kind == types.EventDependencyAdded {
			found = true
		}
	}
	if !found {
		t.Error("dependency_added event not recorded")
	}
}

func TestSelfDependencyRejected(t *testing.T) {
	store := newTestStore(t)
	id := createTestTicket(t, store, "narcissist")

	err := store.AddDependency(context.Background(), &types.Dependency{
		TicketID:    id,
		DependsOnID: id,
	}, "test")
	if !errors.Is(err, storeerr.ErrCycleDetected) {
		t.Errorf("expected cycle error for self-dependency, got %v", err)
	}
}

func TestDirectCycleRejected(t *testing.T) {
	store := newTestStore(t)
	a := createTestTicket(t, store, "a")
	b := createTestTicket(t, store, "b")

	addDep(t, store, a, b)
	err := store.AddDependency(context.Background(), &types.Dependency{
		TicketID:    b,
		DependsOnID: a,
	}, "test")
	if !errors.Is(err, storeerr.ErrCycleDetected) {
		t.Errorf("expected cycle error, got %v", err)
	}
}

func TestTransitiveCycleRejected(t *testing.T) {
	store := newTestStore(t)

	// Chain a → b → c → d; closing d → a is a 4-cycle.
	ids := make([]string, 4)
	for i := range ids {
		ids[i] = createTestTicket(t, store, "chain node")
	}
	for i := 0; i < len(ids)-1; i++ {
		addDep(t, store, ids[i], ids[i+1])
	}

	err := store.AddDependency(context.Background(), &types.Dependency{
		TicketID:    ids[3],
		DependsOnID: ids[0],
	}, "test")
	if !errors.Is(err, storeerr.ErrCycleDetected) {
		t.Errorf("expected cycle error for transitive cycle, got %v", err)
	}

	// Rejection leaves the graph untouched: the failed edge is absent.
	deps, err := store.GetDependencies(context.Background(), ids[3])
	if err != nil {
		t.Fatalf("GetDependencies failed: %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("rejected edge persisted: %v", deps)
	}
}

func TestDiamondIsNotACycle(t *testing.T) {
	store := newTestStore(t)
	top := createTestTicket(t, store, "top")
	left := createTestTicket(t, store, "left")
	right := createTestTicket(t, store, "right")
	bottom := createTestTicket(t, store, "bottom")

	addDep(t, store, top, left)
	addDep(t, store, top, right)
	addDep(t, store, left, bottom)
	addDep(t, store, right, bottom)

	deps, err := store.GetDependencies(context.Background(), top)
	if err != nil {
		t.Fatalf("GetDependencies failed: %v", err)
	}
	if len(deps) != 2 {
		t.Errorf("got %d dependencies, want 2", len(deps))
	}
}

func TestDependencyOnUnknownTicket(t *testing.T) {
	store := newTestStore(t)
	id := createTestTicket(t, store, "real")

	err := store.AddDependency(context.Background(), &types.Dependency{
		TicketID:    id,
		DependsOnID: "tk-404",
	}, "test")
	if !errors.Is(err, storeerr.ErrNotFound) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestRemoveDependency(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	a := createTestTicket(t, store, "a")
	b := createTestTicket(t, store, "b")
	addDep(t, store, a, b)

	if err := store.RemoveDependency(ctx, a, b, "test"); err != nil {
		t.Fatalf("RemoveDependency failed: %v", err)
	}
	deps, err := store.GetDependencies(ctx, a)
	if err != nil {
		t.Fatalf("GetDependencies failed: %v", err)
	}
	if len(deps) != 0 {
		t.Errorf("dependency still present: %v", deps)
	}

	// Removing a missing edge reports not-found.
	err = store.RemoveDependency(ctx, a, b, "test")
	if !errors.Is(err, storeerr.ErrNotFound) {
		t.Errorf("expected not-found for absent edge, got %v", err)
	}

	// With the blocking edge gone, the reverse edge is legal.
	addDep(t, store, b, a)
}

func TestReadyTicketsRespectDependencies(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rollout := createTestTicket(t, store, "rollout")
	canary := createTestTicket(t, store, "canary")
	addDep(t, store, rollout, canary)

	ready, err := store.GetReadyTickets(ctx, 10)
	if err != nil {
		t.Fatalf("GetReadyTickets failed: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != canary {
		t.Fatalf("ready = %v, want only %s", ready, canary)
	}

	if ok, err := store.IsReady(ctx, rollout); err != nil || ok {
		t.Errorf("IsReady(%s) = %v, %v; want false", rollout, ok, err)
	}
	if ok, err := store.IsReady(ctx, canary); err != nil || !ok {
		t.Errorf("IsReady(%s) = %v, %v; want true", canary, ok, err)
	}

	// A failed dependency does not unblock the dependent; only completion
	// counts.
	if _, err := store.ClaimTicket(ctx, canary, "worker"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.ApplyTransition(ctx, canary, types.StatusInProgress, types.StatusFailed, "canary regressed", "worker"); err != nil {
		t.Fatalf("fail failed: %v", err)
	}
	if ok, _ := store.IsReady(ctx, rollout); ok {
		t.Error("dependent became ready after dependency failed")
	}

	// Reopen the work via a fresh ticket path: the original failed ticket
	// stays terminal, so swap the edge to a new attempt and complete it.
	retry := createTestTicket(t, store, "canary retry")
	if err := store.RemoveDependency(ctx, rollout, canary, "test"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	addDep(t, store, rollout, retry)
	if _, err := store.ClaimTicket(ctx, retry, "worker"); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if err := store.ApplyTransition(ctx, retry, types.StatusInProgress, types.StatusCompleted, "canary clean", "worker"); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if ok, _ := store.IsReady(ctx, rollout); !ok {
		t.Error("dependent not ready after all dependencies completed")
	}
	ready, err = store.GetReadyTickets(ctx, 10)
	if err != nil {
		t.Fatalf("GetReadyTickets failed: %v", err)
	}
	if len(ready) != 1 || ready[0].ID != rollout {
		t.Errorf("ready = %v, want only %s", ready, rollout)
	}
}
