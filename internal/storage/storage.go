// Package storage defines the durable system of record for the ticket
// workflow engine. All cross-process coordination happens through this
// interface: conditional status writes, atomic dependency-edge inserts,
// and dedup-aware creates. No in-memory locks are shared across processes.
package storage

import (
	"context"
	"strings"

	"github.com/harnesslab/harness/internal/types"
)

// Storage is the ticket store contract. Both backends (SQLite, Postgres)
// implement it; callers never see the persistence technology.
type Storage interface {
	// Tickets
	//
	// CreateTicket persists a new ticket, or — when an open ticket for the
	// same (source_kind, source_id) already exists — returns that ticket's
	// id with Deduplicated set. The check-then-insert is a single atomic
	// unit; two racing detectors cannot both create a row for one source.
	CreateTicket(ctx context.Context, ticket *types.Ticket, actor string) (types.CreateResult, error)
	GetTicket(ctx context.Context, id string) (*types.Ticket, error)
	ListTickets(ctx context.Context, filter types.TicketFilter) ([]*types.Ticket, error)

	// ApplyTransition is the sole status mutation primitive: a conditional
	// write that commits only if the stored status still equals expected at
	// commit time. Entering a terminal state sets resolved_at (once) and
	// every accepted transition appends exactly one status_changed event.
	ApplyTransition(ctx context.Context, id string, expected, next types.Status, reason, actor string) error

	// ClaimTicket is the conditional pending→in_progress transition. At most
	// one concurrent claim on a ticket succeeds; losers get ErrClaimConflict.
	ClaimTicket(ctx context.Context, id, actor string) (*types.Ticket, error)

	// Ready work
	GetReadyTickets(ctx context.Context, limit int) ([]*types.Ticket, error)
	IsReady(ctx context.Context, id string) (bool, error)

	// Dependencies
	AddDependency(ctx context.Context, dep *types.Dependency, actor string) error
	RemoveDependency(ctx context.Context, ticketID, dependsOnID, actor string) error
	GetDependencies(ctx context.Context, ticketID string) ([]*types.Ticket, error)
	GetDependents(ctx context.Context, ticketID string) ([]*types.Ticket, error)

	// Events
	AppendEvent(ctx context.Context, event *types.TicketEvent) (int64, error)
	ListEvents(ctx context.Context, ticketID string) ([]*types.TicketEvent, error)

	// Statistics
	GetStatistics(ctx context.Context) (*types.Statistics, error)

	// SLOs
	CreateSLO(ctx context.Context, slo *types.SLO) error
	GetSLO(ctx context.Context, name string) (*types.SLO, error)
	ListSLOs(ctx context.Context, enabledOnly bool) ([]*types.SLO, error)
	SetSLOEnabled(ctx context.Context, name string, enabled bool) error

	// Invariants
	CreateInvariant(ctx context.Context, inv *types.Invariant) error
	GetInvariant(ctx context.Context, name string) (*types.Invariant, error)
	ListInvariants(ctx context.Context, enabledOnly bool) ([]*types.Invariant, error)
	SetInvariantEnabled(ctx context.Context, name string, enabled bool) error

	// Agent instances
	RegisterInstance(ctx context.Context, instance *types.AgentInstance) error
	UpdateHeartbeat(ctx context.Context, instanceID string) error
	GetActiveInstances(ctx context.Context) ([]*types.AgentInstance, error)

	// Lifecycle
	Close() error
}

// Config holds storage configuration.
type Config struct {
	// URL selects the backend: a plain path (or "file:..." / ":memory:")
	// opens SQLite; a "postgres://" URL opens Postgres.
	URL string
}

// DefaultConfig returns a config pointing at the standard SQLite path.
func DefaultConfig() *Config {
	return &Config{URL: ".harness/harness.db"}
}

// IsPostgres reports whether the configured URL targets Postgres.
func (c *Config) IsPostgres() bool {
	return strings.HasPrefix(c.URL, "postgres://") || strings.HasPrefix(c.URL, "postgresql://")
}
