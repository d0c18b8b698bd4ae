package types

import (
	"fmt"
	"time"
)

// Ticket is a trackable unit of remediation work. Tickets are owned by the
// ticket store and mutated only through validated status transitions; they
// are never deleted, only resolved.
type Ticket struct {
	ID              string         `json:"id"`
	Objective       string         `json:"objective"`
	SuccessCriteria string         `json:"success_criteria,omitempty"`
	Context         map[string]any `json:"context,omitempty"`
	Status          Status         `json:"status"`
	Priority        Priority       `json:"priority"`
	SourceKind      SourceKind     `json:"source_kind"`
	SourceID        string         `json:"source_id,omitempty"`
	ClaimedBy       string         `json:"claimed_by,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	ResolvedAt      *time.Time     `json:"resolved_at,omitempty"`
}

// Validate checks field values before the ticket reaches the store.
func (t *Ticket) Validate() error {
	if len(t.Objective) == 0 {
		return fmt.Errorf("objective is required")
	}
	if len(t.Objective) > 2000 {
		return fmt.Errorf("objective must be 2000 characters or less (got %d)", len(t.Objective))
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("priority must be between %d and %d (got %d)", PriorityLow, PriorityCritical, t.Priority)
	}
	if t.Status != "" && !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if !t.SourceKind.IsValid() {
		return fmt.Errorf("invalid source kind: %s", t.SourceKind)
	}
	return nil
}

// Status represents the current state of a ticket.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusBlocked    Status = "blocked"
)

// IsValid checks if the status value is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusBlocked:
		return true
	}
	return false
}

// IsTerminal reports whether the status accepts no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ValidTransitions returns the statuses reachable from this one.
//
// State machine:
//
//	pending → in_progress (claim)
//	in_progress → completed | failed | blocked | pending (release)
//	blocked → pending
//	completed, failed: terminal
func (s Status) ValidTransitions() []Status {
	switch s {
	case StatusPending:
		return []Status{StatusInProgress}
	case StatusInProgress:
		return []Status{StatusCompleted, StatusFailed, StatusBlocked, StatusPending}
	case StatusBlocked:
		return []Status{StatusPending}
	case StatusCompleted, StatusFailed:
		return nil
	default:
		return nil
	}
}

// CanTransitionTo checks if a transition from this status to target is legal.
func (s Status) CanTransitionTo(target Status) bool {
	for _, valid := range s.ValidTransitions() {
		if valid == target {
			return true
		}
	}
	return false
}

// Priority orders tickets for claiming. Higher is more urgent.
type Priority int

const (
	PriorityLow      Priority = 0
	PriorityMedium   Priority = 1
	PriorityHigh     Priority = 2
	PriorityCritical Priority = 3
)

// IsValid checks if the priority value is in range.
func (p Priority) IsValid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority converts a priority name to its ordinal value.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	}
	return 0, fmt.Errorf("unknown priority: %q", s)
}

// SourceKind identifies what produced a ticket.
type SourceKind string

const (
	SourceHuman              SourceKind = "human"
	SourceSLOViolation       SourceKind = "slo_violation"
	SourceInvariantViolation SourceKind = "invariant_violation"
	SourceAnomaly            SourceKind = "anomaly"
	SourceScheduled          SourceKind = "scheduled"
	SourceWebhook            SourceKind = "webhook"
)

// IsValid checks if the source kind value is valid.
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceHuman, SourceSLOViolation, SourceInvariantViolation,
		SourceAnomaly, SourceScheduled, SourceWebhook:
		return true
	}
	return false
}

// EventKind categorizes ticket trajectory events.
type EventKind string

const (
	EventCreated           EventKind = "created"
	EventStatusChanged     EventKind = "status_changed"
	EventPriorityChanged   EventKind = "priority_changed"
	EventNoteAdded         EventKind = "note_added"
	EventAgentAction       EventKind = "agent_action"
	EventDependencyAdded   EventKind = "dependency_added"
	EventDependencyRemoved EventKind = "dependency_removed"
	EventContextUpdated    EventKind = "context_updated"
)

// IsValid checks if the event kind value is valid.
func (k EventKind) IsValid() bool {
	switch k {
	case EventCreated, EventStatusChanged, EventPriorityChanged, EventNoteAdded,
		EventAgentAction, EventDependencyAdded, EventDependencyRemoved, EventContextUpdated:
		return true
	}
	return false
}

// TicketEvent is one immutable entry in a ticket's trajectory. Events are
// never updated or deleted; per-ticket order is (created_at, id).
type TicketEvent struct {
	ID        int64          `json:"id"`
	TicketID  string         `json:"ticket_id"`
	Kind      EventKind      `json:"kind"`
	Actor     string         `json:"actor,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Dependency is a directed edge: ticket_id depends on depends_on_id.
// The full edge set must remain a DAG; insertion-time cycle checks
// enforce this in the store.
type Dependency struct {
	TicketID    string    `json:"ticket_id"`
	DependsOnID string    `json:"depends_on_id"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by,omitempty"`
}

// CreateResult reports the outcome of a dedup-aware create.
type CreateResult struct {
	TicketID     string `json:"ticket_id"`
	Deduplicated bool   `json:"deduplicated"`
}

// TicketFilter narrows ListTickets queries.
type TicketFilter struct {
	Status     *Status
	SourceKind *SourceKind
	Ready      bool
	Limit      int
}

// Statistics provides aggregate counts for dashboards.
type Statistics struct {
	TotalTickets      int `json:"total_tickets"`
	PendingTickets    int `json:"pending_tickets"`
	InProgressTickets int `json:"in_progress_tickets"`
	CompletedTickets  int `json:"completed_tickets"`
	FailedTickets     int `json:"failed_tickets"`
	BlockedTickets    int `json:"blocked_tickets"`
	ReadyTickets      int `json:"ready_tickets"`
}

// AgentInstance represents a running worker process registered with the
// store for heartbeat tracking.
type AgentInstance struct {
	InstanceID    string    `json:"instance_id"`
	Hostname      string    `json:"hostname"`
	PID           int       `json:"pid"`
	StartedAt     time.Time `json:"started_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Version       string    `json:"version"`
}

// Validate checks if the agent instance has valid field values.
func (a *AgentInstance) Validate() error {
	if a.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if a.Hostname == "" {
		return fmt.Errorf("hostname is required")
	}
	if a.PID <= 0 {
		return fmt.Errorf("pid must be positive (got %d)", a.PID)
	}
	return nil
}
