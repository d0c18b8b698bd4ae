package types

import (
	"strings"
	"testing"
)

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from    Status
		to      Status
		allowed bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCompleted, false},
		{StatusPending, StatusFailed, false},
		{StatusPending, StatusBlocked, false},
		{StatusPending, StatusPending, false},

		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusBlocked, true},
		{StatusInProgress, StatusPending, true},
		{StatusInProgress, StatusInProgress, false},

		{StatusBlocked, StatusPending, true},
		{StatusBlocked, StatusInProgress, false},
		{StatusBlocked, StatusCompleted, false},

		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusPending, false},
		{StatusFailed, StatusInProgress, false},
		{StatusFailed, StatusCompleted, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("CanTransitionTo(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed} {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
		if transitions := s.ValidTransitions(); len(transitions) != 0 {
			t.Errorf("terminal status %s has transitions: %v", s, transitions)
		}
	}
	for _, s := range []Status{StatusPending, StatusInProgress, StatusBlocked} {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		input   string
		want    Priority
		wantErr bool
	}{
		{"low", PriorityLow, false},
		{"medium", PriorityMedium, false},
		{"high", PriorityHigh, false},
		{"critical", PriorityCritical, false},
		{"urgent", 0, true},
		{"2", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParsePriority(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePriority(%q): expected error, got %v", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePriority(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePriority(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestPriorityRoundTrip(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical} {
		parsed, err := ParsePriority(p.String())
		if err != nil {
			t.Fatalf("ParsePriority(%q) failed: %v", p.String(), err)
		}
		if parsed != p {
			t.Errorf("round trip %v → %q → %v", p, p.String(), parsed)
		}
	}
}

func TestTicketValidate(t *testing.T) {
	valid := Ticket{
		Objective:  "investigate error budget burn",
		Priority:   PriorityHigh,
		SourceKind: SourceSLOViolation,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid ticket rejected: %v", err)
	}

	missing := valid
	missing.Objective = ""
	if err := missing.Validate(); err == nil {
		t.Error("expected error for empty objective")
	}

	long := valid
	long.Objective = strings.Repeat("x", 2001)
	if err := long.Validate(); err == nil {
		t.Error("expected error for oversized objective")
	}

	badPriority := valid
	badPriority.Priority = Priority(9)
	if err := badPriority.Validate(); err == nil {
		t.Error("expected error for out-of-range priority")
	}

	badStatus := valid
	badStatus.Status = Status("archived")
	if err := badStatus.Validate(); err == nil {
		t.Error("expected error for unknown status")
	}

	badSource := valid
	badSource.SourceKind = SourceKind("mystery")
	if err := badSource.Validate(); err == nil {
		t.Error("expected error for unknown source kind")
	}
}
