// Package agent polls for ready tickets, claims them, and drives each one
// to a terminal status through a Handler. The stock handler is Claude with
// an observe/act toolkit; tests substitute scripted handlers.
package agent

import (
	"context"

	"github.com/harnesslab/harness/internal/types"
)

// Outcome is what a handler decided about a ticket. Status must be one of
// completed, failed, or blocked.
type Outcome struct {
	Status  types.Status
	Summary string
	Turns   int
}

// Handler works a single claimed ticket. The ticket is in_progress when
// Handle is called; the runner applies the outcome's transition afterward.
type Handler interface {
	Handle(ctx context.Context, ticket *types.Ticket) (Outcome, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, ticket *types.Ticket) (Outcome, error)

func (f HandlerFunc) Handle(ctx context.Context, ticket *types.Ticket) (Outcome, error) {
	return f(ctx, ticket)
}
