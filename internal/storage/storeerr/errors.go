// Package storeerr holds the engine's domain errors. It is a leaf package
// so that both storage backends and the storage facade can share the same
// sentinel values without an import cycle.
package storeerr

import "errors"

var (
	// ErrNotFound indicates an unknown ticket, SLO, invariant, or edge.
	ErrNotFound = errors.New("not found")

	// ErrCycleDetected indicates a dependency edge whose insertion would
	// close a cycle. The edge is never partially applied.
	ErrCycleDetected = errors.New("dependency cycle detected")

	// ErrInvalidTransition indicates a status change outside the legal
	// transition table. Nothing is committed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrClaimConflict is the normal negative result of a conditional
	// write race: the stored status no longer matched the expected status
	// at commit time. Callers move on to the next candidate.
	ErrClaimConflict = errors.New("claim conflict")
)
