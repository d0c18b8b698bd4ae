package storage

import "github.com/harnesslab/harness/internal/storage/storeerr"

// Domain errors, re-exported from storeerr so callers can write
// errors.Is(err, storage.ErrClaimConflict). Storage-layer faults
// (connection loss, write failure) are wrapped with %w and never
// mapped onto these.
var (
	ErrNotFound          = storeerr.ErrNotFound
	ErrCycleDetected     = storeerr.ErrCycleDetected
	ErrInvalidTransition = storeerr.ErrInvalidTransition
	ErrClaimConflict     = storeerr.ErrClaimConflict
)
