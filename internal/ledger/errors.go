package ledger

import (
	"fmt"
	"strings"

	"crane-fleet-backend/internal/cycle"
	"crane-fleet-backend/internal/store"
)

var (
	// ErrNotFound is returned when the crane, record or task does not exist.
	ErrNotFound = store.ErrNotFound

	// ErrInvalidInput covers negative hours, bad crane types and malformed task logs.
	ErrInvalidInput = cycle.ErrInvalidInput

	// ErrConflict is returned when a crane or truck number is already taken.
	ErrConflict = store.ErrConflict

	// ErrInsufficientOil is returned when a drum write would dispense more than the drum holds.
	ErrInsufficientOil = fmt.Errorf("%w: insufficient oil in drum", ErrInvalidInput)
)

// DuplicateInCycleError rejects a submission whose parts were all serviced
// earlier in the same cycle window.
type DuplicateInCycleError struct {
	Skipped    []cycle.Part
	CycleIndex int
}

func (e *DuplicateInCycleError) Error() string {
	codes := make([]string, len(e.Skipped))
	for i, p := range e.Skipped {
		codes[i] = string(p)
	}
	return fmt.Sprintf("already serviced in cycle %d: %s", e.CycleIndex, strings.Join(codes, ", "))
}
