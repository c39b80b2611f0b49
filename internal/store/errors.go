package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation references a missing row.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned when a role-gated operation is
	// attempted by an unauthorized caller. The operation is rejected
	// before any write is attempted.
	ErrPermissionDenied = errors.New("permission denied")
)

// PartialWriteError reports a task whose progress row count does not match
// the checklist invariant. Save itself is transactional, so this can only
// arise from writes that bypassed the store.
type PartialWriteError struct {
	TaskID string
	Rows   int
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("task %s has %d progress rows, want 8", e.TaskID, e.Rows)
}
