package model

import "time"

// Derive computes a task's status and completion date from its assignee and
// checklist state. Precedence: all steps done wins over everything, then any
// step done, then assignee presence, then PENDING.
//
// The rule is pure and total. Calling it again on its own output is a no-op:
// the completion date only moves from empty to "today" on the transition into
// COMPLETED and is preserved on later calls.
func Derive(assigneeID string, progress []ProgressStep, existingCompletion string, today time.Time) (TaskStatus, string) {
	done := 0
	for _, s := range progress {
		if s.IsCompleted {
			done++
		}
	}

	switch {
	case len(progress) > 0 && done == len(progress):
		if existingCompletion != "" {
			return StatusCompleted, existingCompletion
		}
		return StatusCompleted, today.Format(DateLayout)
	case done > 0:
		return StatusInProgress, ""
	case assigneeID != "":
		return StatusAssigned, ""
	default:
		return StatusPending, ""
	}
}

// ApplyDerivation recomputes the task's derived fields in place.
// Invoked once per save, never speculatively while a user is toggling steps.
func (t *Task) ApplyDerivation(today time.Time) {
	t.Status, t.CompletionDate = Derive(t.AssigneeID, t.Progress, t.CompletionDate, today)
}
