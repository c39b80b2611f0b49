package model

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports required task fields missing or a malformed
// checklist at save time.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid task: " + strings.Join(e.Fields, ", ")
}

// Validate checks the required fields (project number, batch info, start
// date) and the checklist invariant: exactly 8 steps, positions 1..8 in
// order.
func Validate(t *Task) error {
	var bad []string

	if strings.TrimSpace(t.ProjectNumber) == "" {
		bad = append(bad, "project_number required")
	}
	if strings.TrimSpace(t.BatchInfo) == "" {
		bad = append(bad, "batch_info required")
	}
	if strings.TrimSpace(t.StartDate) == "" {
		bad = append(bad, "start_date required")
	} else if _, err := time.Parse(DateLayout, t.StartDate); err != nil {
		bad = append(bad, "start_date malformed")
	}

	if len(t.Progress) != StepCount {
		bad = append(bad, fmt.Sprintf("progress must have %d steps, has %d", StepCount, len(t.Progress)))
	} else {
		for i, s := range t.Progress {
			if s.Position != i+1 {
				bad = append(bad, fmt.Sprintf("progress position %d out of order", s.Position))
				break
			}
		}
	}

	if len(bad) > 0 {
		return &ValidationError{Fields: bad}
	}
	return nil
}
