// Package model defines the filling-task domain: tasks, their 8-step
// progress checklist, team members, and the status derivation rule.
package model

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date format used for all task dates.
// Dates carry no time-of-day semantics.
const DateLayout = "2006-01-02"

// StepCount is the fixed size of a task's progress checklist.
const StepCount = 8

// TaskStatus represents the lifecycle state of a task.
// It is derived from the checklist and assignee state, never set directly
// (except the PENDING default at creation).
type TaskStatus string

const (
	StatusPending    TaskStatus = "PENDING"
	StatusAssigned   TaskStatus = "ASSIGNED"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
)

// Priority represents the urgency of a task.
type Priority string

const (
	PriorityNormal Priority = "NORMAL"
	PriorityUrgent Priority = "URGENT"
)

// ProgressStep is one entry of the fixed 8-step checklist.
// Position is 1-based and order-significant; only IsCompleted and Notes
// mutate after creation.
type ProgressStep struct {
	Position    int    `json:"position"`
	Label       string `json:"label"`
	IsCompleted bool   `json:"is_completed"`
	Notes       string `json:"notes,omitempty"`
}

// Task is the aggregate of a filling task and its progress checklist.
type Task struct {
	ID             string         `json:"id"`
	ProjectNumber  string         `json:"project_number"`
	ProjectOwner   string         `json:"project_owner,omitempty"`
	Source         string         `json:"source,omitempty"`
	BatchInfo      string         `json:"batch_info"`
	ReceivedDate   string         `json:"received_date,omitempty"`
	StartDate      string         `json:"start_date"`
	DeadlineDate   string         `json:"deadline_date,omitempty"`
	CompletionDate string         `json:"completion_date,omitempty"`
	AssigneeID     string         `json:"assignee_id,omitempty"`
	Status         TaskStatus     `json:"status"`
	Priority       Priority       `json:"priority"`
	Progress       []ProgressStep `json:"progress"`
	CreatedBy      string         `json:"created_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at,omitzero"`
	UpdatedAt      time.Time      `json:"updated_at,omitzero"`
}

// GenerateTaskID creates a client-side unique task identifier.
func GenerateTaskID() string {
	return uuid.New().String()
}

// NewTask builds a fresh PENDING task with the given checklist template,
// today's received/start dates and a deadline five days out.
func NewTask(template []ProgressStep, today time.Time) *Task {
	return &Task{
		ID:           GenerateTaskID(),
		Status:       StatusPending,
		Priority:     PriorityNormal,
		Progress:     CloneSteps(template),
		ReceivedDate: today.Format(DateLayout),
		StartDate:    today.Format(DateLayout),
		DeadlineDate: today.AddDate(0, 0, 5).Format(DateLayout),
	}
}

// CompletedSteps counts the checked entries of the checklist.
func (t *Task) CompletedSteps() int {
	n := 0
	for _, s := range t.Progress {
		if s.IsCompleted {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the task, including its checklist.
func (t *Task) Clone() *Task {
	c := *t
	c.Progress = CloneSteps(t.Progress)
	return &c
}

// CloneSteps deep-copies a checklist slice.
func CloneSteps(steps []ProgressStep) []ProgressStep {
	out := make([]ProgressStep, len(steps))
	copy(out, steps)
	return out
}
