// Package controller holds the per-session application state: the live
// task and member snapshots, save gating, and the briefing flow.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/fillteam/filltrack/internal/export"
	"github.com/fillteam/filltrack/internal/model"
	"github.com/fillteam/filltrack/internal/notify"
)

var (
	// ErrNotStarted is returned by operations before Start or after Stop.
	ErrNotStarted = errors.New("controller not started")
	// ErrSaveInFlight is returned when a save for the same task id from
	// this session has not finished yet.
	ErrSaveInFlight = errors.New("save already in flight for this task")
	// ErrBriefingUnavailable is returned when no chat model is configured.
	ErrBriefingUnavailable = errors.New("briefing model not configured")
)

// TaskWriter is the slice of the task store the controller needs.
type TaskWriter interface {
	FetchAll(ctx context.Context) ([]model.Task, error)
	Save(ctx context.Context, actor *model.TeamMember, t *model.Task) (*model.Task, error)
	Delete(ctx context.Context, actor *model.TeamMember, id string) error
}

// Briefer generates AI text over a workload snapshot.
type Briefer interface {
	MorningBriefing(ctx context.Context, tasks []model.Task, members []model.TeamMember) (string, error)
	SuggestAssignment(ctx context.Context, task *model.Task, tasks []model.Task, members []model.TeamMember) (string, error)
}

// BriefingState tracks the independent briefing flow.
type BriefingState string

const (
	BriefingIdle    BriefingState = "idle"
	BriefingLoading BriefingState = "loading"
	BriefingDone    BriefingState = "done"
	BriefingError   BriefingState = "error"
)

// Stats are the dashboard counts derived from the current snapshot.
type Stats struct {
	Pending    int            `json:"pending"`
	Assigned   int            `json:"assigned"`
	InProgress int            `json:"in_progress"`
	Completed  int            `json:"completed"`
	Urgent     int            `json:"urgent"`
	MemberLoad map[string]int `json:"member_load"`
}

// Config wires a Controller. Briefer may be nil; briefing operations
// then fail with ErrBriefingUnavailable.
type Config struct {
	Tasks          TaskWriter
	Members        notify.MemberFetcher
	TaskNotifier   *notify.TaskNotifier
	MemberNotifier *notify.MemberNotifier
	Briefer        Briefer
	Now            func() time.Time
}

// Controller is constructed explicitly per session and discarded on
// teardown. All snapshot access goes through its mutex.
type Controller struct {
	tasks          TaskWriter
	members        notify.MemberFetcher
	taskNotifier   *notify.TaskNotifier
	memberNotifier *notify.MemberNotifier
	briefer        Briefer
	now            func() time.Time

	mu          sync.Mutex
	started     bool
	taskList    []model.Task
	memberList  []model.TeamMember
	saving      map[string]bool
	unsubTasks  func()
	unsubMember func()

	briefMu    sync.Mutex
	briefState BriefingState
	briefText  string
}

// New creates a stopped Controller.
func New(cfg Config) *Controller {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{
		tasks:          cfg.Tasks,
		members:        cfg.Members,
		taskNotifier:   cfg.TaskNotifier,
		memberNotifier: cfg.MemberNotifier,
		briefer:        cfg.Briefer,
		now:            now,
		saving:         make(map[string]bool),
		briefState:     BriefingIdle,
	}
}

// Start loads the member directory and the task list, then subscribes
// to change notifications. A load error leaves the controller stopped
// with whatever state it had before.
func (c *Controller) Start(ctx context.Context) error {
	members, err := c.members.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	tasks, err := c.tasks.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("load tasks: %w", err)
	}

	c.mu.Lock()
	c.memberList = members
	c.taskList = tasks
	c.started = true
	// The unsubscribe handles are read by Stop under the same lock.
	c.unsubTasks = c.taskNotifier.Subscribe(func(snapshot []model.Task) {
		c.mu.Lock()
		if c.started {
			c.taskList = snapshot
		}
		c.mu.Unlock()
	})
	c.unsubMember = c.memberNotifier.Subscribe(func(snapshot []model.TeamMember) {
		c.mu.Lock()
		if c.started {
			c.memberList = snapshot
		}
		c.mu.Unlock()
	})
	c.mu.Unlock()

	slog.Info("controller started", "tasks", len(tasks), "members", len(members))
	return nil
}

// Stop unsubscribes and discards the snapshots. Idempotent.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return
	}
	c.started = false
	if c.unsubTasks != nil {
		c.unsubTasks()
		c.unsubTasks = nil
	}
	if c.unsubMember != nil {
		c.unsubMember()
		c.unsubMember = nil
	}
	c.taskList = nil
	c.memberList = nil
	slog.Info("controller stopped")
}

// Tasks returns a copy of the current task snapshot.
func (c *Controller) Tasks() []model.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Task, len(c.taskList))
	for i := range c.taskList {
		out[i] = *c.taskList[i].Clone()
	}
	return out
}

// Members returns a copy of the current member snapshot.
func (c *Controller) Members() []model.TeamMember {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.TeamMember, len(c.memberList))
	copy(out, c.memberList)
	return out
}

// SaveTask validates, derives status, persists, and optimistically
// replaces the task in the local snapshot. The notifier refetch that
// follows the store's change events reconciles any difference. A second
// save of the same task id while one is in flight is rejected.
func (c *Controller) SaveTask(ctx context.Context, actor *model.TeamMember, t *model.Task) (*model.Task, error) {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil, ErrNotStarted
	}
	if c.saving[t.ID] {
		c.mu.Unlock()
		return nil, fmt.Errorf("task %s: %w", t.ID, ErrSaveInFlight)
	}
	c.saving[t.ID] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.saving, t.ID)
		c.mu.Unlock()
	}()

	if err := model.Validate(t); err != nil {
		return nil, err
	}
	t.ApplyDerivation(c.now())

	saved, err := c.tasks.Save(ctx, actor, t)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.started {
		replaced := false
		for i := range c.taskList {
			if c.taskList[i].ID == saved.ID {
				c.taskList[i] = *saved.Clone()
				replaced = true
				break
			}
		}
		if !replaced {
			c.taskList = append(c.taskList, *saved.Clone())
		}
	}
	c.mu.Unlock()

	return saved, nil
}

// DeleteTask removes a task through the store and from the snapshot.
func (c *Controller) DeleteTask(ctx context.Context, actor *model.TeamMember, id string) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.mu.Unlock()

	if err := c.tasks.Delete(ctx, actor, id); err != nil {
		return err
	}

	c.mu.Lock()
	if c.started {
		for i := range c.taskList {
			if c.taskList[i].ID == id {
				c.taskList = append(c.taskList[:i], c.taskList[i+1:]...)
				break
			}
		}
	}
	c.mu.Unlock()
	return nil
}

// GenerateBriefing runs the morning-briefing flow over the current
// snapshot. The flow is independent of task state: a failure is
// recorded as inline text and never touches the snapshots.
func (c *Controller) GenerateBriefing(ctx context.Context) (string, error) {
	if c.briefer == nil {
		return "", ErrBriefingUnavailable
	}
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return "", ErrNotStarted
	}
	tasks := make([]model.Task, len(c.taskList))
	copy(tasks, c.taskList)
	members := make([]model.TeamMember, len(c.memberList))
	copy(members, c.memberList)
	c.mu.Unlock()

	c.setBriefing(BriefingLoading, "")

	text, err := c.briefer.MorningBriefing(ctx, tasks, members)
	if err != nil {
		c.setBriefing(BriefingError, fmt.Sprintf("Briefing unavailable: %v", err))
		return "", fmt.Errorf("morning briefing: %w", err)
	}
	c.setBriefing(BriefingDone, text)
	return text, nil
}

// SuggestAssignment asks the model for an assignee recommendation.
func (c *Controller) SuggestAssignment(ctx context.Context, task *model.Task) (string, error) {
	if c.briefer == nil {
		return "", ErrBriefingUnavailable
	}
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return "", ErrNotStarted
	}
	tasks := make([]model.Task, len(c.taskList))
	copy(tasks, c.taskList)
	members := make([]model.TeamMember, len(c.memberList))
	copy(members, c.memberList)
	c.mu.Unlock()

	text, err := c.briefer.SuggestAssignment(ctx, task, tasks, members)
	if err != nil {
		return "", fmt.Errorf("suggest assignment: %w", err)
	}
	return text, nil
}

// Briefing returns the state and text of the last briefing flow.
func (c *Controller) Briefing() (BriefingState, string) {
	c.briefMu.Lock()
	defer c.briefMu.Unlock()
	return c.briefState, c.briefText
}

func (c *Controller) setBriefing(state BriefingState, text string) {
	c.briefMu.Lock()
	c.briefState = state
	c.briefText = text
	c.briefMu.Unlock()
}

// Stats derives the dashboard counts from the current snapshot.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{MemberLoad: make(map[string]int)}
	for i := range c.taskList {
		t := &c.taskList[i]
		switch t.Status {
		case model.StatusPending:
			s.Pending++
		case model.StatusAssigned:
			s.Assigned++
		case model.StatusInProgress:
			s.InProgress++
		case model.StatusCompleted:
			s.Completed++
		}
		if t.Priority == model.PriorityUrgent && t.Status != model.StatusCompleted {
			s.Urgent++
		}
		if t.AssigneeID != "" && t.Status != model.StatusCompleted {
			s.MemberLoad[model.MemberName(c.memberList, t.AssigneeID)]++
		}
	}
	return s
}

// ExportCSV writes the current snapshot as CSV.
func (c *Controller) ExportCSV(w io.Writer) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	tasks := make([]model.Task, len(c.taskList))
	copy(tasks, c.taskList)
	members := make([]model.TeamMember, len(c.memberList))
	copy(members, c.memberList)
	c.mu.Unlock()

	return export.WriteCSV(w, tasks, members)
}
