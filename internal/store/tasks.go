package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fillteam/filltrack/internal/events"
	"github.com/fillteam/filltrack/internal/model"
)

// taskColumns is the canonical column list for task SELECTs.
// Order must match scanTask.
const taskColumns = `id, project_number, project_owner, source, batch_info,
	received_date, start_date, completion_date, deadline_date,
	assignee_id, status, priority, created_by, created_at, updated_at`

// TaskStore handles CRUD for task aggregates: the task row plus its 8
// progress rows, treated as one unit on every write and delete.
type TaskStore struct {
	db  *DB
	bus *events.Bus
	now func() time.Time
}

// NewTaskStore creates a TaskStore. The bus may be nil; change events are
// then suppressed.
func NewTaskStore(db *DB, bus *events.Bus) *TaskStore {
	return &TaskStore{db: db, bus: bus, now: time.Now}
}

// FetchAll returns every task joined with its progress rows sorted by
// position. Backend failure propagates; an empty slice is only ever a
// success result.
func (s *TaskStore) FetchAll(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM tasks ORDER BY created_at, id", taskColumns))
	if err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	index := make(map[string]int)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		index[t.ID] = len(tasks)
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch tasks: %w", err)
	}

	prows, err := s.db.QueryContext(ctx,
		`SELECT task_id, position, label, is_completed, COALESCE(notes, '')
		 FROM task_progress ORDER BY task_id, position`)
	if err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}
	defer prows.Close()

	for prows.Next() {
		var taskID string
		var step model.ProgressStep
		if err := prows.Scan(&taskID, &step.Position, &step.Label, &step.IsCompleted, &step.Notes); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		if i, ok := index[taskID]; ok {
			tasks[i].Progress = append(tasks[i].Progress, step)
		}
	}
	if err := prows.Err(); err != nil {
		return nil, fmt.Errorf("fetch progress: %w", err)
	}

	return tasks, nil
}

// Get returns a single task aggregate by id, or ErrNotFound.
func (s *TaskStore) Get(ctx context.Context, id string) (*model.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM tasks WHERE id = ?", taskColumns), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT position, label, is_completed, COALESCE(notes, '')
		 FROM task_progress WHERE task_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var step model.ProgressStep
		if err := rows.Scan(&step.Position, &step.Label, &step.IsCompleted, &step.Notes); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		t.Progress = append(t.Progress, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}

	return t, nil
}

// Save upserts the task row keyed by id (created_by attributed to the actor
// on first insert) and replaces all progress rows, inside one transaction.
// It returns the post-write read-back so callers observe server-assigned
// fields.
func (s *TaskStore) Save(ctx context.Context, actor *model.TeamMember, t *model.Task) (*model.Task, error) {
	if err := model.Validate(t); err != nil {
		return nil, err
	}
	// Status is always derived, never trusted from the caller.
	t.ApplyDerivation(s.now())

	existing, err := s.Get(ctx, t.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing != nil {
		if err := checkEditRights(actor, existing, t); err != nil {
			return nil, err
		}
	}

	now := s.now()
	op := "update"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}
	defer tx.Rollback()

	if existing == nil {
		op = "insert"
		createdBy := t.CreatedBy
		if createdBy == "" && actor != nil {
			createdBy = actor.ID
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tasks (
				id, project_number, project_owner, source, batch_info,
				received_date, start_date, completion_date, deadline_date,
				assignee_id, status, priority, created_by, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.ProjectNumber, nullStr(t.ProjectOwner), nullStr(t.Source), t.BatchInfo,
			nullStr(t.ReceivedDate), t.StartDate, nullStr(t.CompletionDate), nullStr(t.DeadlineDate),
			nullStr(t.AssigneeID), string(t.Status), string(t.Priority),
			nullStr(createdBy), now.Unix(), now.Unix(),
		)
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE tasks SET
				project_number = ?, project_owner = ?, source = ?, batch_info = ?,
				received_date = ?, start_date = ?, completion_date = ?, deadline_date = ?,
				assignee_id = ?, status = ?, priority = ?, updated_at = ?
			WHERE id = ?`,
			t.ProjectNumber, nullStr(t.ProjectOwner), nullStr(t.Source), t.BatchInfo,
			nullStr(t.ReceivedDate), t.StartDate, nullStr(t.CompletionDate), nullStr(t.DeadlineDate),
			nullStr(t.AssigneeID), string(t.Status), string(t.Priority),
			now.Unix(), t.ID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("save task row: %w", err)
	}

	// Replace the whole checklist on every save.
	if _, err := tx.ExecContext(ctx, "DELETE FROM task_progress WHERE task_id = ?", t.ID); err != nil {
		return nil, fmt.Errorf("clear progress: %w", err)
	}
	for _, step := range t.Progress {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO task_progress (task_id, position, label, is_completed, notes)
			VALUES (?, ?, ?, ?, ?)`,
			t.ID, step.Position, step.Label, step.IsCompleted, nullStr(step.Notes),
		)
		if err != nil {
			return nil, fmt.Errorf("insert progress row %d: %w", step.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}

	saved, err := s.Get(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("read back task: %w", err)
	}
	if len(saved.Progress) != model.StepCount {
		return nil, &PartialWriteError{TaskID: t.ID, Rows: len(saved.Progress)}
	}

	s.publish(events.EventTaskChanged, t.ID, op)
	s.publish(events.EventProgressChanged, t.ID, op)

	return saved, nil
}

// Delete removes a task and its progress rows. Only managers may delete;
// the check runs before any database access.
func (s *TaskStore) Delete(ctx context.Context, actor *model.TeamMember, id string) error {
	if actor == nil || actor.Role != model.RoleManager {
		return fmt.Errorf("delete task: %w", ErrPermissionDenied)
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}

	s.publish(events.EventTaskChanged, id, "delete")
	s.publish(events.EventProgressChanged, id, "delete")
	return nil
}

// checkEditRights rejects field changes the actor is not allowed to make on
// an existing task. Derived fields (status, completion date) are exempt.
func checkEditRights(actor *model.TeamMember, old, new *model.Task) error {
	changed := func(field string, differs bool) error {
		if differs && !model.CanEdit(actor, old, field) {
			return fmt.Errorf("edit %s: %w", field, ErrPermissionDenied)
		}
		return nil
	}

	checks := []error{
		changed(model.FieldProjectNumber, old.ProjectNumber != new.ProjectNumber),
		changed(model.FieldProjectOwner, old.ProjectOwner != new.ProjectOwner),
		changed(model.FieldSource, old.Source != new.Source),
		changed(model.FieldBatchInfo, old.BatchInfo != new.BatchInfo),
		changed(model.FieldDates, old.ReceivedDate != new.ReceivedDate ||
			old.StartDate != new.StartDate || old.DeadlineDate != new.DeadlineDate),
		changed(model.FieldAssignee, old.AssigneeID != new.AssigneeID),
		changed(model.FieldPriority, old.Priority != new.Priority),
		changed(model.FieldProgress, !progressEqual(old.Progress, new.Progress)),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

func progressEqual(a, b []model.ProgressStep) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (s *TaskStore) publish(t events.EventType, taskID, op string) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.NewEvent(t, events.SourceStore, map[string]any{
		"task_id": taskID,
		"op":      op,
	}))
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*model.Task, error) {
	var t model.Task
	var projectOwner, source, receivedDate, completionDate, deadlineDate sql.NullString
	var assigneeID, createdBy sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(
		&t.ID, &t.ProjectNumber, &projectOwner, &source, &t.BatchInfo,
		&receivedDate, &t.StartDate, &completionDate, &deadlineDate,
		&assigneeID, &t.Status, &t.Priority, &createdBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.ProjectOwner = projectOwner.String
	t.Source = source.String
	t.ReceivedDate = receivedDate.String
	t.CompletionDate = completionDate.String
	t.DeadlineDate = deadlineDate.String
	t.AssigneeID = assigneeID.String
	t.CreatedBy = createdBy.String
	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
	return &t, nil
}

// nullStr maps empty strings to NULL.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
