package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/taskflow/internal/apperr"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id             TEXT PRIMARY KEY,
	title          TEXT NOT NULL,
	description    TEXT NOT NULL DEFAULT '',
	deadline       TEXT NOT NULL DEFAULT '',
	priority       INTEGER NOT NULL DEFAULT 1,
	completed      INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'Pending',
	tags           TEXT NOT NULL DEFAULT '[]',
	parent_task_id TEXT,
	is_subtask     INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_parent ON tasks (parent_task_id);
`

const columns = `id, title, description, deadline, priority, completed, status, tags,
	parent_task_id, is_subtask, created_at, updated_at`

const defaultOrdering = "-created_at"

// SQLiteStore persists tasks in the tasks table of a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore ensures the tasks table exists on db. The caller owns db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create tasks schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Create persists t. An empty ID is replaced with a generated one and zero
// timestamps are stamped with the current time.
func (s *SQLiteStore) Create(ctx context.Context, t *Task) error {
	const op = "task.create"
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}

	tags, _ := json.Marshal(t.Tags)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+columns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, t.Deadline, int(t.Priority), t.Completed,
		string(t.Status), string(tags), nullString(t.ParentTaskID), t.IsSubtask,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperr.E(apperr.StoreFailure, op, "task %s already exists", t.ID)
		}
		return apperr.Wrap(apperr.StoreFailure, op, fmt.Errorf("insert task %s: %w", t.ID, err))
	}
	return nil
}

// Get retrieves a task by ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.E(apperr.NotFound, "task.get", "task %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "task.get", err)
	}
	return t, nil
}

// Update merges p into the stored task. It reports NotFound when the task
// does not exist and NoopUpdate when the write modifies no row, which cannot
// be told apart from the task vanishing after the existence check.
func (s *SQLiteStore) Update(ctx context.Context, id string, p Patch) error {
	const op = "task.update"
	if p.Empty() {
		return apperr.E(apperr.ValidationFailure, op, "no update data provided")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Description != nil {
		set("description", *p.Description)
	}
	if p.Deadline != nil {
		set("deadline", *p.Deadline)
	}
	if p.Priority != nil {
		set("priority", int(*p.Priority))
	}
	if p.Completed != nil {
		set("completed", *p.Completed)
	}
	if p.Status != nil {
		set("status", string(*p.Status))
	}
	if p.Tags != nil {
		tags, _ := json.Marshal(p.Tags)
		set("tags", string(tags))
	}
	set("updated_at", time.Now().UTC())
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return apperr.Wrap(apperr.StoreFailure, op, fmt.Errorf("update task %s: %w", id, err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.StoreFailure, op, err)
	}
	if rows == 0 {
		return apperr.E(apperr.NoopUpdate, op, "task %s was not modified", id)
	}
	return nil
}

// List returns tasks matching opts. A non-nil, empty RestrictToIDs returns an
// empty result without touching the database.
func (s *SQLiteStore) List(ctx context.Context, opts ListOptions) ([]*Task, error) {
	if opts.RestrictToIDs != nil && len(opts.RestrictToIDs) == 0 {
		return []*Task{}, nil
	}

	q := strings.Builder{}
	q.WriteString("SELECT " + columns + " FROM tasks WHERE 1=1")
	args := []any{}

	if opts.Priority != nil {
		q.WriteString(" AND priority = ?")
		args = append(args, int(*opts.Priority))
	}
	if opts.Status != nil {
		q.WriteString(" AND status = ?")
		args = append(args, string(*opts.Status))
	}
	if opts.Completed != nil {
		q.WriteString(" AND completed = ?")
		args = append(args, *opts.Completed)
	}
	if opts.ParentTaskID != "" {
		q.WriteString(" AND parent_task_id = ?")
		args = append(args, opts.ParentTaskID)
	}
	if opts.SubtasksOnly {
		q.WriteString(" AND is_subtask = 1")
	}
	if len(opts.RestrictToIDs) > 0 {
		q.WriteString(" AND id IN (?" + strings.Repeat(",?", len(opts.RestrictToIDs)-1) + ")")
		for _, id := range opts.RestrictToIDs {
			args = append(args, id)
		}
	}
	q.WriteString(" ORDER BY " + orderClause(opts.Ordering))

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "task.list", fmt.Errorf("list tasks: %w", err))
	}
	defer rows.Close()

	tasks := []*Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.StoreFailure, "task.list", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.StoreFailure, "task.list", err)
	}
	return tasks, nil
}

// Delete removes a task by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return apperr.Wrap(apperr.StoreFailure, "task.delete", fmt.Errorf("delete task %s: %w", id, err))
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.StoreFailure, "task.delete", err)
	}
	if rows == 0 {
		return apperr.E(apperr.NotFound, "task.delete", "task %s not found", id)
	}
	return nil
}

// orderClause turns "field" or "-field" into an ORDER BY clause. The field is
// quoted rather than validated. SQLite reads an unknown quoted name as a
// string constant, so such an ordering sorts by rowid alone.
func orderClause(ordering string) string {
	ordering = strings.TrimSpace(ordering)
	if ordering == "" || ordering == "-" {
		ordering = defaultOrdering
	}
	dir := "ASC"
	if strings.HasPrefix(ordering, "-") {
		dir = "DESC"
		ordering = ordering[1:]
	}
	field := `"` + strings.ReplaceAll(ordering, `"`, `""`) + `"`
	return field + " " + dir + ", rowid " + dir
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var status, tagsJSON string
	var priority int
	var parent sql.NullString

	err := s.Scan(
		&t.ID, &t.Title, &t.Description, &t.Deadline, &priority, &t.Completed,
		&status, &tagsJSON, &parent, &t.IsSubtask,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Status = Status(status)
	t.Priority = Priority(priority)
	t.ParentTaskID = parent.String
	if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil || t.Tags == nil {
		t.Tags = []string{}
	}
	return &t, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
