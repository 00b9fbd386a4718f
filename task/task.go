// Package task defines the task model and persistence for tasks and sub-tasks.
package task

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ParseStatus matches s against the known statuses, ignoring case.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusPending, StatusInProgress, StatusCompleted} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Priority orders tasks by urgency. Stored as an integer so that sorting on
// priority follows urgency rather than label spelling.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityNames = [...]string{"Low", "Medium", "High", "Critical"}

// Priorities lists every priority from lowest to highest.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
}

func (p Priority) String() string {
	if p < PriorityLow || p > PriorityCritical {
		return fmt.Sprintf("Priority(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority matches s against the priority labels, ignoring case.
func ParsePriority(s string) (Priority, error) {
	for i, name := range priorityNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Priority(i), nil
		}
	}
	return PriorityMedium, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Task is a unit of work. A sub-task is a Task with IsSubtask set and a
// ParentTaskID naming a top-level task; storage does not enforce the link.
type Task struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Deadline     string    `json:"deadline"` // ISO-8601 as supplied; may not parse
	Priority     Priority  `json:"priority"`
	Completed    bool      `json:"completed"`
	Status       Status    `json:"status"`
	Tags         []string  `json:"tags"` // denormalized; the association set is authoritative
	ParentTaskID string    `json:"parent_task_id,omitempty"`
	IsSubtask    bool      `json:"is_subtask"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// New returns a task with the model defaults applied.
func New(id, title, description, deadline string) *Task {
	return &Task{
		ID:          id,
		Title:       title,
		Description: description,
		Deadline:    deadline,
		Priority:    PriorityMedium,
		Status:      StatusPending,
		Tags:        []string{},
	}
}

// Patch carries the fields of a partial update. Nil fields are left as they
// are; a non-nil Tags slice (even an empty one) replaces the stored list.
type Patch struct {
	Title       *string
	Description *string
	Deadline    *string
	Priority    *Priority
	Completed   *bool
	Status      *Status
	Tags        []string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Deadline == nil &&
		p.Priority == nil && p.Completed == nil && p.Status == nil && p.Tags == nil
}

// ListOptions controls which tasks List returns and in what order.
type ListOptions struct {
	Priority  *Priority
	Status    *Status
	Completed *bool

	// ParentTaskID and SubtasksOnly narrow the result to one parent's sub-tasks.
	ParentTaskID string
	SubtasksOnly bool

	// RestrictToIDs intersects the result with an ID set. Nil means no
	// restriction; a non-nil empty slice yields an empty result.
	RestrictToIDs []string

	// Ordering names one stored field, optionally prefixed with "-" for
	// descending order. Empty means "-created_at".
	Ordering string
}

// Store persists and retrieves tasks.
type Store interface {
	// Create inserts a fully formed task. It fails if the ID already exists.
	Create(ctx context.Context, t *Task) error

	// Get retrieves a task by ID.
	Get(ctx context.Context, id string) (*Task, error)

	// Update merges p into the stored task and stamps a new UpdatedAt.
	Update(ctx context.Context, id string, p Patch) error

	// List returns tasks matching opts.
	List(ctx context.Context, opts ListOptions) ([]*Task, error)

	// Delete removes a task by ID. Sub-tasks and tag associations are kept.
	Delete(ctx context.Context, id string) error
}
