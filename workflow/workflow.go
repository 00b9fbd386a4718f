// Package workflow sequences the multi-store operations on tasks: creation
// with classification and tagging, completion with parent roll-up, enriched
// reads and association repair.
//
// Writes to the task and tag stores are not atomic. A failure after the task
// row is written leaves it without some or all association rows;
// RepairAssociations restores them from the task's denormalized tag list.
package workflow

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/taskflow/classify"
	"github.com/GoCodeAlone/taskflow/internal/apperr"
	"github.com/GoCodeAlone/taskflow/subtask"
	"github.com/GoCodeAlone/taskflow/tag"
	"github.com/GoCodeAlone/taskflow/task"
)

const (
	listPage    = 1
	listPerPage = 10
)

// Classifier infers a task's priority and labels.
type Classifier interface {
	ClassifyPriority(ctx context.Context, title, description string) (task.Priority, error)
	GenerateLabels(ctx context.Context, kind classify.LabelKind, title, description string) ([]string, error)
}

// Service is the entry point for task operations.
type Service struct {
	tasks      task.Store
	tags       tag.Store
	classifier Classifier
	subtasks   *subtask.Orchestrator
	logger     *slog.Logger
}

// New wires a Service. subtasks may be nil, in which case one is built over
// the same stores and classifier.
func New(tasks task.Store, tags tag.Store, classifier Classifier, subtasks *subtask.Orchestrator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if subtasks == nil {
		subtasks = subtask.New(tasks, tags, classifier, logger)
	}
	return &Service{
		tasks:      tasks,
		tags:       tags,
		classifier: classifier,
		subtasks:   subtasks,
		logger:     logger,
	}
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	RequestID   string
	Title       string
	Description string
	Deadline    string
}

// Create classifies, stores and tags a new task. The task ID is the request
// ID when given, otherwise a generated UUID. Priority classification is
// mandatory; tag generation and association are best effort.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*task.Task, error) {
	const op = "workflow.create"
	if strings.TrimSpace(req.Title) == "" {
		return nil, apperr.E(apperr.ValidationFailure, op, "title is required")
	}
	id := strings.TrimSpace(req.RequestID)
	if id == "" {
		id = uuid.NewString()
	}
	log := s.logger.With(slog.String("task_id", id))
	log.Info("creating task", slog.String("title", req.Title))

	priority, err := s.classifier.ClassifyPriority(ctx, req.Title, req.Description)
	if err != nil {
		log.Error("priority classification failed", slog.Any("err", err))
		return nil, err
	}

	names, err := s.classifier.GenerateLabels(ctx, classify.LabelTags, req.Title, req.Description)
	if err != nil {
		log.Warn("tag generation failed, continuing without tags", slog.Any("err", err))
	}
	names = tag.NormalizeAll(names)

	t := task.New(id, req.Title, req.Description, req.Deadline)
	t.Priority = priority
	t.Tags = names
	if err := s.tasks.Create(ctx, t); err != nil {
		log.Error("store task failed", slog.Any("err", err))
		return nil, err
	}

	if len(names) > 0 {
		if err := s.tags.Associate(ctx, t.ID, names); err != nil {
			// The task is stored; RepairAssociations can fill the gap.
			log.Error("associate tags failed", slog.Any("tags", names), slog.Any("err", err))
		}
	}
	log.Info("task created", slog.String("priority", priority.String()), slog.Any("tags", names))
	return t, nil
}

// Get returns the stored task record as is.
func (s *Service) Get(ctx context.Context, id string) (*task.Task, error) {
	return s.tasks.Get(ctx, id)
}

// ParentSummary identifies a sub-task's parent.
type ParentSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Detail is a task with its relations resolved.
type Detail struct {
	*task.Task
	Subtasks     []*task.Task   `json:"subtasks,omitempty"`
	SubtaskCount *int           `json:"subtask_count,omitempty"`
	Parent       *ParentSummary `json:"parent_task,omitempty"`
}

// Detail returns the task with tags from its associations. Top-level tasks
// carry their sub-tasks; sub-tasks carry a summary of a surviving parent.
func (s *Service) Detail(ctx context.Context, id string) (*Detail, error) {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Tags, err = s.tags.TagsForTask(ctx, id); err != nil {
		return nil, err
	}

	d := &Detail{Task: t}
	if !t.IsSubtask {
		subs, err := s.subtasks.ListForParent(ctx, id)
		if err != nil {
			return nil, err
		}
		n := len(subs)
		d.Subtasks, d.SubtaskCount = subs, &n
		return d, nil
	}

	parent, err := s.subtasks.ParentOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if parent != nil {
		d.Parent = &ParentSummary{ID: parent.ID, Title: parent.Title}
	}
	return d, nil
}

// ListQuery filters a task listing.
type ListQuery struct {
	Priority  *task.Priority
	Status    *task.Status
	Completed *bool
	Tag       string
	Ordering  string
}

// ListResult is one page of tasks.
type ListResult struct {
	Tasks      []*task.Task `json:"tasks"`
	TotalCount int          `json:"total_count"`
	Page       int          `json:"page"`
	PerPage    int          `json:"per_page"`
}

// List returns tasks matching q with tags resolved from associations. A tag
// filter that matches nothing yields an empty result.
func (s *Service) List(ctx context.Context, q ListQuery) (*ListResult, error) {
	opts := task.ListOptions{
		Priority:  q.Priority,
		Status:    q.Status,
		Completed: q.Completed,
		Ordering:  q.Ordering,
	}
	if tagName := strings.TrimSpace(q.Tag); tagName != "" {
		ids, err := s.tags.TaskIDsForTag(ctx, tagName)
		if err != nil {
			return nil, err
		}
		opts.RestrictToIDs = ids
	}

	tasks, err := s.tasks.List(ctx, opts)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if t.Tags, err = s.tags.TagsForTask(ctx, t.ID); err != nil {
			return nil, err
		}
	}
	return &ListResult{Tasks: tasks, TotalCount: len(tasks), Page: listPage, PerPage: listPerPage}, nil
}

// Update applies a partial update. Tags in the patch replace the
// denormalized list only; associations are untouched.
func (s *Service) Update(ctx context.Context, id string, p task.Patch) error {
	if err := s.tasks.Update(ctx, id, p); err != nil {
		return err
	}
	s.logger.Info("task updated", slog.String("task_id", id))
	return nil
}

// Complete marks a task completed. For a sub-task the parent's progress is
// reconciled afterwards; a reconcile failure is logged, not returned.
func (s *Service) Complete(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	done, status := true, task.StatusCompleted
	if err := s.tasks.Update(ctx, id, task.Patch{Completed: &done, Status: &status}); err != nil {
		return nil, err
	}
	t.Completed, t.Status = true, status
	s.logger.Info("task completed", slog.String("task_id", id))

	if t.IsSubtask && t.ParentTaskID != "" {
		if err := s.subtasks.ReconcileParentProgress(ctx, t.ParentTaskID); err != nil {
			s.logger.Error("reconcile parent progress failed", slog.String("task_id", id),
				slog.String("parent_task_id", t.ParentTaskID), slog.Any("err", err))
		}
	}
	return t, nil
}

// Delete removes the task row only. Sub-tasks and associations remain.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("task deleted", slog.String("task_id", id))
	return nil
}

// GenerateSubtasks decomposes a task into sub-tasks.
func (s *Service) GenerateSubtasks(ctx context.Context, id string) ([]*task.Task, error) {
	return s.subtasks.Decompose(ctx, id)
}

// Subtasks lists the sub-tasks of an existing task.
func (s *Service) Subtasks(ctx context.Context, id string) ([]*task.Task, error) {
	if _, err := s.tasks.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.subtasks.ListForParent(ctx, id)
}

// Parent returns the parent of a sub-task. It fails with ValidationFailure
// when id is not a sub-task and NotFound when the parent no longer exists.
func (s *Service) Parent(ctx context.Context, id string) (*task.Task, error) {
	const op = "workflow.parent"
	t, err := s.tasks.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.IsSubtask {
		return nil, apperr.E(apperr.ValidationFailure, op, "task %s is not a sub-task", id)
	}
	parent, err := s.subtasks.ParentOf(ctx, id)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, apperr.E(apperr.NotFound, op, "parent of task %s not found", id)
	}
	return parent, nil
}

// Tags returns every stored tag.
func (s *Service) Tags(ctx context.Context) ([]tag.Tag, error) {
	return s.tags.All(ctx)
}

// RepairAssociations appends the association rows missing for the names in
// each task's denormalized tag list. An empty id repairs every task. Running
// it again adds nothing. It returns how many rows were added.
func (s *Service) RepairAssociations(ctx context.Context, id string) (int, error) {
	var tasks []*task.Task
	if id != "" {
		t, err := s.tasks.Get(ctx, id)
		if err != nil {
			return 0, err
		}
		tasks = []*task.Task{t}
	} else {
		var err error
		if tasks, err = s.tasks.List(ctx, task.ListOptions{Ordering: "created_at"}); err != nil {
			return 0, err
		}
	}

	added := 0
	for _, t := range tasks {
		have, err := s.tags.TagsForTask(ctx, t.ID)
		if err != nil {
			return added, err
		}
		seen := make(map[string]bool, len(have))
		for _, name := range have {
			seen[name] = true
		}
		var missing []string
		for _, name := range t.Tags {
			n := tag.Normalize(name)
			if n == "" || seen[n] {
				continue
			}
			seen[n] = true
			missing = append(missing, name)
		}
		if len(missing) == 0 {
			continue
		}
		if err := s.tags.Associate(ctx, t.ID, missing); err != nil {
			return added, err
		}
		added += len(missing)
		s.logger.Info("repaired tag associations", slog.String("task_id", t.ID), slog.Any("tags", missing))
	}
	return added, nil
}
