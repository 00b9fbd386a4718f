// Package subtask decomposes a task into AI-generated sub-tasks and rolls
// sub-task completion back up into the parent's status.
package subtask

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/taskflow/classify"
	"github.com/GoCodeAlone/taskflow/internal/apperr"
	"github.com/GoCodeAlone/taskflow/tag"
	"github.com/GoCodeAlone/taskflow/task"
)

// Labeler generates tag names or sub-task titles for a task.
type Labeler interface {
	GenerateLabels(ctx context.Context, kind classify.LabelKind, title, description string) ([]string, error)
}

// Orchestrator owns the NoSubtasks -> Generating -> Populated lifecycle of a
// parent task.
type Orchestrator struct {
	tasks   task.Store
	tags    tag.Store
	labeler Labeler
	logger  *slog.Logger
	locks   *keyedMutex
	now     func() time.Time
}

// New returns an Orchestrator over the given stores.
func New(tasks task.Store, tags tag.Store, labeler Labeler, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		tasks:   tasks,
		tags:    tags,
		labeler: labeler,
		logger:  logger,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
}

// Decompose generates and stores sub-tasks for parentID. It refuses with
// AlreadyDecomposed when the parent has any sub-task. Calls for the same
// parent are serialized within the process; a second process may still race.
func (o *Orchestrator) Decompose(ctx context.Context, parentID string) ([]*task.Task, error) {
	const op = "subtask.decompose"

	unlock := o.locks.Lock(parentID)
	defer unlock()

	parent, err := o.tasks.Get(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.IsSubtask {
		return nil, apperr.E(apperr.ValidationFailure, op, "task %s is a sub-task and cannot be decomposed", parentID)
	}
	existing, err := o.children(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, apperr.E(apperr.AlreadyDecomposed, op,
			"task %s already has %d sub-tasks", parentID, len(existing))
	}

	titles, err := o.labeler.GenerateLabels(ctx, classify.LabelSubtasks, parent.Title, parent.Description)
	if err != nil {
		return nil, err
	}
	titles = usable(titles)
	if len(titles) == 0 {
		return nil, apperr.E(apperr.ClassificationUnavailable, op, "no sub-task titles generated for task %s", parentID)
	}
	o.logger.Info("generated sub-task titles", slog.String("task_id", parentID), slog.Int("count", len(titles)))

	deadline := Deadline(parent.Deadline, o.now())
	created := make([]*task.Task, 0, len(titles))
	var lastErr error
	for i, title := range titles {
		st := task.New(uuid.NewString(), title, fmt.Sprintf("Sub-task %d: %s", i+1, title), deadline)
		st.ParentTaskID = parentID
		st.IsSubtask = true
		if err := o.tasks.Create(ctx, st); err != nil {
			o.logger.Error("create sub-task failed", slog.String("task_id", parentID),
				slog.String("title", title), slog.Any("err", err))
			lastErr = err
			continue
		}
		if names := o.generateTags(ctx, st); len(names) > 0 {
			st.Tags = names
			if err := o.tasks.Update(ctx, st.ID, task.Patch{Tags: names}); err != nil {
				o.logger.Error("store sub-task tags failed", slog.String("subtask_id", st.ID), slog.Any("err", err))
			}
			if err := o.tags.Associate(ctx, st.ID, names); err != nil {
				o.logger.Error("associate sub-task tags failed", slog.String("subtask_id", st.ID), slog.Any("err", err))
			}
		}
		o.logger.Info("created sub-task", slog.String("task_id", parentID), slog.String("subtask_id", st.ID))
		created = append(created, st)
	}
	if len(created) == 0 {
		return nil, apperr.Wrap(apperr.StoreFailure, op, lastErr)
	}
	return created, nil
}

// generateTags is best effort; any failure yields no tags.
func (o *Orchestrator) generateTags(ctx context.Context, st *task.Task) []string {
	names, err := o.labeler.GenerateLabels(ctx, classify.LabelTags, st.Title, st.Description)
	if err != nil {
		o.logger.Warn("sub-task tag generation failed", slog.String("subtask_id", st.ID), slog.Any("err", err))
		return []string{}
	}
	return tag.NormalizeAll(names)
}

// ListForParent returns the sub-tasks of parentID oldest first, with tags
// resolved from the association set.
func (o *Orchestrator) ListForParent(ctx context.Context, parentID string) ([]*task.Task, error) {
	subs, err := o.children(ctx, parentID)
	if err != nil {
		return nil, err
	}
	for _, st := range subs {
		names, err := o.tags.TagsForTask(ctx, st.ID)
		if err != nil {
			return nil, err
		}
		st.Tags = names
	}
	return subs, nil
}

// ParentOf returns the parent of subtaskID with its tags resolved. It returns
// nil without error when the task has no parent or the parent is gone.
func (o *Orchestrator) ParentOf(ctx context.Context, subtaskID string) (*task.Task, error) {
	st, err := o.tasks.Get(ctx, subtaskID)
	if err != nil {
		return nil, err
	}
	if st.ParentTaskID == "" {
		return nil, nil
	}
	parent, err := o.tasks.Get(ctx, st.ParentTaskID)
	if apperr.KindOf(err) == apperr.NotFound {
		o.logger.Warn("dangling parent reference", slog.String("subtask_id", subtaskID),
			slog.String("parent_task_id", st.ParentTaskID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	names, err := o.tags.TagsForTask(ctx, parent.ID)
	if err != nil {
		return nil, err
	}
	parent.Tags = names
	return parent, nil
}

// ReconcileParentProgress derives the parent's status from the share of
// completed sub-tasks and writes it. A parent without sub-tasks is left
// untouched and reported as NoopUpdate.
func (o *Orchestrator) ReconcileParentProgress(ctx context.Context, parentID string) error {
	const op = "subtask.reconcile"
	subs, err := o.children(ctx, parentID)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		return apperr.E(apperr.NoopUpdate, op, "task %s has no sub-tasks", parentID)
	}

	done := 0
	for _, st := range subs {
		if st.Completed {
			done++
		}
	}

	var p task.Patch
	status := task.StatusPending
	switch {
	case done == len(subs):
		status = task.StatusCompleted
		completed := true
		p.Completed = &completed
	case done > 0:
		status = task.StatusInProgress
	}
	p.Status = &status

	if err := o.tasks.Update(ctx, parentID, p); err != nil {
		return err
	}
	o.logger.Info("reconciled parent progress", slog.String("task_id", parentID),
		slog.Int("completed", done), slog.Int("total", len(subs)), slog.String("status", string(status)))
	return nil
}

func (o *Orchestrator) children(ctx context.Context, parentID string) ([]*task.Task, error) {
	return o.tasks.List(ctx, task.ListOptions{
		ParentTaskID: parentID,
		SubtasksOnly: true,
		Ordering:     "created_at",
	})
}

func usable(titles []string) []string {
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
