// Package api defines the REST API handlers and interfaces for the taskflow server.
package api

import (
	"context"

	"github.com/GoCodeAlone/taskflow/tag"
	"github.com/GoCodeAlone/taskflow/task"
	"github.com/GoCodeAlone/taskflow/workflow"
)

// TaskService is the interface the API uses to operate on tasks.
// Implemented by *workflow.Service.
type TaskService interface {
	Create(ctx context.Context, req workflow.CreateRequest) (*task.Task, error)
	Detail(ctx context.Context, id string) (*workflow.Detail, error)
	Get(ctx context.Context, id string) (*task.Task, error)
	List(ctx context.Context, q workflow.ListQuery) (*workflow.ListResult, error)
	Update(ctx context.Context, id string, p task.Patch) error
	Complete(ctx context.Context, id string) (*task.Task, error)
	Delete(ctx context.Context, id string) error
	GenerateSubtasks(ctx context.Context, id string) ([]*task.Task, error)
	Subtasks(ctx context.Context, id string) ([]*task.Task, error)
	Parent(ctx context.Context, id string) (*task.Task, error)
	Tags(ctx context.Context) ([]tag.Tag, error)
}

var _ TaskService = (*workflow.Service)(nil)

// Notifier receives task events for fan-out to connected clients.
type Notifier func(eventType string, payload any)
