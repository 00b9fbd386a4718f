package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/GoCodeAlone/taskflow/internal/apperr"
	"github.com/GoCodeAlone/taskflow/tag"
	"github.com/GoCodeAlone/taskflow/task"
	"github.com/GoCodeAlone/taskflow/workflow"
)

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Tasks   TaskService
	Notify  Notifier // optional
	Logger  *slog.Logger
	Version string
	StartAt time.Time
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tasks", h.listTasks)
	mux.HandleFunc("POST /api/tasks", h.createTask)
	mux.HandleFunc("GET /api/tasks/{id}", h.getTask)
	mux.HandleFunc("PUT /api/tasks/{id}", h.updateTask)
	mux.HandleFunc("DELETE /api/tasks/{id}", h.deleteTask)
	mux.HandleFunc("POST /api/tasks/{id}/complete", h.completeTask)

	mux.HandleFunc("POST /api/tasks/{id}/generate-subtasks", h.generateSubtasks)
	mux.HandleFunc("GET /api/tasks/{id}/subtasks", h.listSubtasks)
	mux.HandleFunc("GET /api/subtasks/{id}/parent", h.getParent)

	mux.HandleFunc("GET /api/tags", h.listTags)

	mux.HandleFunc("GET /api/status", h.status)
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	ErrorCode     int         `json:"errorCode"`
	ErrorResponse string      `json:"errorResponse"`
	Kind          apperr.Kind `json:"kind"`
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code by its kind and writes it.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		h.logger().Error("request failed", slog.String("method", r.Method),
			slog.String("path", r.URL.Path), slog.Any("err", err))
	}
	writeJSON(w, status, errorResponse{ErrorCode: status, ErrorResponse: err.Error(), Kind: kind})
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func (h *Handlers) notify(eventType string, payload any) {
	if h.Notify != nil {
		h.Notify(eventType, payload)
	}
}

// --- Task handlers ---

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_tasks"
	q := r.URL.Query()
	query := workflow.ListQuery{
		Tag:      q.Get("tag"),
		Ordering: q.Get("ordering"),
	}

	if s := q.Get("priority"); s != "" {
		p, err := task.ParsePriority(s)
		if err != nil {
			h.writeError(w, r, apperr.E(apperr.ValidationFailure, op, "%v", err))
			return
		}
		query.Priority = &p
	}
	if s := q.Get("status"); s != "" {
		st, err := task.ParseStatus(s)
		if err != nil {
			h.writeError(w, r, apperr.E(apperr.ValidationFailure, op, "%v", err))
			return
		}
		query.Status = &st
	}
	if s := q.Get("completed"); s != "" {
		c, err := strconv.ParseBool(s)
		if err != nil {
			h.writeError(w, r, apperr.E(apperr.ValidationFailure, op, "completed must be a boolean, got %q", s))
			return
		}
		query.Completed = &c
	}

	res, err := h.Tasks.List(r.Context(), query)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if res.Tasks == nil {
		res.Tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeBody(w, r, createTaskValidator, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := h.Tasks.Create(r.Context(), req.toWorkflow())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.notify("task.created", t)
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	d, err := h.Tasks.Detail(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handlers) updateTask(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_task"
	id := r.PathValue("id")

	var req updateTaskRequest
	if err := decodeBody(w, r, updateTaskValidator, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		h.writeError(w, r, apperr.E(apperr.ValidationFailure, op, "%v", err))
		return
	}
	if err := h.Tasks.Update(r.Context(), id, patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	t, err := h.Tasks.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.notify("task.updated", t)
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) deleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Tasks.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.notify("task.deleted", map[string]string{"id": id})
	writeJSON(w, http.StatusOK, successResponse{Message: fmt.Sprintf("Task %s deleted successfully", id)})
}

func (h *Handlers) completeTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.Tasks.Complete(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.notify("task.completed", t)
	writeJSON(w, http.StatusOK, t)
}

// successResponse acknowledges an operation that has no resource to return.
type successResponse struct {
	Message string `json:"successResponse"`
}

// --- Sub-task handlers ---

// subtaskList is the body returned by the sub-task endpoints.
type subtaskList struct {
	ParentTaskID string       `json:"parent_task_id"`
	Subtasks     []*task.Task `json:"subtasks"`
	Count        int          `json:"count"`
}

func (h *Handlers) generateSubtasks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	subs, err := h.Tasks.GenerateSubtasks(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	body := subtaskList{ParentTaskID: id, Subtasks: subs, Count: len(subs)}
	h.notify("subtasks.generated", body)
	writeJSON(w, http.StatusOK, body)
}

func (h *Handlers) listSubtasks(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	subs, err := h.Tasks.Subtasks(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if subs == nil {
		subs = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, subtaskList{ParentTaskID: id, Subtasks: subs, Count: len(subs)})
}

func (h *Handlers) getParent(w http.ResponseWriter, r *http.Request) {
	parent, err := h.Tasks.Parent(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parent)
}

// --- Tag handlers ---

func (h *Handlers) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.Tasks.Tags(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if tags == nil {
		tags = []tag.Tag{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": tags, "count": len(tags)})
}

// --- Status ---

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	body := map[string]string{
		"status":  "ok",
		"version": h.Version,
	}
	if !h.StartAt.IsZero() {
		body["uptime"] = time.Since(h.StartAt).Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, body)
}

// StatusHandler returns the status handler function for external registration.
func (h *Handlers) StatusHandler() http.HandlerFunc {
	return h.status
}
