package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/GoCodeAlone/taskflow/internal/apperr"
	"github.com/GoCodeAlone/taskflow/task"
	"github.com/GoCodeAlone/taskflow/workflow"
)

const maxBodyBytes = 1 << 20

const createTaskSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["title"],
	"properties": {
		"requestId": {"type": "string"},
		"title": {"type": "string", "minLength": 1},
		"inputStr": {"type": "string"},
		"deadline": {"type": "string"}
	}
}`

const updateTaskSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"minProperties": 1,
	"additionalProperties": false,
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"inputStr": {"type": "string"},
		"deadline": {"type": "string"},
		"priority": {"enum": ["Low", "Medium", "High", "Critical"]},
		"status": {"enum": ["Pending", "In Progress", "Completed"]},
		"completed": {"type": "boolean"},
		"tags": {"type": "array", "items": {"type": "string"}}
	}
}`

var (
	createTaskValidator = jsonschema.MustCompileString("create_task.schema.json", createTaskSchema)
	updateTaskValidator = jsonschema.MustCompileString("update_task.schema.json", updateTaskSchema)
)

// createTaskRequest is the body accepted by POST /api/tasks.
type createTaskRequest struct {
	RequestID string `json:"requestId"`
	Title     string `json:"title"`
	InputStr  string `json:"inputStr"` // task description
	Deadline  string `json:"deadline"`
}

func (r createTaskRequest) toWorkflow() workflow.CreateRequest {
	return workflow.CreateRequest{
		RequestID:   r.RequestID,
		Title:       r.Title,
		Description: r.InputStr,
		Deadline:    r.Deadline,
	}
}

// updateTaskRequest is the body accepted by PUT /api/tasks/{id}.
type updateTaskRequest struct {
	Title     *string  `json:"title"`
	InputStr  *string  `json:"inputStr"`
	Deadline  *string  `json:"deadline"`
	Priority  *string  `json:"priority"`
	Status    *string  `json:"status"`
	Completed *bool    `json:"completed"`
	Tags      []string `json:"tags"`
}

func (r updateTaskRequest) toPatch() (task.Patch, error) {
	p := task.Patch{
		Title:       r.Title,
		Description: r.InputStr,
		Deadline:    r.Deadline,
		Completed:   r.Completed,
		Tags:        r.Tags,
	}
	if r.Priority != nil {
		v, err := task.ParsePriority(*r.Priority)
		if err != nil {
			return p, err
		}
		p.Priority = &v
	}
	if r.Status != nil {
		v, err := task.ParseStatus(*r.Status)
		if err != nil {
			return p, err
		}
		p.Status = &v
	}
	return p, nil
}

// decodeBody reads a JSON body, checks it against schema and decodes it into
// dst. Failures are ValidationFailure errors.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) error {
	const op = "api.decode"
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return apperr.E(apperr.ValidationFailure, op, "read body: %v", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return apperr.E(apperr.ValidationFailure, op, "invalid request body: %v", err)
	}
	if err := schema.Validate(doc); err != nil {
		return apperr.E(apperr.ValidationFailure, op, "invalid request body: %s", schemaMessage(err))
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperr.E(apperr.ValidationFailure, op, "invalid request body: %v", err)
	}
	return nil
}

func schemaMessage(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if ve.InstanceLocation == "" {
		return ve.Message
	}
	return fmt.Sprintf("%s: %s", ve.InstanceLocation, ve.Message)
}
