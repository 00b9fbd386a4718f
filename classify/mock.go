package classify

import (
	"encoding/json"

	"github.com/GoCodeAlone/taskflow/provider/mock"
)

// NewMockProvider returns a mock provider that answers each of the gateway's
// prompts with a fixed reply: priority with the given label, tags and
// sub-tasks with the given lists encoded as JSON arrays.
func NewMockProvider(priority string, tags, subtasks []string) *mock.MockProvider {
	return mock.New().
		On(prioritySystem, priority).
		On(tagSystem, jsonArray(tags)).
		On(subtaskSystem, jsonArray(subtasks))
}

func jsonArray(labels []string) string {
	if labels == nil {
		labels = []string{}
	}
	data, _ := json.Marshal(labels)
	return string(data)
}
