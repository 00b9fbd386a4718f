package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/GoCodeAlone/taskflow/task"
)

var boldPattern = regexp.MustCompile(`\*\*(.*?)\*\*`)

const labelsSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {"type": "string"}
}`

var labelsValidator = jsonschema.MustCompileString("labels.schema.json", labelsSchema)

// ExtractPriority maps free text to a priority. The first **bold** token
// decides when present; otherwise the last word must be a priority label.
// A bold token that is not a label is a miss even if the last word is one.
func ExtractPriority(text string) (task.Priority, bool) {
	if m := boldPattern.FindStringSubmatch(text); m != nil {
		p, err := task.ParsePriority(m[1])
		return p, err == nil
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return task.PriorityMedium, false
	}
	last := strings.Trim(words[len(words)-1], `.,;:!'"`)
	p, err := task.ParsePriority(last)
	return p, err == nil
}

// ParseLabels decodes a JSON array of strings. Surrounding markdown code
// fences are ignored. Blank entries are dropped.
func ParseLabels(text string) ([]string, error) {
	text = stripFences(text)

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	if err := labelsValidator.Validate(doc); err != nil {
		return nil, fmt.Errorf("labels shape: %s", schemaMessage(err))
	}

	labels := []string{}
	for _, v := range doc.([]any) {
		if s := strings.TrimSpace(v.(string)); s != "" {
			labels = append(labels, s)
		}
	}
	return labels, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:] // drop language hint
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

// schemaMessage flattens a validation error to its first leaf cause.
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
	return ve.InstanceLocation + ": " + ve.Message
}
