package classify

import "fmt"

// TagVocabulary is the closed set of tags the model is asked to pick from.
var TagVocabulary = []string{"Work", "Personal", "Health", "Finance", "Learning", "Urgent", "Shopping"}

const (
	prioritySystem = "You are an expert in the task priority analyzer and you always give 100% accurate " +
		"results for the given task, after analysing it."
	priorityPrompt = "Analyze the following task and classify its priority as 'Low', 'Medium', 'High', " +
		"or 'Critical'. Task Title: %s, Description: %s. Return only the priority level, " +
		"for the above mentioned task."

	tagSystem = "You are an expert in task categorization. Return only a valid JSON array of strings " +
		"containing the most relevant tags from the provided list."
	tagPrompt = "Based on the following task, generate up to 3 relevant one-word tags from the " +
		"following list: [Work, Personal, Health, Finance, Learning, Urgent, Shopping]. " +
		"Return them as a JSON array of strings. Task: %s - %s"

	subtaskSystem = "You are an expert project manager. Return only a valid JSON array of strings " +
		"containing actionable sub-task titles. Each sub-task should be clear and specific."
	subtaskPrompt = "You are a project manager. Break down the following task into a list of smaller, " +
		"actionable sub-tasks. Return the result as a JSON array of simple task titles. Each sub-task " +
		"should be specific, measurable, and achievable. Task: '%s - %s'"
)

// LabelKind selects the prompt GenerateLabels sends.
type LabelKind int

const (
	LabelTags LabelKind = iota
	LabelSubtasks
)

func (k LabelKind) String() string {
	switch k {
	case LabelTags:
		return "tags"
	case LabelSubtasks:
		return "subtasks"
	}
	return fmt.Sprintf("LabelKind(%d)", int(k))
}

// prompt returns the system and user text for a label request.
func (k LabelKind) prompt(title, description string) (system, user string, err error) {
	switch k {
	case LabelTags:
		return tagSystem, fmt.Sprintf(tagPrompt, title, description), nil
	case LabelSubtasks:
		return subtaskSystem, fmt.Sprintf(subtaskPrompt, title, description), nil
	}
	return "", "", fmt.Errorf("unknown label kind %d", int(k))
}
