// Package tag manages the tag vocabulary and the task-to-tag associations.
//
// Tags and associations live in their own tables with no foreign keys and no
// uniqueness constraint on names: concurrent first use of a name may create
// two tag rows, and associating the same name twice appends two rows. Readers
// tolerate both.
package tag

import (
	"context"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tag is a normalized label.
type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Association links one task to one tag.
type Association struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	TagID     string    `json:"tag_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Normalize returns the canonical form of a tag name.
func Normalize(name string) string {
	// Casers carry state, so one is built per call.
	return cases.Lower(language.Und).String(strings.TrimSpace(name))
}

// NormalizeAll normalizes names, dropping blanks and repeats while keeping
// the first occurrence order. The result is never nil.
func NormalizeAll(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		n := Normalize(name)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// Store manages tags and associations.
type Store interface {
	// ResolveOrCreate returns the ID of the tag named name, creating it on first use.
	ResolveOrCreate(ctx context.Context, name string) (string, error)

	// Associate appends one association per resolvable name. Names that fail
	// to resolve are skipped; only a failed association write is an error.
	Associate(ctx context.Context, taskID string, names []string) error

	// TagsForTask returns the names of the tags associated with a task.
	TagsForTask(ctx context.Context, taskID string) ([]string, error)

	// TaskIDsForTag returns the IDs of tasks associated with the named tag.
	TaskIDsForTag(ctx context.Context, name string) ([]string, error)

	// Associations returns the raw association rows of a task.
	Associations(ctx context.Context, taskID string) ([]Association, error)

	// All returns every tag.
	All(ctx context.Context) ([]Tag, error)
}
