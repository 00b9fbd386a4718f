package subtask

import (
	"strings"
	"time"
)

const (
	leadTime        = 2 * 24 * time.Hour
	defaultDuration = 7 * 24 * time.Hour
	naiveLayout     = "2006-01-02T15:04:05"
)

// layouts accepted for a parent deadline, tried in order. Zoned layouts come
// first so an offset is never silently dropped.
var layouts = []string{
	time.RFC3339,
	naiveLayout,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Deadline returns the sub-task deadline for a parent deadline: two days
// earlier when it parses, seven days after now otherwise. A naive parent
// deadline yields a naive result; zoned input keeps its offset.
func Deadline(parent string, now time.Time) string {
	s := strings.TrimSpace(parent)
	for i, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		t = t.Add(-leadTime)
		if i == 0 {
			return t.Format(time.RFC3339)
		}
		return t.Format(naiveLayout)
	}
	return now.UTC().Add(defaultDuration).Format(time.RFC3339)
}
