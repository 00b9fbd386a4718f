package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/taskflow/internal/apperr"
	"github.com/GoCodeAlone/taskflow/provider"
	"github.com/GoCodeAlone/taskflow/provider/mock"
	"github.com/GoCodeAlone/taskflow/task"
)

func rateLimited() error {
	return &provider.RateLimitError{Endpoint: "test", RetryAfter: time.Millisecond}
}

func TestExtractPriority(t *testing.T) {
	tests := []struct {
		in     string
		want   task.Priority
		wantOK bool
	}{
		{"**High**", task.PriorityHigh, true},
		{"The priority is **Critical** because it blocks launch. Low effort.", task.PriorityCritical, true},
		{"I would say Low", task.PriorityLow, true},
		{"Priority: Medium.", task.PriorityMedium, true},
		// bold wins over the trailing word, even when it names no priority
		{"**Important** but High", task.PriorityMedium, false},
		{"Critical is not at the end", task.PriorityMedium, false},
		{"", task.PriorityMedium, false},
	}
	for _, tt := range tests {
		got, ok := ExtractPriority(tt.in)
		if ok != tt.wantOK {
			t.Errorf("ExtractPriority(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("ExtractPriority(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseLabels(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    []string
		wantErr bool
	}{
		{"array", `["Work", "Urgent"]`, []string{"Work", "Urgent"}, false},
		{"fenced", "```json\n[\"Health\"]\n```", []string{"Health"}, false},
		{"blank entries dropped", `["Work", " ", ""]`, []string{"Work"}, false},
		{"empty array", `[]`, []string{}, false},
		{"object", `{"tags": ["Work"]}`, nil, true},
		{"non-string element", `["Work", 3]`, nil, true},
		{"malformed", `["Work"`, nil, true},
		{"prose", `Work, Urgent`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLabels(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLabels error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") || got == nil {
				t.Errorf("ParseLabels = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestClassifyPriority(t *testing.T) {
	m := mock.New("**High**")
	g := New(m, Config{}, nil)

	got, err := g.ClassifyPriority(context.Background(), "Plan trip", "Plan a trip to the mountains")
	if err != nil {
		t.Fatalf("ClassifyPriority: %v", err)
	}
	if got != task.PriorityHigh {
		t.Errorf("priority = %v, want High", got)
	}

	calls := m.Calls()
	if len(calls) != 1 || len(calls[0]) != 2 {
		t.Fatalf("calls = %v", calls)
	}
	if calls[0][0].Role != provider.RoleSystem {
		t.Errorf("first message role = %s, want system", calls[0][0].Role)
	}
	if !strings.Contains(calls[0][1].Content, "Task Title: Plan trip, Description: Plan a trip to the mountains") {
		t.Errorf("prompt = %q", calls[0][1].Content)
	}
}

func TestClassifyPriority_NoMatch(t *testing.T) {
	g := New(mock.New("I am not sure."), Config{}, nil)
	_, err := g.ClassifyPriority(context.Background(), "t", "d")
	if !errors.Is(err, apperr.ErrNoMatch) {
		t.Fatalf("error = %v, want no match", err)
	}
}

func TestClassifyPriority_Unavailable(t *testing.T) {
	g := New(mock.New("High").FailWith(errors.New("connection refused")), Config{Retries: 3}, nil)
	_, err := g.ClassifyPriority(context.Background(), "t", "d")
	if !errors.Is(err, apperr.ErrClassificationUnavailable) {
		t.Fatalf("error = %v, want classification unavailable", err)
	}
}

func TestClassifyPriority_RetriesRateLimit(t *testing.T) {
	m := mock.New("Low").FailWith(rateLimited(), rateLimited())
	g := New(m, Config{Retries: 2}, nil)

	got, err := g.ClassifyPriority(context.Background(), "t", "d")
	if err != nil {
		t.Fatalf("ClassifyPriority: %v", err)
	}
	if got != task.PriorityLow {
		t.Errorf("priority = %v, want Low", got)
	}
	if n := len(m.Calls()); n != 3 {
		t.Errorf("provider called %d times, want 3", n)
	}
}

func TestClassifyPriority_RateLimitExhausted(t *testing.T) {
	m := mock.New("Low").FailWith(rateLimited(), rateLimited())
	g := New(m, Config{Retries: 1}, nil)

	_, err := g.ClassifyPriority(context.Background(), "t", "d")
	if !errors.Is(err, apperr.ErrClassificationUnavailable) {
		t.Fatalf("error = %v, want classification unavailable", err)
	}
	if n := len(m.Calls()); n != 2 {
		t.Errorf("provider called %d times, want 2", n)
	}
}

func TestClassifyPriority_WaitHonorsContext(t *testing.T) {
	m := mock.New("Low").FailWith(&provider.RateLimitError{Endpoint: "test", RetryAfter: time.Hour})
	g := New(m, Config{Retries: 1}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := g.ClassifyPriority(ctx, "t", "d")
	if !errors.Is(err, apperr.ErrClassificationUnavailable) {
		t.Fatalf("error = %v, want classification unavailable", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want wrapped deadline exceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("wait ignored context deadline")
	}
}

func TestGenerateLabels(t *testing.T) {
	m := mock.New(`["Work", "Urgent"]`)
	g := New(m, Config{}, nil)

	got, err := g.GenerateLabels(context.Background(), LabelTags, "Report", "Quarterly report")
	if err != nil {
		t.Fatalf("GenerateLabels: %v", err)
	}
	if strings.Join(got, ",") != "Work,Urgent" {
		t.Errorf("labels = %v", got)
	}
	if !strings.Contains(m.Calls()[0][1].Content, "Task: Report - Quarterly report") {
		t.Errorf("tag prompt = %q", m.Calls()[0][1].Content)
	}
}

func TestGenerateLabels_SubtaskPrompt(t *testing.T) {
	m := mock.New(`["a"]`)
	g := New(m, Config{}, nil)
	if _, err := g.GenerateLabels(context.Background(), LabelSubtasks, "Trip", "Mountains"); err != nil {
		t.Fatalf("GenerateLabels: %v", err)
	}
	if !strings.Contains(m.Calls()[0][1].Content, "Task: 'Trip - Mountains'") {
		t.Errorf("subtask prompt = %q", m.Calls()[0][1].Content)
	}
}

func TestGenerateLabels_SoftFailure(t *testing.T) {
	g := New(mock.New(`Sure! Here are some tags: Work`), Config{}, nil)
	got, err := g.GenerateLabels(context.Background(), LabelTags, "t", "d")
	if err != nil {
		t.Fatalf("GenerateLabels: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("labels = %#v, want empty slice", got)
	}
}

func TestGenerateLabels_Unavailable(t *testing.T) {
	g := New(mock.New().FailWith(errors.New("timeout")), Config{}, nil)
	_, err := g.GenerateLabels(context.Background(), LabelSubtasks, "t", "d")
	if !errors.Is(err, apperr.ErrClassificationUnavailable) {
		t.Fatalf("error = %v, want classification unavailable", err)
	}
}

func TestLabelKind_String(t *testing.T) {
	if LabelTags.String() != "tags" || LabelSubtasks.String() != "subtasks" {
		t.Errorf("String() = %s/%s", LabelTags, LabelSubtasks)
	}
	if _, _, err := LabelKind(9).prompt("t", "d"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestNewMockProvider_AnswersEachPrompt(t *testing.T) {
	titles := []string{"Research mountain destinations", "Check team availability",
		"Book accommodations", "Plan transportation", "Create itinerary"}
	g := New(NewMockProvider("Medium", []string{"Work", "Urgent"}, titles), Config{}, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		p, err := g.ClassifyPriority(ctx, "Plan trip", "Plan a trip to the mountains")
		if err != nil || p != task.PriorityMedium {
			t.Fatalf("ClassifyPriority = %v, %v", p, err)
		}
		tags, err := g.GenerateLabels(ctx, LabelTags, "Plan trip", "Plan a trip to the mountains")
		if err != nil || strings.Join(tags, ",") != "Work,Urgent" {
			t.Fatalf("tags = %v, %v", tags, err)
		}
		got, err := g.GenerateLabels(ctx, LabelSubtasks, "Plan trip", "Plan a trip to the mountains")
		if err != nil || strings.Join(got, "|") != strings.Join(titles, "|") {
			t.Fatalf("sub-tasks = %v, %v", got, err)
		}
	}
}

func TestNewMockProvider_EmptyLists(t *testing.T) {
	g := New(NewMockProvider("**Low**", nil, nil), Config{}, nil)
	tags, err := g.GenerateLabels(context.Background(), LabelTags, "t", "d")
	if err != nil || tags == nil || len(tags) != 0 {
		t.Errorf("tags = %#v, %v", tags, err)
	}
	if p, err := g.ClassifyPriority(context.Background(), "t", "d"); err != nil || p != task.PriorityLow {
		t.Errorf("priority = %v, %v", p, err)
	}
}
