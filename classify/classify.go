// Package classify turns free-text language-model output into a task
// priority or a list of short labels.
package classify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/GoCodeAlone/taskflow/internal/apperr"
	"github.com/GoCodeAlone/taskflow/provider"
	"github.com/GoCodeAlone/taskflow/task"
)

// Config controls retry behavior of the Gateway.
type Config struct {
	// Retries is how many rate-limited calls are retried before giving up.
	// Set it to the number of endpoints so each one is tried once.
	Retries int
	// MaxWait caps a single Retry-After wait. Zero means no cap.
	MaxWait time.Duration
}

// Gateway wraps a provider.Provider. It owns prompt construction, rate-limit
// retries and output parsing; callers only see labels and apperr kinds.
type Gateway struct {
	provider provider.Provider
	cfg      Config
	logger   *slog.Logger
}

// New returns a Gateway over p.
func New(p provider.Provider, cfg Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	return &Gateway{provider: p, cfg: cfg, logger: logger}
}

// ClassifyPriority asks the model for the task's priority. It fails with
// ClassificationUnavailable when the model cannot be reached and NoMatch when
// the answer names no known priority.
func (g *Gateway) ClassifyPriority(ctx context.Context, title, description string) (task.Priority, error) {
	const op = "classify.priority"
	raw, err := g.complete(ctx, op, prioritySystem, fmt.Sprintf(priorityPrompt, title, description))
	if err != nil {
		return task.PriorityMedium, err
	}
	p, ok := ExtractPriority(raw)
	if !ok {
		g.logger.Warn("priority not recognized", slog.String("response", raw))
		return task.PriorityMedium, apperr.E(apperr.NoMatch, op, "no priority label in %q", truncate(raw, 80))
	}
	return p, nil
}

// GenerateLabels asks the model for tags or sub-task titles. A reply that is
// not a JSON array of strings yields an empty slice and no error; only an
// unreachable model is reported, as ClassificationUnavailable.
func (g *Gateway) GenerateLabels(ctx context.Context, kind LabelKind, title, description string) ([]string, error) {
	op := "classify." + kind.String()
	system, user, err := kind.prompt(title, description)
	if err != nil {
		return nil, apperr.Wrap(apperr.ValidationFailure, op, err)
	}
	raw, err := g.complete(ctx, op, system, user)
	if err != nil {
		return nil, err
	}
	labels, err := ParseLabels(raw)
	if err != nil {
		g.logger.Warn("discarding unparsable labels", slog.String("kind", kind.String()),
			slog.String("response", truncate(raw, 200)), slog.Any("err", err))
		return []string{}, nil
	}
	return labels, nil
}

// complete sends one prompt, waiting out and retrying rate limits up to
// cfg.Retries times.
func (g *Gateway) complete(ctx context.Context, op, system, user string) (string, error) {
	msgs := []provider.Message{
		{Role: provider.RoleSystem, Content: system},
		{Role: provider.RoleUser, Content: user},
	}
	for attempt := 0; ; attempt++ {
		resp, err := g.provider.Chat(ctx, msgs)
		if err == nil {
			return resp.Content, nil
		}

		var rl *provider.RateLimitError
		if !errors.As(err, &rl) || attempt >= g.cfg.Retries {
			g.logger.Error("classification failed", slog.String("op", op),
				slog.String("provider", g.provider.Name()), slog.Any("err", err))
			return "", apperr.Wrap(apperr.ClassificationUnavailable, op, err)
		}

		wait := rl.RetryAfter
		if g.cfg.MaxWait > 0 && wait > g.cfg.MaxWait {
			wait = g.cfg.MaxWait
		}
		g.logger.Warn("rate limited, retrying", slog.String("op", op),
			slog.String("endpoint", rl.Endpoint), slog.Duration("retry_after", wait),
			slog.Int("attempt", attempt+1))
		if err := sleep(ctx, wait); err != nil {
			return "", apperr.Wrap(apperr.ClassificationUnavailable, op, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
