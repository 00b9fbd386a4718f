package main

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/GoCodeAlone/taskflow/classify"
	"github.com/GoCodeAlone/taskflow/config"
	"github.com/GoCodeAlone/taskflow/internal/db"
	"github.com/GoCodeAlone/taskflow/internal/logging"
	"github.com/GoCodeAlone/taskflow/provider"
	"github.com/GoCodeAlone/taskflow/subtask"
	"github.com/GoCodeAlone/taskflow/tag"
	"github.com/GoCodeAlone/taskflow/task"
	"github.com/GoCodeAlone/taskflow/workflow"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg    *config.Config
	db     *sql.DB
	logger *slog.Logger
	svc    *workflow.Service
}

// newApp opens the database and wires stores, classifier and service.
func newApp(cfg *config.Config, logOut io.Writer) (*app, error) {
	logger := logging.New(cfg.Log, logOut)

	conn, err := db.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	tasks, err := task.NewSQLiteStore(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	tags, err := tag.NewSQLiteStore(conn, logger.With(slog.String("component", "tags")))
	if err != nil {
		conn.Close()
		return nil, err
	}

	p, retries, err := newProvider(cfg.Classifier)
	if err != nil {
		conn.Close()
		return nil, err
	}
	gw := classify.New(p, classify.Config{Retries: retries, MaxWait: cfg.Classifier.MaxWait},
		logger.With(slog.String("component", "classify")))
	subtasks := subtask.New(tasks, tags, gw, logger.With(slog.String("component", "subtask")))
	svc := workflow.New(tasks, tags, gw, subtasks, logger.With(slog.String("component", "workflow")))

	logger.Debug("app wired", slog.String("db", cfg.Storage.Path),
		slog.String("provider", p.Name()), slog.Int("retries", retries))
	return &app{cfg: cfg, db: conn, logger: logger, svc: svc}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// newProvider builds the configured language-model provider and the number
// of rate-limit retries that tries each endpoint once.
func newProvider(cfg config.ClassifierConfig) (provider.Provider, int, error) {
	switch cfg.Provider {
	case "mock":
		return classify.NewMockProvider(cfg.Mock.Priority, cfg.Mock.Tags, cfg.Mock.Subtasks), 0, nil
	case "openai":
		pool, err := provider.NewPool(cfg.Endpoints...)
		if err != nil {
			return nil, 0, err
		}
		return provider.NewOpenAIProvider(provider.OpenAIConfig{
			Pool:              pool,
			Model:             cfg.Model,
			MaxTokens:         cfg.MaxTokens,
			Timeout:           cfg.Timeout,
			DefaultRetryAfter: cfg.DefaultRetryAfter,
		}), pool.Len(), nil
	default:
		return nil, 0, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
