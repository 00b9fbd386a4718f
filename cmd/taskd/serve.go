package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/taskflow/internal/version"
	"github.com/GoCodeAlone/taskflow/server"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the taskflow HTTP API.

Examples:
  taskd serve --config taskflow.yaml
  TASKFLOW_CLASSIFIER_PROVIDER=openai TASKFLOW_CLASSIFIER_ENDPOINTS=https://a,https://b taskd serve`,
		RunE: runServe,
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	cmd.Flags().String("db", "", "SQLite database path (overrides storage.path)")
	cmd.Flags().String("log-level", "", "log level: debug, info, warn, error")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(cfg, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	a.logger.Info("starting taskd", slog.String("version", version.Version),
		slog.String("commit", version.Commit))

	srv := server.New(*cfg, a.svc, version.Version, a.logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		a.logger.Error("server stop error", slog.Any("err", err))
		return err
	}
	a.logger.Info("shutdown complete")
	return nil
}
