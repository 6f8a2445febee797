// Command worker serves the HTTP callback endpoint that Cloud Tasks pushes
// task invocations to.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camuthig/go-tasks-gcp/authn"
	"github.com/camuthig/go-tasks-gcp/health"
	"github.com/camuthig/go-tasks-gcp/internal/config"
	"github.com/camuthig/go-tasks-gcp/internal/observability/logging"
	"github.com/camuthig/go-tasks-gcp/internal/observability/middleware"
	"github.com/camuthig/go-tasks-gcp/internal/observability/tracing"
	"github.com/camuthig/go-tasks-gcp/task"
	"github.com/camuthig/go-tasks-gcp/worker"
)

var Version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	log.SetFlags(0)

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Setup(logLevel(), os.Getenv("LOG_FORMAT"))

	cfg, err := config.LoadWorker()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	provider, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName:    "tasks-worker",
		ServiceVersion: Version,
		Environment:    os.Getenv("ENV"),
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	provider.Install()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("failed to shut down tracing", slog.String("error", err.Error()))
		}
	}()

	registry := task.NewRegistry()
	registerTasks(registry)

	auth, err := authn.New(cfg.Authn)
	if err != nil {
		return fmt.Errorf("init authenticator: %w", err)
	}

	handler, err := worker.NewHandler(auth, registry)
	if err != nil {
		return fmt.Errorf("init handler: %w", err)
	}

	checker := health.NewChecker()
	checker.Register("task_registry", func(context.Context) error {
		if len(registry.Names()) == 0 {
			return errors.New("no tasks registered")
		}

		return nil
	})

	mux := http.NewServeMux()
	mux.Handle(cfg.Server.Path, middleware.PanicRecovery(
		middleware.RequestLogging(logging.Module("worker"))(handler),
	))
	mux.HandleFunc("/healthz", checker.LiveHandler)
	mux.HandleFunc("/readyz", checker.ReadyHandler)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting task worker",
			slog.String("addr", cfg.Server.Addr),
			slog.String("path", cfg.Server.Path),
			slog.String("version", Version),
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down task worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// registerTasks wires the callables this worker can execute. Applications
// embedding the worker package register their own.
func registerTasks(registry *task.Registry) {
	registry.MustRegister("tasks.log_message", func(ctx context.Context, args []any, kwargs map[string]any) error {
		slog.InfoContext(ctx, "log_message task executed",
			slog.Int("args", len(args)),
			slog.Int("kwargs", len(kwargs)),
		)

		return nil
	})
}

func logLevel() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
