// Command enqueue submits a single task invocation to Cloud Tasks. It is
// meant for smoke-testing a deployed worker.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/camuthig/go-tasks-gcp/backend"
	"github.com/camuthig/go-tasks-gcp/internal/config"
	"github.com/camuthig/go-tasks-gcp/task"
	"github.com/camuthig/go-tasks-gcp/taskqueue"
)

func main() {
	log.SetFlags(0)

	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var (
		name       = flag.String("task", "", "registered task path to invoke")
		queue      = flag.String("queue", "default", "queue to submit to")
		argsJSON   = flag.String("args", "[]", "positional arguments as a JSON array")
		kwargsJSON = flag.String("kwargs", "{}", "keyword arguments as a JSON object")
		scheduleAt = flag.String("schedule-at", "", "optional RFC 3339 delivery time")
		dryRun     = flag.Bool("dry-run", false, "build the task without contacting Cloud Tasks")
	)

	flag.Parse()

	if *name == "" {
		return fmt.Errorf("the -task flag is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadBackend()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	inv := &task.Invocation{
		Name:  *name,
		Queue: *queue,
	}

	if err := json.Unmarshal([]byte(*argsJSON), &inv.Args); err != nil {
		return fmt.Errorf("parse -args: %w", err)
	}

	if err := json.Unmarshal([]byte(*kwargsJSON), &inv.Kwargs); err != nil {
		return fmt.Errorf("parse -kwargs: %w", err)
	}

	if *scheduleAt != "" {
		at, err := time.Parse(time.RFC3339, *scheduleAt)
		if err != nil {
			return fmt.Errorf("parse -schedule-at: %w", err)
		}

		inv.ScheduleAt = &at
	}

	client, err := newClient(ctx, cfg, *dryRun)
	if err != nil {
		return fmt.Errorf("init queue client: %w", err)
	}

	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("failed to close queue client: %v", err)
		}
	}()

	b, err := backend.New(cfg, client)
	if err != nil {
		return fmt.Errorf("init backend: %w", err)
	}

	result, err := b.Enqueue(ctx, inv)
	if err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}

	log.Printf("enqueued %s as %s", result.ID, result.Name)

	return nil
}

func newClient(ctx context.Context, cfg *backend.Config, dryRun bool) (taskqueue.Client, error) {
	if dryRun {
		return taskqueue.NewNoopClient(), nil
	}

	return taskqueue.NewCloudTasksClient(ctx, taskqueue.CloudTasksClientConfig{
		CredentialsFile: cfg.CredentialsFile,
	})
}
