package config

import (
	"errors"
	"testing"

	"github.com/camuthig/go-tasks-gcp/authn"
)

func setBackendEnv(t *testing.T) {
	t.Helper()

	t.Setenv("TASKS_GCP_PROJECT_ID", "test-project")
	t.Setenv("TASKS_GCP_LOCATION", "us-central1")
	t.Setenv("TASKS_DEFAULT_TARGET", "https://worker.example.com/tasks")
}

func TestLoadBackendDefaults(t *testing.T) {
	setBackendEnv(t)

	cfg, err := LoadBackend()
	if err != nil {
		t.Fatalf("LoadBackend() error: %v", err)
	}

	if cfg.ProjectID != "test-project" {
		t.Errorf("project = %q", cfg.ProjectID)
	}

	if len(cfg.Queues) != 1 || cfg.Queues[0].Name != "default" {
		t.Errorf("queues = %#v, want a single default queue", cfg.Queues)
	}

	if cfg.EnqueueOnCommit {
		t.Error("EnqueueOnCommit = true, want false by default")
	}
}

func TestLoadBackendQueueList(t *testing.T) {
	setBackendEnv(t)
	t.Setenv("TASKS_QUEUES", "default, emails ,reports")

	cfg, err := LoadBackend()
	if err != nil {
		t.Fatalf("LoadBackend() error: %v", err)
	}

	got := make([]string, 0, len(cfg.Queues))
	for _, q := range cfg.Queues {
		got = append(got, q.Name)
	}

	want := []string{"default", "emails", "reports"}
	if len(got) != len(want) {
		t.Fatalf("queues = %v, want %v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("queues = %v, want %v", got, want)
		}
	}
}

func TestLoadBackendOverrides(t *testing.T) {
	setBackendEnv(t)
	t.Setenv("TASKS_ENQUEUE_ON_COMMIT", "true")
	t.Setenv("TASKS_SERVICE_ACCOUNT", "tasks@test-project.iam.gserviceaccount.com")

	cfg, err := LoadBackend()
	if err != nil {
		t.Fatalf("LoadBackend() error: %v", err)
	}

	if !cfg.EnqueueOnCommit {
		t.Error("EnqueueOnCommit = false, want true")
	}

	if cfg.ServiceAccountEmail != "tasks@test-project.iam.gserviceaccount.com" {
		t.Errorf("service account = %q", cfg.ServiceAccountEmail)
	}
}

func TestLoadBackendErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T)
		wantErr error
	}{
		{
			name: "missing project id",
			setup: func(t *testing.T) {
				t.Setenv("TASKS_GCP_PROJECT_ID", "")
				t.Setenv("TASKS_GCP_LOCATION", "us-central1")
			},
			wantErr: ErrProjectIDMissing,
		},
		{
			name: "missing location",
			setup: func(t *testing.T) {
				t.Setenv("TASKS_GCP_PROJECT_ID", "test-project")
				t.Setenv("TASKS_GCP_LOCATION", "")
			},
			wantErr: ErrLocationMissing,
		},
		{
			name: "invalid enqueue on commit flag",
			setup: func(t *testing.T) {
				setBackendEnv(t)
				t.Setenv("TASKS_ENQUEUE_ON_COMMIT", "sometimes")
			},
			wantErr: ErrInvalidBool,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(t)

			if _, err := LoadBackend(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("LoadBackend() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadWorkerDefaults(t *testing.T) {
	// The worker side must not require the queue service settings.
	t.Setenv("TASKS_GCP_PROJECT_ID", "")
	t.Setenv("TASKS_GCP_LOCATION", "")
	t.Setenv("TASKS_DEFAULT_TARGET", "https://worker.example.com/tasks")

	cfg, err := LoadWorker()
	if err != nil {
		t.Fatalf("LoadWorker() error: %v", err)
	}

	if cfg.Authn.Mode != authn.ModeOIDC {
		t.Errorf("authn mode = %q, want %q", cfg.Authn.Mode, authn.ModeOIDC)
	}

	if cfg.Authn.Audience != "https://worker.example.com/tasks" {
		t.Errorf("audience = %q, want the default target", cfg.Authn.Audience)
	}

	if cfg.Server.Addr != ":8080" || cfg.Server.Path != "/tasks" {
		t.Errorf("server = %#v", cfg.Server)
	}
}

func TestLoadWorkerOverrides(t *testing.T) {
	t.Setenv("TASKS_AUTHN", "none")
	t.Setenv("TASKS_AUTHN_AUDIENCE", "https://other.example.com")
	t.Setenv("TASKS_SERVICE_ACCOUNT", "tasks@test-project.iam.gserviceaccount.com")
	t.Setenv("WORKER_ADDR", ":9090")

	cfg, err := LoadWorker()
	if err != nil {
		t.Fatalf("LoadWorker() error: %v", err)
	}

	if cfg.Authn.Mode != authn.ModeNone {
		t.Errorf("authn mode = %q, want %q", cfg.Authn.Mode, authn.ModeNone)
	}

	if cfg.Authn.Audience != "https://other.example.com" {
		t.Errorf("audience = %q", cfg.Authn.Audience)
	}

	if cfg.Authn.ServiceAccountEmail != "tasks@test-project.iam.gserviceaccount.com" {
		t.Errorf("service account = %q", cfg.Authn.ServiceAccountEmail)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoadWorkerUnknownAuthnMode(t *testing.T) {
	t.Setenv("TASKS_AUTHN", "mtls")

	if _, err := LoadWorker(); !errors.Is(err, ErrInvalidAuthnMode) {
		t.Fatalf("LoadWorker() error = %v, want %v", err, ErrInvalidAuthnMode)
	}
}
