package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/camuthig/go-tasks-gcp/authn"
	"github.com/camuthig/go-tasks-gcp/task"
)

// denyAll rejects every request the way a failed token check would.
type denyAll struct{}

func (denyAll) Verify(context.Context, *http.Request) (*authn.Identity, error) {
	return nil, fmt.Errorf("%w: token expired", authn.ErrUnauthenticated)
}

// acceptAll answers with a fixed identity.
type acceptAll struct{}

func (acceptAll) Verify(context.Context, *http.Request) (*authn.Identity, error) {
	return &authn.Identity{Subject: "123", Email: "tasks@p.iam.gserviceaccount.com"}, nil
}

func newTestHandler(t *testing.T, auth authn.Authenticator, executions *int) *Handler {
	t.Helper()

	registry := task.NewRegistry()
	registry.MustRegister("send_email", func(_ context.Context, _ []any, _ map[string]any) error {
		*executions++
		return nil
	})
	registry.MustRegister("always_fails", func(_ context.Context, _ []any, _ map[string]any) error {
		*executions++
		return errors.New("smtp unavailable")
	})
	registry.MustRegister("panics", func(_ context.Context, _ []any, _ map[string]any) error {
		*executions++
		panic("boom")
	})

	handler, err := NewHandler(auth, registry)
	if err != nil {
		t.Fatalf("NewHandler() error: %v", err)
	}

	return handler
}

func postInvocation(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "https://worker.example.com/tasks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func validBody(name string) string {
	return fmt.Sprintf(`{"task_path": %q, "args": ["a@example.com"], "kwargs": {}, "queue_name": "default"}`, name)
}

func TestHandlerStatusMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name           string
		body           string
		wantStatus     int
		wantExecutions int
	}{
		{
			name:           "success",
			body:           validBody("send_email"),
			wantStatus:     http.StatusOK,
			wantExecutions: 1,
		},
		{
			name:           "malformed body",
			body:           "not-json",
			wantStatus:     http.StatusBadRequest,
			wantExecutions: 0,
		},
		{
			name:           "missing fields",
			body:           `{"task_path": "send_email"}`,
			wantStatus:     http.StatusBadRequest,
			wantExecutions: 0,
		},
		{
			name:           "unregistered task",
			body:           validBody("not_registered"),
			wantStatus:     http.StatusBadRequest,
			wantExecutions: 0,
		},
		{
			name:           "task returns error",
			body:           validBody("always_fails"),
			wantStatus:     http.StatusInternalServerError,
			wantExecutions: 1,
		},
		{
			name:           "task panics",
			body:           validBody("panics"),
			wantStatus:     http.StatusInternalServerError,
			wantExecutions: 1,
		},
	}

	for _, tt := range testCases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var executions int

			handler := newTestHandler(t, acceptAll{}, &executions)

			rec := postInvocation(handler, tt.body)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			if executions != tt.wantExecutions {
				t.Fatalf("task executed %d times, want %d", executions, tt.wantExecutions)
			}
		})
	}
}

func TestHandlerRejectsUnauthenticated(t *testing.T) {
	t.Parallel()

	var executions int

	handler := newTestHandler(t, denyAll{}, &executions)

	rec := postInvocation(handler, validBody("send_email"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	if executions != 0 {
		t.Fatalf("task executed %d times for an unauthenticated request, want 0", executions)
	}
}

func TestHandlerRejectsNonPost(t *testing.T) {
	t.Parallel()

	var executions int

	handler := newTestHandler(t, acceptAll{}, &executions)

	req := httptest.NewRequest(http.MethodGet, "https://worker.example.com/tasks", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}

	if executions != 0 {
		t.Fatalf("task executed %d times, want 0", executions)
	}
}

func TestHandlerExposesDeliveryAndIdentity(t *testing.T) {
	t.Parallel()

	registry := task.NewRegistry()

	var gotDelivery Delivery

	var gotIdentity *authn.Identity

	registry.MustRegister("inspect", func(ctx context.Context, _ []any, _ map[string]any) error {
		gotDelivery, _ = DeliveryFromContext(ctx)
		gotIdentity, _ = IdentityFromContext(ctx)

		return nil
	})

	handler, err := NewHandler(acceptAll{}, registry)
	if err != nil {
		t.Fatalf("NewHandler() error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "https://worker.example.com/tasks", strings.NewReader(validBody("inspect")))
	req.Header.Set("X-CloudTasks-TaskName", "projects/p/locations/l/queues/default/tasks/task-1")
	req.Header.Set("X-CloudTasks-QueueName", "default")
	req.Header.Set("X-CloudTasks-TaskRetryCount", "2")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if gotDelivery.TaskName != "projects/p/locations/l/queues/default/tasks/task-1" {
		t.Fatalf("delivery task name = %q", gotDelivery.TaskName)
	}

	if gotDelivery.QueueName != "default" {
		t.Fatalf("delivery queue = %q, want default", gotDelivery.QueueName)
	}

	if gotDelivery.Attempt() != 3 {
		t.Fatalf("attempt = %d, want 3", gotDelivery.Attempt())
	}

	if gotIdentity == nil || gotIdentity.Email != "tasks@p.iam.gserviceaccount.com" {
		t.Fatalf("identity = %#v, want authenticated service account", gotIdentity)
	}
}

func TestNewHandlerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(nil, task.NewRegistry()); err == nil {
		t.Fatal("NewHandler() accepted a nil authenticator")
	}

	if _, err := NewHandler(acceptAll{}, nil); err == nil {
		t.Fatal("NewHandler() accepted a nil registry")
	}
}
