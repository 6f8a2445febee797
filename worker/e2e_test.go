package worker_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/camuthig/go-tasks-gcp/authn"
	"github.com/camuthig/go-tasks-gcp/backend"
	"github.com/camuthig/go-tasks-gcp/internal/testutil"
	"github.com/camuthig/go-tasks-gcp/task"
	"github.com/camuthig/go-tasks-gcp/taskqueue"
	"github.com/camuthig/go-tasks-gcp/worker"
)

// capturingClient stands in for the queue service: it records the created
// task so the test can replay its HTTP request against the worker.
type capturingClient struct {
	requests []taskqueue.CreateTaskRequest
}

func (c *capturingClient) CreateTask(_ context.Context, req taskqueue.CreateTaskRequest) (*taskqueue.TaskResponse, error) {
	c.requests = append(c.requests, req)

	return &taskqueue.TaskResponse{
		Name:       req.QueuePath + "/tasks/" + req.TaskID,
		CreateTime: time.Now().UTC(),
	}, nil
}

func (c *capturingClient) Close() error {
	return nil
}

func TestEnqueueToCallbackRoundTrip(t *testing.T) {
	t.Parallel()

	const (
		audience       = "https://ex.com"
		serviceAccount = "tasks@test-project.iam.gserviceaccount.com"
	)

	issuer := testutil.NewOIDCIssuer(t)

	// Producer side.
	client := &capturingClient{}

	b, err := backend.New(&backend.Config{
		ProjectID:           "test-project",
		Location:            "us-central1",
		DefaultTarget:       audience,
		ServiceAccountEmail: serviceAccount,
		Queues:              []backend.QueueConfig{{Name: "default"}},
	}, client)
	if err != nil {
		t.Fatalf("backend.New() error: %v", err)
	}

	result, err := b.Enqueue(context.Background(), &task.Invocation{
		Name:   "send_email",
		Args:   []any{"a@example.com"},
		Kwargs: map[string]any{},
		Queue:  "default",
	})
	if err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	if result.Name == "" {
		t.Fatal("enqueue returned no task name")
	}

	if len(client.requests) != 1 {
		t.Fatalf("queue service received %d tasks, want 1", len(client.requests))
	}

	captured := client.requests[0]

	if captured.TargetURL != audience {
		t.Fatalf("target = %q, want %q", captured.TargetURL, audience)
	}

	if captured.OIDC == nil || captured.OIDC.Audience != audience || captured.OIDC.ServiceAccountEmail != serviceAccount {
		t.Fatalf("oidc descriptor = %#v", captured.OIDC)
	}

	// Consumer side.
	auth, err := authn.New(authn.Config{
		Mode:                authn.ModeOIDC,
		Audience:            audience,
		Issuer:              issuer.URL(),
		ServiceAccountEmail: serviceAccount,
		HTTPClient:          issuer.Client(),
	})
	if err != nil {
		t.Fatalf("authn.New() error: %v", err)
	}

	registry := task.NewRegistry()

	var delivered []string

	registry.MustRegister("send_email", func(_ context.Context, args []any, _ map[string]any) error {
		delivered = append(delivered, args[0].(string))
		return nil
	})

	handler, err := worker.NewHandler(auth, registry)
	if err != nil {
		t.Fatalf("worker.NewHandler() error: %v", err)
	}

	deliver := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, audience, bytes.NewReader(captured.Body))
		for name, value := range captured.Headers {
			req.Header.Set(name, value)
		}

		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		return rec
	}

	validToken := issuer.Sign(t, testutil.TokenOptions{
		Issuer:   issuer.URL(),
		Audience: audience,
		Email:    serviceAccount,
		Subject:  "1234567890",
		Expiry:   time.Now().Add(time.Hour),
	})

	expiredToken := issuer.Sign(t, testutil.TokenOptions{
		Issuer:   issuer.URL(),
		Audience: audience,
		Email:    serviceAccount,
		Subject:  "1234567890",
		Expiry:   time.Now().Add(-time.Minute),
	})

	// Expired token: rejected before any execution.
	if rec := deliver(expiredToken); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: status = %d, want 401", rec.Code)
	}

	if len(delivered) != 0 {
		t.Fatalf("task executed %d times for a rejected delivery, want 0", len(delivered))
	}

	// Valid token: the task runs with the original arguments.
	if rec := deliver(validToken); rec.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d, want 200", rec.Code)
	}

	if len(delivered) != 1 || delivered[0] != "a@example.com" {
		t.Fatalf("delivered = %v, want the original argument", delivered)
	}
}

func TestCallbackUnregisteredTask(t *testing.T) {
	t.Parallel()

	const audience = "https://ex.com"

	issuer := testutil.NewOIDCIssuer(t)

	auth, err := authn.New(authn.Config{
		Mode:       authn.ModeOIDC,
		Audience:   audience,
		Issuer:     issuer.URL(),
		HTTPClient: issuer.Client(),
	})
	if err != nil {
		t.Fatalf("authn.New() error: %v", err)
	}

	handler, err := worker.NewHandler(auth, task.NewRegistry())
	if err != nil {
		t.Fatalf("worker.NewHandler() error: %v", err)
	}

	token := issuer.Sign(t, testutil.TokenOptions{
		Issuer:   issuer.URL(),
		Audience: audience,
		Email:    "tasks@test-project.iam.gserviceaccount.com",
		Subject:  "1234567890",
		Expiry:   time.Now().Add(time.Hour),
	})

	body := []byte(`{"task_path": "not_registered", "args": [], "kwargs": {}, "queue_name": "default"}`)

	req := httptest.NewRequest(http.MethodPost, audience, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for an unregistered task", rec.Code)
	}
}
