package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestNewResourceAttributes(t *testing.T) {
	t.Parallel()

	res := newResource(Config{
		ServiceName:    "tasks-worker",
		ServiceVersion: "dev",
		Environment:    "test",
	})

	want := map[attribute.Key]string{
		"service.name":                "tasks-worker",
		"service.version":             "dev",
		"deployment.environment.name": "test",
	}

	for _, attr := range res.Attributes() {
		if expected, ok := want[attr.Key]; ok {
			if attr.Value.AsString() != expected {
				t.Errorf("%s = %q, want %q", attr.Key, attr.Value.AsString(), expected)
			}

			delete(want, attr.Key)
		}
	}

	if len(want) != 0 {
		t.Fatalf("resource is missing attributes: %v", want)
	}
}

func TestProviderShutdown(t *testing.T) {
	t.Parallel()

	provider, err := NewProvider(context.Background(), Config{ServiceName: "tasks-worker"})
	if err != nil {
		t.Fatalf("NewProvider() error: %v", err)
	}

	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
}
