// Package logging carries request-scoped attributes through context and
// configures the process-wide slog default.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Module labels log records with the subsystem that emitted them.
type Module string

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	moduleKey    contextKey = "module"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	id, ok := ctx.Value(requestIDKey).(string)
	if !ok {
		return ""
	}

	return id
}

func WithModule(ctx context.Context, module Module) context.Context {
	return context.WithValue(ctx, moduleKey, module)
}

func ModuleFromContext(ctx context.Context) Module {
	module, ok := ctx.Value(moduleKey).(Module)
	if !ok {
		return ""
	}

	return module
}

// ValidateAndExtractRequestID returns the given ID when it is a well-formed
// UUID and a freshly generated one otherwise, so downstream log correlation
// never depends on caller-supplied garbage.
func ValidateAndExtractRequestID(requestID string) string {
	if _, err := uuid.Parse(requestID); err == nil {
		return requestID
	}

	return uuid.NewString()
}

// Setup installs the process-wide slog default. Format "json" is meant for
// deployed environments; anything else falls back to the text handler.
func Setup(level slog.Level, format string) {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(&contextHandler{inner: handler}))
}

// contextHandler decorates records with the request ID and module carried
// in the context.
type contextHandler struct {
	inner slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, rec slog.Record) error {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		rec.AddAttrs(slog.String("request_id", requestID))
	}

	if module := ModuleFromContext(ctx); module != "" {
		rec.AddAttrs(slog.String("module", string(module)))
	}

	return h.inner.Handle(ctx, rec)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{inner: h.inner.WithGroup(name)}
}
