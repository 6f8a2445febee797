//go:build !gcloud

package tracing

import "context"

// NewProvider keeps the tracing surface available off-platform without
// exporting anything.
func NewProvider(_ context.Context, cfg Config) (*Provider, error) {
	return newNoopProvider(cfg), nil
}
