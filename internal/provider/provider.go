// Package provider holds the HTTP clients that talk to model backends and
// the keyed pool that shares them across concurrent callers. Providers are
// stateless: one instance serves any number of concurrent Complete calls.
package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Provider is one (backend, model) pair's completion client. Transport
// failures are returned as errors, never panicked.
type Provider interface {
	// Name returns the backend name, e.g. "openai".
	Name() string

	// Model returns the model identifier within the backend.
	Model() string

	// Complete runs one completion. Cancellation and deadlines come from
	// ctx; implementations must be safe for concurrent use.
	Complete(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (string, error)

	// Close releases any held resources. Idempotent.
	Close(ctx context.Context) error
}

// Factory constructs a Provider for a (backend, model) pair. It must be
// total: unknown backends yield a provider whose calls fail, not a nil.
type Factory func(backend, model string) Provider

// sharedClient is reused across all HTTP providers. Per-call deadlines
// come from the caller's context, not a client timeout.
var sharedClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	},
}

// unknownProvider fails every call. Returned by the default factory for
// backends it has no client for, keeping pool lookups total.
type unknownProvider struct {
	backend, model string
}

func (u unknownProvider) Name() string  { return u.backend }
func (u unknownProvider) Model() string { return u.model }

func (u unknownProvider) Complete(context.Context, string, string, float64, int) (string, error) {
	return "", fmt.Errorf("no client for backend %q", u.backend)
}

func (u unknownProvider) Close(context.Context) error { return nil }
