package provider

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

type nopProvider struct {
	backend, model string
}

func (p *nopProvider) Name() string  { return p.backend }
func (p *nopProvider) Model() string { return p.model }
func (p *nopProvider) Complete(context.Context, string, string, float64, int) (string, error) {
	return "ok", nil
}
func (p *nopProvider) Close(context.Context) error { return nil }

func countingFactory(constructed *atomic.Int64) Factory {
	return func(backend, model string) Provider {
		constructed.Add(1)
		return &nopProvider{backend: backend, model: model}
	}
}

func TestPoolIdentity(t *testing.T) {
	t.Parallel()
	var constructed atomic.Int64
	pool := NewPool(countingFactory(&constructed))

	a := pool.Get("openai", "gpt-4o")
	b := pool.Get("openai", "gpt-4o")
	if a != b {
		t.Error("same key must return the identical instance")
	}
	c := pool.Get("openai", "gpt-4o-mini")
	if a == c {
		t.Error("different models must return distinct instances")
	}
	if got := constructed.Load(); got != 2 {
		t.Errorf("factory ran %d times, want 2", got)
	}
	if pool.Size() != 2 {
		t.Errorf("pool size = %d, want 2", pool.Size())
	}
}

func TestPoolConcurrentFirstAccess(t *testing.T) {
	t.Parallel()
	var constructed atomic.Int64
	pool := NewPool(countingFactory(&constructed))

	const goroutines = 32
	results := make([]Provider, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = pool.Get("openai", "gpt-4o")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if results[i] != results[0] {
			t.Fatal("concurrent Get returned different instances for one key")
		}
	}
	if got := constructed.Load(); got != 1 {
		t.Errorf("factory ran %d times under concurrent access, want 1", got)
	}
}

func TestPoolCloseAll(t *testing.T) {
	t.Parallel()
	pool := NewPool(nil)
	pool.Get("openai", "gpt-4o")
	pool.Get("anthropic", "claude-sonnet-4-5")
	if pool.Size() != 2 {
		t.Fatalf("pool size = %d, want 2", pool.Size())
	}
	if err := pool.CloseAll(context.Background()); err != nil {
		t.Fatalf("CloseAll: %v", err)
	}
	if pool.Size() != 0 {
		t.Errorf("pool size after CloseAll = %d, want 0", pool.Size())
	}
}

func TestDefaultFactoryKnownBackends(t *testing.T) {
	t.Parallel()
	tests := []struct {
		backend string
		want    string
	}{
		{"openai", "openai"},
		{"groq", "groq"},
		{"xai", "xai"},
		{"ollama", "ollama"},
		{"anthropic", "anthropic"},
	}
	for _, tt := range tests {
		p := DefaultFactory(tt.backend, "m")
		if p == nil {
			t.Fatalf("factory returned nil for %s", tt.backend)
		}
		if p.Name() != tt.want {
			t.Errorf("Name() = %q, want %q", p.Name(), tt.want)
		}
	}
}

func TestDefaultFactoryUnknownBackendFailsCalls(t *testing.T) {
	t.Parallel()
	p := DefaultFactory("mystery", "m")
	if _, err := p.Complete(context.Background(), "q", "", 0, 0); err == nil {
		t.Error("unknown backend should fail Complete, not panic or succeed")
	}
}
