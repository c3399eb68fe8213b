package provider

import (
	"context"
	"errors"
	"sync"
)

// Pool caches one Provider per (backend, model) pair. Construction is
// idempotent under concurrent first access: the first caller's instance
// wins and every later caller receives it.
type Pool struct {
	factory Factory

	mu        sync.Mutex
	providers map[string]Provider
}

// NewPool builds a pool around factory. A nil factory uses the default
// HTTP client factory.
func NewPool(factory Factory) *Pool {
	if factory == nil {
		factory = DefaultFactory
	}
	return &Pool{
		factory:   factory,
		providers: make(map[string]Provider),
	}
}

// Get returns the cached provider for the pair, constructing it on first
// use. Never fails: backend validity is the routing resolver's concern.
func (p *Pool) Get(backend, model string) Provider {
	key := backend + "/" + model
	p.mu.Lock()
	defer p.mu.Unlock()
	if prov, ok := p.providers[key]; ok {
		return prov
	}
	prov := p.factory(backend, model)
	p.providers[key] = prov
	return prov
}

// Size returns the number of cached providers.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.providers)
}

// CloseAll closes every cached provider and clears the cache. Intended
// for shutdown; not safe to call concurrently with Get.
func (p *Pool) CloseAll(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	for key, prov := range p.providers {
		if err := prov.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		delete(p.providers, key)
	}
	return errors.Join(errs...)
}
