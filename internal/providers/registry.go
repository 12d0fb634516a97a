package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the providers configured for a run. Providers are registered
// explicitly at startup; lookups never instantiate anything.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under its Name. Registering the same name twice
// replaces the earlier provider.
func (r *Registry) Register(p Provider) {
	if p == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name, or an error when the name
// is unknown or the provider has no credentials. Callers that want to inspect
// unavailable providers use Lookup instead.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured (known: %v)", name, r.namesLocked())
	}
	if !p.Available() {
		return nil, fmt.Errorf("provider %q has no credentials configured", name)
	}
	return p, nil
}

// Lookup returns the provider registered under name regardless of whether it
// has credentials.
func (r *Registry) Lookup(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the sorted names of all registered providers, available or not.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every registered provider in name order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Provider, 0, len(r.providers))
	for _, name := range r.namesLocked() {
		out = append(out, r.providers[name])
	}
	return out
}
