// Package provider wraps the text-generation models that play the opponent
// and write the analysis.
package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Provider defines the interface for AI providers.
type Provider interface {
	// Name returns the provider's identifier.
	Name() string

	// DisplayName returns a human-friendly name.
	DisplayName() string

	// Generate sends a prompt and returns the response.
	Generate(ctx context.Context, prompt string) (string, error)

	// Available reports whether the provider is configured and usable.
	Available() bool
}

// ErrNoProvider is returned when no registered provider is usable.
var ErrNoProvider = errors.New("no provider available")

// Registry holds the configured providers in registration order, which is
// also the fallback order when the preferred provider is unusable.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Provider
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Provider)}
}

// Register adds p. Registering a name again replaces the provider but keeps
// its original position.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[p.Name()]; !ok {
		r.order = append(r.order, p.Name())
	}
	r.byName[p.Name()] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	p, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return p, nil
}

// List returns every provider in registration order.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, len(r.order))
	for i, name := range r.order {
		out[i] = r.byName[name]
	}
	return out
}

// Available returns the usable providers in registration order.
func (r *Registry) Available() []Provider {
	var out []Provider
	for _, p := range r.List() {
		if p.Available() {
			out = append(out, p)
		}
	}
	return out
}

// First returns preferred if it is usable, else the earliest usable one.
func (r *Registry) First(preferred string) (Provider, error) {
	if p, err := r.Get(preferred); err == nil && p.Available() {
		return p, nil
	}
	if available := r.Available(); len(available) > 0 {
		return available[0], nil
	}
	return nil, ErrNoProvider
}
