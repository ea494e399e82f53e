// Package handler holds the registry of sync handlers and the built-in ones.
//
// A task names its handler by a stable identifier. The registry resolves the
// identifier to a statically typed engine.Handler once per task per run.
package handler

import (
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/tasksync/internal/engine"
)

// Registry maps handler identifiers to handlers.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]engine.Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]engine.Handler)}
}

// Default returns a registry holding the built-in handlers.
func Default() *Registry {
	r := NewRegistry()
	r.MustRegister(CopyName, Copy)
	r.MustRegister(StockActionsName, StockActions)
	return r
}

// Register adds h under name. Registering a name twice is an error.
func (r *Registry) Register(name string, h engine.Handler) error {
	if name == "" {
		return fmt.Errorf("register handler: empty name")
	}
	if h == nil {
		return fmt.Errorf("register handler %q: nil handler", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.handlers[name]; dup {
		return fmt.Errorf("register handler %q: already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// MustRegister is Register that panics on error. For package-level setup.
func (r *Registry) MustRegister(name string, h engine.Handler) {
	if err := r.Register(name, h); err != nil {
		panic(err)
	}
}

// Resolve implements engine.HandlerResolver.
func (r *Registry) Resolve(name string) (engine.Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("handler %q is not registered (known: %v)", name, r.namesLocked())
	}
	return h, nil
}

// Names returns the registered identifiers in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
