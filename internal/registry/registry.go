package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/vk/lazyflow/internal/op"
)

// Module is the interface that all function modules implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds the marked functions available to a servant.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]*op.Func
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{funcs: make(map[string]*op.Func)}
}

// Load registers every module.
func (r *Registry) Load(modules ...Module) *Registry {
	for _, m := range modules {
		m.Register(r)
	}
	return r
}

// Register adds f under its identity. Registering the same identity twice is
// a programming error.
func (r *Registry) Register(f *op.Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := f.Identity()
	if _, exists := r.funcs[id]; exists {
		panic(fmt.Sprintf("function with identity '%s' already registered", id))
	}
	slog.Debug("Registering function.", "identity", id)
	r.funcs[id] = f
}

// Lookup returns the function registered under identity.
func (r *Registry) Lookup(identity string) (*op.Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.funcs[identity]
	return f, ok
}

// Identities returns the registered identities in sorted order.
func (r *Registry) Identities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.funcs))
	for id := range r.funcs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.funcs)
}
