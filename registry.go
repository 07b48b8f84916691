package revcache

import "sync"

// Resetter is implemented by tables that can drop their state on a host
// reset (new game, save load).
type Resetter interface {
	Reset()
}

// Registry maps a shape token (usually a reflect.Type) to the cache table
// serving it. Tables are built on first use and live as long as the registry.
// Two registries never share tables; use one registry per host instance and
// Default only for genuinely process-wide caches.
type Registry struct {
	mu     sync.Mutex
	tables sync.Map // token -> table
}

// Default is the process-wide registry.
var Default = NewRegistry()

func NewRegistry() *Registry { return &Registry{} }

// TableFor returns the table registered under token, building it with mk
// on first use. mk runs at most once per token.
func TableFor[T any](r *Registry, token any, mk func() T) T {
	if v, ok := r.tables.Load(token); ok {
		return v.(T)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.tables.Load(token); ok {
		return v.(T)
	}
	t := mk()
	r.tables.Store(token, t)
	return t
}

// Len returns the number of registered tables.
func (r *Registry) Len() int {
	n := 0
	r.tables.Range(func(_, _ any) bool { n++; return true })
	return n
}

// Reset resets every registered table that implements Resetter. Tables
// stay registered.
func (r *Registry) Reset() {
	r.tables.Range(func(_, v any) bool {
		if rs, ok := v.(Resetter); ok {
			rs.Reset()
		}
		return true
	})
}
