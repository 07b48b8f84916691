// Package typename caches fully qualified type names.
//
// Central is the one authoritative cache, guarded by a single mutex around
// both the miss and the update. Call sites hold a Shadow: a lock-free mirror
// that asks Central on its first lookup of a type and answers from its own
// slot afterwards, until Central is reset.
package typename

import (
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/revcache/guard"
	"github.com/unkn0wn-root/revcache/store"
)

// Of returns the fully qualified name of t: "pkg/path.Name" for named types,
// built up structurally for pointers, slices, arrays and maps, and t.String()
// for the remaining unnamed types. A nil type has the empty name.
func Of(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Name() != "" {
		if p := t.PkgPath(); p != "" {
			return p + "." + t.Name()
		}
		return t.Name()
	}
	switch t.Kind() {
	case reflect.Pointer:
		return "*" + Of(t.Elem())
	case reflect.Slice:
		return "[]" + Of(t.Elem())
	case reflect.Array:
		return "[" + strconv.Itoa(t.Len()) + "]" + Of(t.Elem())
	case reflect.Map:
		return "map[" + Of(t.Key()) + "]" + Of(t.Elem())
	}
	return t.String()
}

// Central is the authoritative name cache.
type Central struct {
	mu    sync.Mutex
	names map[reflect.Type]string
	epoch atomic.Int64
}

func NewCentral() *Central {
	return &Central{names: make(map[reflect.Type]string)}
}

// Name returns the cached name of t, computing it on a miss.
func (c *Central) Name(t reflect.Type) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.names[t]; ok {
		return n
	}
	n := Of(t)
	c.names[t] = n
	return n
}

// Epoch identifies the current generation of the cache. Shadows compare
// their slots against it.
func (c *Central) Epoch() int64 { return c.epoch.Load() }

// Reset drops every name and invalidates every shadow entry.
func (c *Central) Reset() {
	c.mu.Lock()
	c.names = make(map[reflect.Type]string)
	c.epoch.Add(1)
	c.mu.Unlock()
}

func (c *Central) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.names)
}

// Shadow returns a new call-site mirror of c.
func (c *Central) Shadow() *Shadow {
	return &Shadow{c: c, slots: store.NewRef[reflect.Type, guard.Slot[string]]()}
}

// Shadow mirrors the entries of a Central that one call site uses. Once an
// entry is fetched it is served without touching Central's lock.
type Shadow struct {
	c     *Central
	slots *store.Ref[reflect.Type, guard.Slot[string]]
}

func (s *Shadow) Name(t reflect.Type) string {
	// epoch first: a reset racing the fetch leaves the entry stale
	ep := s.c.Epoch()
	if n, ok := store.Lookup[reflect.Type, string](s.slots, t, ep); ok {
		return n
	}
	n := s.c.Name(t)
	store.Update[reflect.Type, string](s.slots, t, n, ep, 0)
	return n
}

// Default is the process-wide central cache.
var Default = NewCentral()
