package component

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/revcache/revision"
)

// Container is what the caches need from a composite object: a stable
// identity and an ordered list of sub-objects whose revision grows on every
// add or remove.
//
// A negative ID means the object is not fully constructed (or is being
// destroyed); nothing is cached for it.
type Container interface {
	ID() int64
	Revision() int64
	Len() int
	At(i int) any
}

// List is a ready-made Container for hosts without one.
type List struct {
	id  atomic.Int64
	rev revision.Counter

	mu    sync.RWMutex
	items []any
}

var _ Container = (*List)(nil)

// NewList creates an empty list at revision 0.
func NewList(id int64) *List {
	l := &List{}
	l.id.Store(id)
	return l
}

func (l *List) ID() int64 { return l.id.Load() }

// SetID assigns the final identity of a list created with a provisional one.
func (l *List) SetID(id int64) { l.id.Store(id) }

func (l *List) Revision() int64 { return l.rev.Load() }

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// At returns the i-th sub-object, or nil when i is out of range (the list
// shrank since Len was read).
func (l *List) At(i int) any {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.items) {
		return nil
	}
	return l.items[i]
}

// Add appends c and bumps the revision.
func (l *List) Add(c any) {
	l.mu.Lock()
	l.items = append(l.items, c)
	l.mu.Unlock()
	l.rev.Bump()
}

// Remove deletes the first occurrence of c and bumps the revision. It
// reports whether c was present. Sub-objects are compared with ==, so they
// must be comparable (pointers, in practice).
func (l *List) Remove(c any) bool {
	l.mu.Lock()
	i := -1
	for j, it := range l.items {
		if it == c {
			i = j
			break
		}
	}
	if i < 0 {
		l.mu.Unlock()
		return false
	}
	l.items = append(l.items[:i:i], l.items[i+1:]...)
	l.mu.Unlock()
	l.rev.Bump()
	return true
}
