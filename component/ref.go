package component

import (
	"reflect"

	"github.com/unkn0wn-root/revcache/guard"
	"github.com/unkn0wn-root/revcache/store"
)

// ByRef is Cache keyed by container identity instead of container id, for
// containers whose ids are large or sparse. The id still decides whether a
// result may be stored.
type ByRef[T any] struct {
	name  string
	slots *store.Ref[Container, guard.Slot[result[T]]]
	opts  Options
}

func NewByRef[T any](opts Options) *ByRef[T] {
	return &ByRef[T]{
		name:  "component(ref) " + reflect.TypeFor[T]().String(),
		slots: store.NewRef[Container, guard.Slot[result[T]]](),
		opts:  opts.withDefaults(),
	}
}

func (b *ByRef[T]) Get(c Container) (T, bool) {
	rev := c.Revision()
	if r, ok := store.Lookup[Container, result[T]](b.slots, c, rev); ok {
		b.opts.Stats.Hit()
		return r.v, r.ok
	}
	b.opts.Stats.Miss()
	r := scan[T](c)
	if !store.Update[Container, result[T]](b.slots, c, r, rev, c.ID()) {
		b.opts.Stats.Suppressed()
		b.opts.Hooks.RefreshSuppressed(b.name, c.ID())
		return r.v, r.ok
	}
	b.opts.Stats.Refresh()
	return r.v, r.ok
}

// Forget drops the slot of a destroyed container.
func (b *ByRef[T]) Forget(c Container) { b.slots.Forget(c) }
