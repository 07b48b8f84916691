package component

import (
	"reflect"

	"github.com/unkn0wn-root/revcache"
	"github.com/unkn0wn-root/revcache/store"
)

// Global caches the T lookup on a process-wide container (the component list
// of the current world). One slot serves every container instance that takes
// that role over the process lifetime, so a hit also requires the container
// to be the one the slot was filled from.
type Global[T any] struct {
	name string
	slot store.Singleton[Container, result[T]]
	opts Options
}

func NewGlobal[T any](opts Options) *Global[T] {
	return &Global[T]{
		name: "global component " + reflect.TypeFor[T]().String(),
		opts: opts.withDefaults(),
	}
}

// GlobalFor returns the registry's singleton cache for T.
func GlobalFor[T any](r *revcache.Registry, opts Options) *Global[T] {
	return revcache.TableFor(r, cacheToken{"global", reflect.TypeFor[T]()}, func() *Global[T] {
		return NewGlobal[T](opts)
	})
}

// Get returns the first sub-object of c that is a T. c must be comparable
// (a pointer, in practice).
func (g *Global[T]) Get(c Container) (T, bool) {
	rev := c.Revision()
	if r, ok := g.slot.Get(c, rev); ok {
		g.opts.Stats.Hit()
		return r.v, r.ok
	}
	g.opts.Stats.Miss()
	r := scan[T](c)
	ok, replaced := g.slot.Refresh(c, c.ID(), r, rev)
	if !ok {
		g.opts.Stats.Suppressed()
		g.opts.Hooks.RefreshSuppressed(g.name, c.ID())
		return r.v, r.ok
	}
	g.opts.Stats.Refresh()
	if replaced {
		g.opts.Hooks.SingletonReset(g.name)
		g.opts.Logger.Info("singleton owner replaced", revcache.Fields{"cache": g.name, "id": c.ID()})
	}
	return r.v, r.ok
}

// IsDirty reports whether the next Get for c rescans.
func (g *Global[T]) IsDirty(c Container) bool { return g.slot.IsDirty(c, c.Revision()) }

// Reset empties the slot. The next Get rescans whatever container it is given.
func (g *Global[T]) Reset() { g.slot.Reset() }
