// Package component caches "the sub-object of type T attached to a
// container" lookups.
//
// A lookup is a scan over the container's sub-objects; the result (found or
// not) is kept in a versioned slot tagged with the container revision it was
// scanned at. Until the container is structurally mutated, lookups are one
// table probe and one integer comparison.
package component

import (
	"reflect"

	"github.com/unkn0wn-root/revcache"
	"github.com/unkn0wn-root/revcache/guard"
	"github.com/unkn0wn-root/revcache/store"
)

// Options tune a component cache. Zero fields take defaults.
type Options struct {
	Logger     revcache.Logger // if nil, NopLogger is used
	Hooks      revcache.Hooks  // if nil, NopHooks is used
	Stats      *revcache.Stats // if nil, a private Stats is used
	MaxDenseID int             // 0 => store.DefaultMaxDenseID
}

func (o Options) withDefaults() Options {
	o.Logger = revcache.Coalesce[revcache.Logger](o.Logger, revcache.NopLogger{})
	o.Hooks = revcache.Coalesce[revcache.Hooks](o.Hooks, revcache.NopHooks{})
	if o.Stats == nil {
		o.Stats = new(revcache.Stats)
	}
	return o
}

// OptionsFrom copies the table settings of cfg.
func OptionsFrom(cfg revcache.Config) Options {
	return Options{MaxDenseID: cfg.DenseLimit()}
}

// result is the cached outcome of one scan. A miss is cached too: "no T
// here" stays true until the container changes.
type result[T any] struct {
	v  T
	ok bool
}

// Cache finds the first sub-object of type T in containers, keyed by
// container id.
type Cache[T any] struct {
	name  string
	slots *store.Dense[guard.Slot[result[T]]]
	opts  Options
}

func New[T any](opts Options) *Cache[T] {
	opts = opts.withDefaults()
	return &Cache[T]{
		name:  "component " + reflect.TypeFor[T]().String(),
		slots: store.NewDense[guard.Slot[result[T]]](opts.MaxDenseID),
		opts:  opts,
	}
}

type cacheToken struct {
	kind string
	t    reflect.Type
}

// For returns the registry's cache for T, creating it with opts on first
// use. Later calls ignore opts.
func For[T any](r *revcache.Registry, opts Options) *Cache[T] {
	return revcache.TableFor(r, cacheToken{"component", reflect.TypeFor[T]()}, func() *Cache[T] {
		return New[T](opts)
	})
}

// Get returns the first sub-object of c that is a T.
func (cc *Cache[T]) Get(c Container) (T, bool) {
	id := c.ID()
	// Read the revision before scanning: a mutation racing the scan then
	// leaves the slot stale instead of valid with old contents.
	rev := c.Revision()
	if r, ok := store.Lookup[int64, result[T]](cc.slots, id, rev); ok {
		cc.opts.Stats.Hit()
		return r.v, r.ok
	}
	cc.opts.Stats.Miss()
	r := scan[T](c)
	cc.refresh(id, r, rev)
	return r.v, r.ok
}

// IsDirty reports whether the next Get for c rescans.
func (cc *Cache[T]) IsDirty(c Container) bool {
	s := cc.slots.Existing(c.ID())
	return s == nil || s.IsDirty(c.Revision())
}

func (cc *Cache[T]) refresh(id int64, r result[T], rev int64) {
	if !store.Update[int64, result[T]](cc.slots, id, r, rev, id) {
		cc.opts.Stats.Suppressed()
		cc.opts.Hooks.RefreshSuppressed(cc.name, id)
		return
	}
	cc.opts.Stats.Refresh()
}

// Reset invalidates every slot. Slots stay allocated.
func (cc *Cache[T]) Reset() {
	cc.slots.Range(func(_ int64, s *guard.Slot[result[T]]) bool {
		s.Reset()
		return true
	})
	cc.opts.Logger.Debug("component cache reset", revcache.Fields{"cache": cc.name})
}

func (cc *Cache[T]) Stats() *revcache.Stats { return cc.opts.Stats }

func scan[T any](c Container) result[T] {
	n := c.Len()
	for i := 0; i < n; i++ {
		if v, ok := c.At(i).(T); ok {
			return result[T]{v: v, ok: true}
		}
	}
	return result[T]{}
}
