// Package member caches accessor thunks per reflective member and routes
// every access through the fast path when one exists.
//
// The first access to a member synthesizes its thunk (inline, or on a
// worker pool within a wait budget). A member whose thunk cannot be built
// is served by the by-name reflection path from then on; the result of an
// access never depends on which path served it.
package member

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/revcache"
	"github.com/unkn0wn-root/revcache/key"
	"github.com/unkn0wn-root/revcache/store"
	"github.com/unkn0wn-root/revcache/thunk"
	"github.com/unkn0wn-root/revcache/typename"
)

type Cache struct {
	opts  Options
	names *typename.Shadow
	once  revcache.LogOnce

	slots *store.AsyncTable[*thunk.Thunk]
	pop   *store.Populator[thunk.Member, *thunk.Thunk]

	lookups *store.Keyed[store.AsyncSlot[resolution]]
	resolve *store.Populator[query, resolution]
}

func New(opts Options) *Cache {
	opts = opts.withDefaults()
	c := &Cache{
		opts:    opts,
		names:   opts.Names.Shadow(),
		slots:   store.NewKeyed[store.AsyncSlot[*thunk.Thunk]](),
		lookups: store.NewKeyed[store.AsyncSlot[resolution]](),
	}
	c.pop = store.NewPopulator[thunk.Member, *thunk.Thunk](c.synthesize, store.PopulatorOptions[thunk.Member]{
		Mode:       opts.Mode,
		Pool:       opts.Pool,
		WaitBudget: opts.WaitBudget,
		OnFailure:  c.synthesisFailed,
		OnDrop:     c.dropped,
	})
	// Resolution is cheap; it always runs on the caller.
	c.resolve = store.NewPopulator[query, resolution](resolve, store.PopulatorOptions[query]{})
	return c
}

type cacheToken struct{}

// For returns the registry's member cache, creating it with opts on first
// use.
func For(r *revcache.Registry, opts Options) *Cache {
	return revcache.TableFor(r, cacheToken{}, func() *Cache { return New(opts) })
}

// qualified names a member with its fully qualified owner.
func (c *Cache) qualified(m thunk.Member) string {
	if m.Kind == key.KindConstructor || m.Owner == nil {
		return m.String()
	}
	return c.names.Name(m.Owner) + "." + m.Name
}

func (c *Cache) synthesize(m thunk.Member) (*thunk.Thunk, error) {
	th, err := thunk.Synthesize(m)
	if err != nil {
		return nil, err
	}
	c.opts.Stats.Synthesized()
	return th, nil
}

func (c *Cache) synthesisFailed(m thunk.Member, err error) {
	name := c.qualified(m)
	var se *thunk.SynthesisError
	if errors.Is(err, thunk.ErrUnsupported) && errors.As(err, &se) {
		c.opts.Stats.Unsupported()
		c.opts.Hooks.SynthesisUnsupported(name, se.Reason)
		c.once.Warn(c.opts.Logger, name, "member stays on slow path", revcache.Fields{
			"cache": c.opts.Name, "member": name, "reason": se.Reason,
		})
		return
	}
	c.opts.Stats.Failed()
	c.opts.Hooks.SynthesisFailed(name, err)
	c.once.Warn(c.opts.Logger, name, "thunk synthesis failed", revcache.Fields{
		"cache": c.opts.Name, "member": name, "err": err,
	})
}

func (c *Cache) dropped(m thunk.Member) {
	c.opts.Stats.Dropped()
	c.opts.Hooks.ProductionDropped(c.qualified(m))
}

// Thunk returns the fast path of m, or nil when m is (for now or for good)
// served by the slow path.
func (c *Cache) Thunk(m thunk.Member) *thunk.Thunk {
	return c.fast(c.slots.GetOrCreate(m.Key()), m)
}

func (c *Cache) fast(s *store.AsyncSlot[*thunk.Thunk], m thunk.Member) *thunk.Thunk {
	if th, ok := s.Value(); ok {
		c.opts.Stats.Hit()
		return th
	}
	if !s.Failed() {
		c.opts.Stats.Miss()
		if c.pop.TryPopulate(s, m) {
			th, _ := s.Value()
			return th
		}
	}
	c.opts.Stats.SlowPath()
	return nil
}

// Get reads field m of recv. Each call probes the slot table; see Bind.
func (c *Cache) Get(m thunk.Member, recv any) (any, error) {
	s := c.site(m)
	return s.Get(recv)
}

// Set writes v into field m of recv, a pointer to the owner.
func (c *Cache) Set(m thunk.Member, recv, v any) error {
	s := c.site(m)
	return s.Set(recv, v)
}

// Call invokes method m on recv. Pointer parameters given a plain value get
// a fresh pointer written back into args.
func (c *Cache) Call(m thunk.Member, recv any, args ...any) ([]any, error) {
	s := c.site(m)
	return s.Call(recv, args...)
}

// New runs constructor m.
func (c *Cache) New(m thunk.Member, args ...any) (any, error) {
	s := c.site(m)
	return s.New(args...)
}

// Warm synthesizes thunks for ms ahead of use, at most WarmLimit at a time.
// It returns how many members have a fast path afterwards.
func (c *Cache) Warm(ctx context.Context, ms ...thunk.Member) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.WarmLimit)
	fast := make([]bool, len(ms))
	for i, m := range ms {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			s := c.slots.GetOrCreate(m.Key())
			fast[i] = c.pop.TryPopulate(s, m)
			return nil
		})
	}
	err := g.Wait()
	n := 0
	for _, ok := range fast {
		if ok {
			n++
		}
	}
	return n, err
}

// Len returns the number of members ever looked up.
func (c *Cache) Len() int { return c.slots.Len() }

func (c *Cache) Stats() *revcache.Stats { return c.opts.Stats }

func (c *Cache) Report() revcache.Report { return c.opts.Stats.Report(c.opts.Name) }
