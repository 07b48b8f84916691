// Package asynchook moves hook calls off the cache's hot path.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SuppressedEvery: 100, // ~every 100th suppressed refresh
//	})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	mc := member.New(member.Options{Hooks: hooks})
package asynchook

import (
	"sync/atomic"

	"github.com/unkn0wn-root/revcache"
	"github.com/unkn0wn-root/revcache/store"
)

// Hooks forwards events to inner on a worker pool. Events that find the
// queue full are dropped and counted.
type Hooks struct {
	inner   revcache.Hooks
	pool    *store.Pool
	dropped atomic.Uint64
}

var _ revcache.Hooks = (*Hooks)(nil)

// New starts workers goroutines over a queue of qlen events.
// workers <= 0 => 1, qlen <= 0 => 1024.
func New(inner revcache.Hooks, workers, qlen int) *Hooks {
	return &Hooks{
		inner: revcache.Coalesce[revcache.Hooks](inner, revcache.NopHooks{}),
		pool:  store.NewPool(workers, qlen),
	}
}

// Close delivers queued events and stops the workers.
func (h *Hooks) Close() { h.pool.Close() }

// Dropped returns how many events were lost to a full queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	if !h.pool.Submit(f) {
		h.dropped.Add(1)
	}
}

func (h *Hooks) SynthesisUnsupported(m, reason string) {
	h.try(func() { h.inner.SynthesisUnsupported(m, reason) })
}

func (h *Hooks) SynthesisFailed(m string, err error) {
	h.try(func() { h.inner.SynthesisFailed(m, err) })
}

func (h *Hooks) RefreshSuppressed(cache string, id int64) {
	h.try(func() { h.inner.RefreshSuppressed(cache, id) })
}

func (h *Hooks) ProductionDropped(m string)  { h.try(func() { h.inner.ProductionDropped(m) }) }
func (h *Hooks) SingletonReset(cache string) { h.try(func() { h.inner.SingletonReset(cache) }) }
