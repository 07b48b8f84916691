// Package sloghooks logs cache events through log/slog.
package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/revcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SuppressedEvery uint64
	DroppedEvery    uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	suppressedCtr atomic.Uint64
	droppedCtr    atomic.Uint64
}

var _ revcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) SynthesisUnsupported(member, reason string) {
	if h.l == nil {
		return
	}
	h.l.Info("revcache.synthesis_unsupported",
		"member", member,
		"reason", reason)
}

func (h *Hooks) SynthesisFailed(member string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("revcache.synthesis_failed",
		"member", member,
		"err", err)
}

func (h *Hooks) RefreshSuppressed(cache string, ownerID int64) {
	if h.l == nil || !sample(h.opts.SuppressedEvery, &h.suppressedCtr) {
		return
	}
	h.l.Debug("revcache.refresh_suppressed",
		"cache", cache,
		"owner_id", ownerID)
}

func (h *Hooks) ProductionDropped(member string) {
	if h.l == nil || !sample(h.opts.DroppedEvery, &h.droppedCtr) {
		return
	}
	h.l.Warn("revcache.production_dropped",
		"member", member)
}

func (h *Hooks) SingletonReset(cache string) {
	if h.l == nil {
		return
	}
	h.l.Info("revcache.singleton_reset",
		"cache", cache)
}
