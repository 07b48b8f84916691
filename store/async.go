package store

import (
	"fmt"
	"sync/atomic"
	"time"
)

// AsyncSlot holds a value that is expensive to produce and never changes once
// produced (an accessor thunk for a member). There is no revision: the only
// state is "not yet computed". A slot whose production failed stays dirty and
// is never produced again.
type AsyncSlot[V any] struct {
	done   atomic.Pointer[V]
	flight atomic.Pointer[production]
	failed atomic.Bool
}

type production struct {
	ch chan struct{}
}

// Dirty reports whether no completed value is present.
func (s *AsyncSlot[V]) Dirty() bool { return s.done.Load() == nil }

// Value returns the completed value.
func (s *AsyncSlot[V]) Value() (V, bool) {
	if p := s.done.Load(); p != nil {
		return *p, true
	}
	var zero V
	return zero, false
}

// Failed reports whether production failed for good.
func (s *AsyncSlot[V]) Failed() bool { return s.failed.Load() }

// complete publishes v unless another producer got there first. Duplicate
// productions are equivalent, so the first one stays.
func (s *AsyncSlot[V]) complete(v V) bool {
	return s.done.CompareAndSwap(nil, &v)
}

// AsyncTable is the composite-keyed table of async slots.
type AsyncTable[V any] = Keyed[AsyncSlot[V]]

// Producer derives the value of a key. It must be a pure function of the key.
// A non-nil error means "no fast path for this key".
type Producer[K any, V any] func(K) (V, error)

// Mode selects where production runs.
type Mode uint8

const (
	// Inline produces on the calling goroutine.
	Inline Mode = iota
	// Background produces on a worker pool.
	Background
)

// PopulatorOptions tune a Populator. The zero value produces inline.
type PopulatorOptions[K any] struct {
	Mode Mode
	// Pool runs background productions; required for Background.
	Pool *Pool
	// WaitBudget bounds how long a caller waits for a background production.
	// 0 => do not wait: use the value only if it is already there.
	WaitBudget time.Duration
	// OnFailure is called once per slot whose production failed.
	OnFailure func(k K, err error)
	// OnDrop is called when the pool refused a production.
	OnDrop func(k K)
}

// Populator fills async slots with a Producer.
type Populator[K any, V any] struct {
	produce Producer[K, V]
	opts    PopulatorOptions[K]
}

func NewPopulator[K any, V any](produce Producer[K, V], opts PopulatorOptions[K]) *Populator[K, V] {
	if opts.Mode == Background && opts.Pool == nil {
		opts.Mode = Inline
	}
	return &Populator[K, V]{produce: produce, opts: opts}
}

// TryPopulate makes sure s holds a value for k if it can. It returns whether
// a usable value is present. It never blocks longer than the wait budget and
// never returns an error: failure means the caller takes its slow path.
//
// Concurrent calls for the same slot may produce twice; that is tolerated.
func (p *Populator[K, V]) TryPopulate(s *AsyncSlot[V], k K) bool {
	if !s.Dirty() {
		return true
	}
	if s.Failed() {
		return false
	}
	if p.opts.Mode == Inline {
		p.run(s, k)
		return !s.Dirty()
	}

	f := s.flight.Load()
	if f == nil {
		nf := &production{ch: make(chan struct{})}
		if s.flight.CompareAndSwap(nil, nf) {
			if !p.opts.Pool.Submit(func() {
				defer close(nf.ch)
				p.run(s, k)
			}) {
				close(nf.ch)
				s.flight.CompareAndSwap(nf, nil)
				if p.opts.OnDrop != nil {
					p.opts.OnDrop(k)
				}
				return false
			}
		}
		if f = s.flight.Load(); f == nil {
			return !s.Dirty()
		}
	}
	p.wait(f)
	return !s.Dirty()
}

func (p *Populator[K, V]) wait(f *production) {
	if p.opts.WaitBudget <= 0 {
		return
	}
	t := time.NewTimer(p.opts.WaitBudget)
	defer t.Stop()
	select {
	case <-f.ch:
	case <-t.C:
	}
}

func (p *Populator[K, V]) run(s *AsyncSlot[V], k K) {
	v, err := p.call(k)
	if err != nil {
		if s.failed.CompareAndSwap(false, true) && p.opts.OnFailure != nil {
			p.opts.OnFailure(k, err)
		}
		return
	}
	s.complete(v)
}

func (p *Populator[K, V]) call(k K) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("producer panic: %v", r)
		}
	}()
	return p.produce(k)
}
