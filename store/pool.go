package store

import "sync"

// Pool is a fixed set of workers draining a bounded queue. Submit never
// blocks: a full queue drops the task.
type Pool struct {
	mu     sync.RWMutex
	q      chan func()
	wg     sync.WaitGroup
	closed bool
}

// NewPool starts workers goroutines over a queue of qlen tasks.
// workers <= 0 => 1, qlen <= 0 => 1024.
func NewPool(workers, qlen int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}
	p := &Pool{q: make(chan func(), qlen)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer p.wg.Done()
			for f := range p.q {
				f()
			}
		}()
	}
	return p
}

// Submit enqueues f and reports whether it was accepted.
func (p *Pool) Submit(f func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.q <- f:
		return true
	default:
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.q)
	p.mu.Unlock()
	p.wg.Wait()
}
