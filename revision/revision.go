// Package revision provides revision counters for guarded collections.
//
// A revision only ever grows. Collaborators bump it on every structural
// change (add or remove of a sub-object), never on value mutation, and the
// caches compare it against the revision a slot was filled at.
package revision

import (
	"sync"
	"sync/atomic"
)

// Counter is the revision of one collection. The zero value is revision 0.
type Counter struct {
	v atomic.Int64
}

func (c *Counter) Load() int64 { return c.v.Load() }

// Bump advances the revision and returns the new value.
func (c *Counter) Bump() int64 { return c.v.Add(1) }

// Store keeps revisions for collaborators whose collections carry no counter
// of their own. Owners are addressed by their integer identity; an owner
// that was never bumped is at revision 0.
type Store struct {
	mu   sync.RWMutex
	revs map[int64]int64
}

func NewStore() *Store {
	return &Store{revs: make(map[int64]int64)}
}

func (s *Store) Snapshot(id int64) int64 {
	s.mu.RLock()
	r := s.revs[id]
	s.mu.RUnlock()
	return r
}

// SnapshotMany acquires the read lock once and reads all requested ids.
func (s *Store) SnapshotMany(ids []int64) map[int64]int64 {
	out := make(map[int64]int64, len(ids))
	s.mu.RLock()
	for _, id := range ids {
		out[id] = s.revs[id]
	}
	s.mu.RUnlock()
	return out
}

func (s *Store) Bump(id int64) int64 {
	s.mu.Lock()
	r := s.revs[id] + 1
	s.revs[id] = r
	s.mu.Unlock()
	return r
}

// Forget drops the revision of a destroyed owner. The id must not be reused
// afterwards: a reused id restarts at 0 and could match a slot filled for
// the old owner.
func (s *Store) Forget(id int64) {
	s.mu.Lock()
	delete(s.revs, id)
	s.mu.Unlock()
}

// Len returns the number of owners with a nonzero revision.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revs)
}
