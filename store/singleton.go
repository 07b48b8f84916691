package store

import (
	"sync/atomic"

	"github.com/unkn0wn-root/revcache/guard"
)

type singletonState[O comparable, V any] struct {
	owner O
	value V
	rev   int64
}

// Singleton is a one-slot versioned cache for process-wide containers (the
// component list of the current world). The same slot outlives the
// container it was filled from, so validity also requires the owner to be
// the same instance: a new game or save load swaps the owner and every
// lookup misses until the collaborator refreshes.
type Singleton[O comparable, V any] struct {
	p atomic.Pointer[singletonState[O, V]]
}

// Get returns the value if it was derived from owner at revision rev.
func (s *Singleton[O, V]) Get(owner O, rev int64) (V, bool) {
	if st := s.p.Load(); st != nil && st.rev == rev && st.owner == owner {
		return st.value, true
	}
	var zero V
	return zero, false
}

// IsDirty reports whether Get would miss.
func (s *Singleton[O, V]) IsDirty(owner O, rev int64) bool {
	st := s.p.Load()
	return st == nil || st.rev != rev || st.owner != owner
}

// Owner returns the owner of the stored value, if any.
func (s *Singleton[O, V]) Owner() (O, bool) {
	if st := s.p.Load(); st != nil {
		return st.owner, true
	}
	var zero O
	return zero, false
}

// Refresh stores v for (owner, rev). ownerID follows guard.Refresh: a
// provisional id or a negative revision suppresses the write. replaced is
// true when the write took the slot over from a different owner; of several
// racing refreshes, exactly one sees each owner change.
func (s *Singleton[O, V]) Refresh(owner O, ownerID int64, v V, rev int64) (ok, replaced bool) {
	if !guard.ValidOwner(ownerID) || rev < 0 {
		return false, false
	}
	old := s.p.Swap(&singletonState[O, V]{owner: owner, value: v, rev: rev})
	return true, old != nil && old.owner != owner
}

func (s *Singleton[O, V]) Reset() { s.p.Store(nil) }
