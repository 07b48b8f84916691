// Package guard implements the staleness protocol shared by every versioned
// cache: a slot remembers the revision of the collection its value was derived
// from, and is valid only while that revision is still current.
//
// The collaborator owning the collection must bump its revision on every
// structural change (add/remove). Value mutation of elements does not count.
package guard

import "sync/atomic"

// Never is the revision of a slot that has never been refreshed. Collaborator
// revisions start at 0, so a fresh slot is always stale.
const Never int64 = -1

type state[V any] struct {
	value V
	rev   int64
}

// Slot pairs a cached value with the revision it was derived from.
// The zero Slot is ready to use and is stale for every revision.
//
// Value and revision are published together as one immutable record, so
// concurrent readers never observe a value paired with another write's
// revision.
type Slot[V any] struct {
	p atomic.Pointer[state[V]]
}

// Revision returns the stored revision, Never if the slot was never filled.
func (s *Slot[V]) Revision() int64 {
	if st := s.p.Load(); st != nil {
		return st.rev
	}
	return Never
}

// IsDirty reports whether the slot is stale for rev.
func (s *Slot[V]) IsDirty(rev int64) bool {
	return s.Revision() != rev
}

// Get returns the cached value if it is valid for rev.
func (s *Slot[V]) Get(rev int64) (V, bool) {
	if st := s.p.Load(); st != nil && st.rev == rev {
		return st.value, true
	}
	var zero V
	return zero, false
}

// Peek returns the stored value regardless of its revision.
func (s *Slot[V]) Peek() (v V, rev int64) {
	if st := s.p.Load(); st != nil {
		return st.value, st.rev
	}
	return v, Never
}

// Reset puts the slot back into the never-valid state.
func (s *Slot[V]) Reset() { s.p.Store(nil) }

// IsStale is the single staleness check: one integer comparison.
func IsStale[V any](s *Slot[V], rev int64) bool {
	return s.IsDirty(rev)
}

// ValidOwner reports whether an owner identity is stable enough to key
// durable cache state. Negative ids are provisional (not yet constructed or
// being destroyed).
func ValidOwner(owner int64) bool { return owner >= 0 }

// Refresh stores v as valid for rev. It is a no-op returning false when owner
// is not a valid identity: a value written under a provisional id would never
// be invalidated once the real id is assigned. A negative rev is refused the
// same way; revisions start at 0.
func Refresh[V any](s *Slot[V], v V, rev, owner int64) bool {
	if !ValidOwner(owner) || rev < 0 {
		return false
	}
	s.p.Store(&state[V]{value: v, rev: rev})
	return true
}
