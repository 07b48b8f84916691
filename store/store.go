// Package store implements the cache tables. Every table hands out stable
// pointers to slots: a slot, once created, is never moved or copied, so a
// caller may hold it across a read-check-refresh sequence while other keys
// are inserted concurrently. Reads never take a lock.
//
// Tables are generic over the slot type S so the same table serves versioned
// slots (guard.Slot) and async slots (AsyncSlot).
package store

import "github.com/unkn0wn-root/revcache/guard"

// Table is the common shape of Dense, Keyed and Ref.
type Table[K any, S any] interface {
	// GetOrCreate returns the slot for k, creating a zero slot if absent.
	GetOrCreate(k K) *S
	// Existing returns the slot for k or nil.
	Existing(k K) *S
}

// Lookup is the read-only fast path of a versioned table.
func Lookup[K any, V any](t Table[K, guard.Slot[V]], k K, rev int64) (V, bool) {
	if s := t.Existing(k); s != nil {
		return s.Get(rev)
	}
	var zero V
	return zero, false
}

// Update refreshes the slot for k. See guard.Refresh for the owner rule.
func Update[K any, V any](t Table[K, guard.Slot[V]], k K, v V, rev, owner int64) bool {
	if !guard.ValidOwner(owner) {
		return false
	}
	s := t.GetOrCreate(k)
	if s == nil {
		return false
	}
	return guard.Refresh(s, v, rev, owner)
}
