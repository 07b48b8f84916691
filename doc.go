// Package revcache accelerates two kinds of hot runtime lookups:
//
//   - "the live sub-object of type T attached to this container" (component
//     lookups on frequently mutated containers), and
//   - "resolve and invoke this reflective member" (field get/set, method and
//     constructor calls).
//
// Both sit on one invalidation-aware engine. Versioned slots (package guard)
// remember the revision of the collection a value was derived from; a slot is
// valid only while that revision is current, so staleness is one integer
// comparison. Async slots (package store) hold values that never go stale once
// produced, such as the accessor thunks built by package thunk.
//
// Components:
//   - convert:   boxing, unboxing and cast helpers used by thunks.
//   - guard:     the staleness protocol (IsStale, Refresh).
//   - key:       member handles, type fingerprints, composite keys.
//   - store:     dense, keyed, reference and singleton tables; async population.
//   - thunk:     accessor synthesis plus the by-name slow path.
//   - member:    the reflection call-site cache (fast path or slow path).
//   - component: the component call-site cache.
//   - typename:  central full-name cache with per-call-site shadows.
//
// Refresh pattern:
//
//	rev := list.Revision()            // before the scan
//	if v, ok := slot.Get(rev); ok {   // fast path
//		return v
//	}
//	v := scan(list)
//	guard.Refresh(slot, v, rev, id)   // no-op while id is provisional
//
// Everything is in-process and rebuilt on restart. Nothing here persists or
// crosses process boundaries.
package revcache
