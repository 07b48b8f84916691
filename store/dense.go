package store

import (
	"sync"
	"sync/atomic"
)

const (
	pageBits = 8
	pageSize = 1 << pageBits
	pageMask = pageSize - 1

	// DefaultMaxDenseID is the default id bound of the paged region.
	DefaultMaxDenseID = 1 << 20
)

type page[S any] [pageSize]S

// Dense is an int-keyed table for small, mostly consecutive identities
// (entity ids). Ids below the dense bound index straight into lazily
// allocated fixed-size pages; larger ids spill into a sparse map. Negative
// ids are provisional and never get a slot.
type Dense[S any] struct {
	dir    []atomic.Pointer[page[S]]
	sparse sync.Map // int64 -> *S
}

var _ Table[int64, struct{}] = (*Dense[struct{}])(nil)

// NewDense creates a table whose paged region covers ids [0, maxDenseID).
// maxDenseID <= 0 selects DefaultMaxDenseID.
func NewDense[S any](maxDenseID int) *Dense[S] {
	if maxDenseID <= 0 {
		maxDenseID = DefaultMaxDenseID
	}
	pages := (maxDenseID + pageSize - 1) / pageSize
	return &Dense[S]{dir: make([]atomic.Pointer[page[S]], pages)}
}

func (d *Dense[S]) GetOrCreate(id int64) *S {
	if id < 0 {
		return nil
	}
	if pi := id >> pageBits; pi < int64(len(d.dir)) {
		p := d.dir[pi].Load()
		if p == nil {
			np := new(page[S])
			if d.dir[pi].CompareAndSwap(nil, np) {
				p = np
			} else {
				p = d.dir[pi].Load()
			}
		}
		return &p[id&pageMask]
	}
	if v, ok := d.sparse.Load(id); ok {
		return v.(*S)
	}
	v, _ := d.sparse.LoadOrStore(id, new(S))
	return v.(*S)
}

func (d *Dense[S]) Existing(id int64) *S {
	if id < 0 {
		return nil
	}
	if pi := id >> pageBits; pi < int64(len(d.dir)) {
		if p := d.dir[pi].Load(); p != nil {
			return &p[id&pageMask]
		}
		return nil
	}
	if v, ok := d.sparse.Load(id); ok {
		return v.(*S)
	}
	return nil
}

// Range calls fn for every slot that has storage, dense region first.
func (d *Dense[S]) Range(fn func(id int64, s *S) bool) {
	for pi := range d.dir {
		p := d.dir[pi].Load()
		if p == nil {
			continue
		}
		for i := range p {
			if !fn(int64(pi)<<pageBits|int64(i), &p[i]) {
				return
			}
		}
	}
	d.sparse.Range(func(k, v any) bool {
		return fn(k.(int64), v.(*S))
	})
}
