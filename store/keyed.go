package store

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/revcache/key"
)

type keyedEntry[S any] struct {
	key  key.Composite
	slot S
}

// bucket holds the entries sharing one hash. Readers load the entry list
// atomically; inserts copy it under the bucket lock.
type bucket[S any] struct {
	mu      sync.Mutex
	entries atomic.Pointer[[]*keyedEntry[S]]
}

func (b *bucket[S]) find(k key.Composite) *S {
	if es := b.entries.Load(); es != nil {
		for _, e := range *es {
			if e.key.Equal(k) {
				return &e.slot
			}
		}
	}
	return nil
}

// Keyed is a hash table over key.Composite. Inserting a key only locks the
// bucket of its hash, so readers and writers of other keys never wait.
type Keyed[S any] struct {
	buckets sync.Map // uint64 -> *bucket[S]
	n       atomic.Int64
}

var _ Table[key.Composite, struct{}] = (*Keyed[struct{}])(nil)

func NewKeyed[S any]() *Keyed[S] { return &Keyed[S]{} }

func (t *Keyed[S]) Existing(k key.Composite) *S {
	b, ok := t.buckets.Load(k.Hash())
	if !ok {
		return nil
	}
	return b.(*bucket[S]).find(k)
}

func (t *Keyed[S]) GetOrCreate(k key.Composite) *S {
	var b *bucket[S]
	if v, ok := t.buckets.Load(k.Hash()); ok {
		b = v.(*bucket[S])
		if s := b.find(k); s != nil {
			return s
		}
	} else {
		v, _ := t.buckets.LoadOrStore(k.Hash(), new(bucket[S]))
		b = v.(*bucket[S])
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s := b.find(k); s != nil {
		return s
	}
	var next []*keyedEntry[S]
	if es := b.entries.Load(); es != nil {
		next = make([]*keyedEntry[S], len(*es), len(*es)+1)
		copy(next, *es)
	}
	e := &keyedEntry[S]{key: k}
	next = append(next, e)
	b.entries.Store(&next)
	t.n.Add(1)
	return &e.slot
}

// Len returns the number of keys ever inserted.
func (t *Keyed[S]) Len() int { return int(t.n.Load()) }

// Range calls fn for every entry in unspecified order.
func (t *Keyed[S]) Range(fn func(k key.Composite, s *S) bool) {
	t.buckets.Range(func(_, v any) bool {
		es := v.(*bucket[S]).entries.Load()
		if es == nil {
			return true
		}
		for _, e := range *es {
			if !fn(e.key, &e.slot) {
				return false
			}
		}
		return true
	})
}

// Ref is a table keyed by object identity (pointers, channels, or other
// comparable references).
type Ref[K comparable, S any] struct {
	m sync.Map // K -> *S
}

var _ Table[*int, struct{}] = (*Ref[*int, struct{}])(nil)

func NewRef[K comparable, S any]() *Ref[K, S] { return &Ref[K, S]{} }

func (t *Ref[K, S]) Existing(k K) *S {
	if v, ok := t.m.Load(k); ok {
		return v.(*S)
	}
	return nil
}

func (t *Ref[K, S]) GetOrCreate(k K) *S {
	if v, ok := t.m.Load(k); ok {
		return v.(*S)
	}
	v, _ := t.m.LoadOrStore(k, new(S))
	return v.(*S)
}

// Forget drops the slot of k, typically when the referenced object is
// destroyed. Holders of the old slot keep a valid but orphaned pointer.
func (t *Ref[K, S]) Forget(k K) { t.m.Delete(k) }
