package store

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/revcache/guard"
	"github.com/unkn0wn-root/revcache/key"
)

// ==============================
// Versioned tables
// ==============================

func TestDenseLookupAfterUpdate(t *testing.T) {
	d := NewDense[guard.Slot[string]](0)
	ids := []int64{0, 1, 255, 256, 70000, DefaultMaxDenseID + 5, 1 << 40}
	for _, id := range ids {
		if _, ok := Lookup[int64, string](d, id, 0); ok {
			t.Fatalf("id %d: hit before update", id)
		}
		if !Update[int64, string](d, id, fmt.Sprint(id), 0, id) {
			t.Fatalf("id %d: update refused", id)
		}
		if v, ok := Lookup[int64, string](d, id, 0); !ok || v != fmt.Sprint(id) {
			t.Fatalf("id %d: Lookup=%q,%v", id, v, ok)
		}
		if _, ok := Lookup[int64, string](d, id, 1); ok {
			t.Fatalf("id %d: hit after revision bump", id)
		}
	}
}

func TestDenseNegativeIDsGetNoSlot(t *testing.T) {
	d := NewDense[guard.Slot[int]](16)
	if d.GetOrCreate(-1) != nil || d.Existing(-3) != nil {
		t.Fatalf("negative ids must not be slotted")
	}
	if Update[int64, int](d, -1, 1, 0, -1) {
		t.Fatalf("update under provisional id must be a no-op")
	}
}

func TestDenseSlotsDoNotMove(t *testing.T) {
	d := NewDense[guard.Slot[int]](1024)
	first := d.GetOrCreate(3)
	for id := int64(0); id < 2048; id++ {
		d.GetOrCreate(id)
	}
	if d.GetOrCreate(3) != first || d.Existing(3) != first {
		t.Fatalf("slot for 3 moved")
	}
	sparse := d.GetOrCreate(5000)
	if d.GetOrCreate(5000) != sparse {
		t.Fatalf("sparse slot moved")
	}
}

func TestDenseRange(t *testing.T) {
	d := NewDense[guard.Slot[int]](512)
	guard.Refresh(d.GetOrCreate(1), 10, 0, 1)
	guard.Refresh(d.GetOrCreate(9000), 20, 0, 1)
	seen := map[int64]int{}
	d.Range(func(id int64, s *guard.Slot[int]) bool {
		if v, ok := s.Get(0); ok {
			seen[id] = v
		}
		return true
	})
	if len(seen) != 2 || seen[1] != 10 || seen[9000] != 20 {
		t.Fatalf("Range saw %v", seen)
	}
}

func compositeFor(name string) key.Composite {
	return key.Of(key.TypeHandle(reflect.TypeFor[int]()), 0, name, key.Fingerprint{})
}

func TestKeyedGetOrCreateIsStable(t *testing.T) {
	tbl := NewKeyed[guard.Slot[int]]()
	k := compositeFor("a")
	s := tbl.GetOrCreate(k)
	for i := 0; i < 100; i++ {
		tbl.GetOrCreate(compositeFor(fmt.Sprint("k", i)))
	}
	if tbl.GetOrCreate(compositeFor("a")) != s || tbl.Existing(k) != s {
		t.Fatalf("slot moved after inserting other keys")
	}
	if tbl.Len() != 101 {
		t.Fatalf("Len=%d want 101", tbl.Len())
	}
	if tbl.Existing(compositeFor("missing")) != nil {
		t.Fatalf("Existing must not create")
	}
}

// Fingerprints sharing length and first element share a hash bucket.
func TestKeyedCollidingHashes(t *testing.T) {
	tbl := NewKeyed[guard.Slot[string]]()
	h := key.TypeHandle(reflect.TypeFor[string]())
	ti, tb, ts := reflect.TypeFor[int](), reflect.TypeFor[bool](), reflect.TypeFor[string]()
	a := key.Of(h, 0, "f", key.MustFingerprint(ti, tb))
	b := key.Of(h, 0, "f", key.MustFingerprint(ti, ts))
	if a.Hash() != b.Hash() {
		t.Fatalf("test needs colliding keys")
	}
	guard.Refresh(tbl.GetOrCreate(a), "A", 0, 0)
	guard.Refresh(tbl.GetOrCreate(b), "B", 0, 0)
	if v, _ := Lookup[key.Composite, string](tbl, a, 0); v != "A" {
		t.Fatalf("a=%q", v)
	}
	if v, _ := Lookup[key.Composite, string](tbl, b, 0); v != "B" {
		t.Fatalf("b=%q", v)
	}
}

func TestKeyedConcurrentInsert(t *testing.T) {
	tbl := NewKeyed[guard.Slot[int]]()
	const n = 64
	var wg sync.WaitGroup
	got := make([][n]*guard.Slot[int], 4)
	for g := range got {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				got[g][i] = tbl.GetOrCreate(compositeFor(fmt.Sprint(i)))
			}
		}(g)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		for g := 1; g < len(got); g++ {
			if got[g][i] != got[0][i] {
				t.Fatalf("key %d resolved to different slots", i)
			}
		}
	}
	if tbl.Len() != n {
		t.Fatalf("Len=%d want %d", tbl.Len(), n)
	}
}

func TestRefTable(t *testing.T) {
	type obj struct{ n int }
	a, b := &obj{1}, &obj{1}
	tbl := NewRef[*obj, guard.Slot[int]]()
	guard.Refresh(tbl.GetOrCreate(a), 1, 0, 0)
	if _, ok := Lookup[*obj, int](tbl, b, 0); ok {
		t.Fatalf("ref tables key by identity, not value")
	}
	if v, ok := Lookup[*obj, int](tbl, a, 0); !ok || v != 1 {
		t.Fatalf("Lookup(a)=%d,%v", v, ok)
	}
	tbl.Forget(a)
	if tbl.Existing(a) != nil {
		t.Fatalf("Forget must drop the slot")
	}
}

func TestSingletonOwnerIdentity(t *testing.T) {
	type world struct{ name string }
	w1, w2 := &world{"one"}, &world{"two"}
	var s Singleton[*world, []string]

	if _, ok := s.Get(w1, 0); ok {
		t.Fatalf("empty singleton hit")
	}
	if ok, replaced := s.Refresh(w1, 0, []string{"a"}, 0); !ok || replaced {
		t.Fatalf("first refresh: ok=%v replaced=%v", ok, replaced)
	}
	if v, ok := s.Get(w1, 0); !ok || len(v) != 1 {
		t.Fatalf("Get(w1)=%v,%v", v, ok)
	}
	// new world with the same revision must miss
	if !s.IsDirty(w2, 0) {
		t.Fatalf("owner swap must invalidate")
	}
	if ok, _ := s.Refresh(w2, -1, nil, 0); ok {
		t.Fatalf("provisional owner id must not write")
	}
	if o, _ := s.Owner(); o != w1 {
		t.Fatalf("owner changed by suppressed refresh")
	}
	if ok, replaced := s.Refresh(w1, 0, []string{"b"}, 1); !ok || replaced {
		t.Fatalf("same owner refresh: ok=%v replaced=%v", ok, replaced)
	}
	if ok, replaced := s.Refresh(w2, 0, nil, 1); !ok || !replaced {
		t.Fatalf("owner swap: ok=%v replaced=%v", ok, replaced)
	}
	s.Reset()
	if _, ok := s.Owner(); ok {
		t.Fatalf("reset must clear owner")
	}
}

func TestSingletonOwnerChangeSeenOnce(t *testing.T) {
	type world struct{ name string }
	w1, w2 := &world{"one"}, &world{"two"}
	var s Singleton[*world, int]
	s.Refresh(w1, 0, 1, 0)

	var (
		wg       sync.WaitGroup
		replaced atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, r := s.Refresh(w2, 0, 2, 0); r {
				replaced.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := replaced.Load(); got != 1 {
		t.Fatalf("owner change reported %d times, want 1", got)
	}
}

// ==============================
// Async population
// ==============================

func TestTryPopulateInline(t *testing.T) {
	var calls atomic.Int32
	p := NewPopulator(func(k string) (int, error) {
		calls.Add(1)
		return len(k), nil
	}, PopulatorOptions[string]{})

	var s AsyncSlot[int]
	if !s.Dirty() {
		t.Fatalf("new slot must be dirty")
	}
	if !p.TryPopulate(&s, "abc") {
		t.Fatalf("inline populate must succeed")
	}
	if v, ok := s.Value(); !ok || v != 3 || s.Dirty() {
		t.Fatalf("Value=%d,%v dirty=%v", v, ok, s.Dirty())
	}
	p.TryPopulate(&s, "abc")
	if calls.Load() != 1 {
		t.Fatalf("completed slot must not be re-produced, calls=%d", calls.Load())
	}
}

func TestTryPopulateFailureIsPermanent(t *testing.T) {
	boom := errors.New("unsupported")
	var calls, failures atomic.Int32
	p := NewPopulator(func(string) (int, error) {
		calls.Add(1)
		return 0, boom
	}, PopulatorOptions[string]{
		OnFailure: func(_ string, err error) {
			if !errors.Is(err, boom) {
				t.Errorf("OnFailure err=%v", err)
			}
			failures.Add(1)
		},
	})

	var s AsyncSlot[int]
	for i := 0; i < 3; i++ {
		if p.TryPopulate(&s, "k") {
			t.Fatalf("failed production must report no value")
		}
	}
	if !s.Dirty() || !s.Failed() {
		t.Fatalf("slot must stay dirty and failed")
	}
	if calls.Load() != 1 || failures.Load() != 1 {
		t.Fatalf("calls=%d failures=%d want 1,1", calls.Load(), failures.Load())
	}
}

func TestTryPopulateRecoversPanics(t *testing.T) {
	p := NewPopulator(func(string) (int, error) { panic("codegen") }, PopulatorOptions[string]{})
	var s AsyncSlot[int]
	if p.TryPopulate(&s, "k") || !s.Failed() {
		t.Fatalf("panic must be turned into a permanent failure")
	}
}

func TestTryPopulateBackground(t *testing.T) {
	pool := NewPool(1, 4)
	defer pool.Close()

	release := make(chan struct{})
	p := NewPopulator(func(k string) (string, error) {
		<-release
		return k + "!", nil
	}, PopulatorOptions[string]{Mode: Background, Pool: pool})

	var s AsyncSlot[string]
	if p.TryPopulate(&s, "x") {
		t.Fatalf("background production cannot be ready yet")
	}
	close(release)

	deadline := time.Now().Add(2 * time.Second)
	for s.Dirty() {
		if time.Now().After(deadline) {
			t.Fatalf("background production never completed")
		}
		time.Sleep(time.Millisecond)
	}
	if !p.TryPopulate(&s, "x") {
		t.Fatalf("completed slot must report a value")
	}
	if v, _ := s.Value(); v != "x!" {
		t.Fatalf("Value=%q", v)
	}
}

func TestTryPopulateBackgroundWaitBudget(t *testing.T) {
	pool := NewPool(1, 4)
	defer pool.Close()
	p := NewPopulator(func(k string) (string, error) {
		return k, nil
	}, PopulatorOptions[string]{Mode: Background, Pool: pool, WaitBudget: 2 * time.Second})

	var s AsyncSlot[string]
	if !p.TryPopulate(&s, "fast") {
		t.Fatalf("a quick production within the budget must be used")
	}
}

func TestTryPopulateDropWhenPoolClosed(t *testing.T) {
	pool := NewPool(1, 1)
	pool.Close()
	var dropped atomic.Int32
	p := NewPopulator(func(k string) (string, error) { return k, nil },
		PopulatorOptions[string]{Mode: Background, Pool: pool, OnDrop: func(string) { dropped.Add(1) }})

	var s AsyncSlot[string]
	if p.TryPopulate(&s, "k") {
		t.Fatalf("dropped production must not report a value")
	}
	if dropped.Load() != 1 || s.Failed() {
		t.Fatalf("drop is not a failure: dropped=%d failed=%v", dropped.Load(), s.Failed())
	}
	if s.flight.Load() != nil {
		t.Fatalf("dropped production must clear the in-flight marker")
	}
}

// Two goroutines racing on first population both end with a value and the
// slot is clean afterwards.
func TestTryPopulateConcurrentFirstFill(t *testing.T) {
	type accessor struct{ add func(int) int }
	p := NewPopulator(func(n int) (*accessor, error) {
		time.Sleep(time.Millisecond)
		return &accessor{add: func(x int) int { return x + n }}, nil
	}, PopulatorOptions[int]{})

	tbl := NewKeyed[AsyncSlot[*accessor]]()
	k := compositeFor("adder")
	start := make(chan struct{})
	results := make([]int, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			s := tbl.GetOrCreate(k)
			if !p.TryPopulate(s, 5) {
				t.Errorf("goroutine %d: no value", i)
				return
			}
			a, _ := s.Value()
			results[i] = a.add(1)
		}(i)
	}
	close(start)
	wg.Wait()

	if results[0] != 6 || results[1] != 6 {
		t.Fatalf("accessors disagree: %v", results)
	}
	if tbl.GetOrCreate(k).Dirty() {
		t.Fatalf("slot dirty after both completed")
	}
}

func TestPoolSubmitFull(t *testing.T) {
	pool := NewPool(1, 1)
	block := make(chan struct{})
	started := make(chan struct{})
	if !pool.Submit(func() { close(started); <-block }) {
		t.Fatalf("first submit refused")
	}
	<-started
	if !pool.Submit(func() {}) {
		t.Fatalf("queue slot should be free")
	}
	if pool.Submit(func() {}) {
		t.Fatalf("full queue must refuse")
	}
	close(block)
	pool.Close()
	if pool.Submit(func() {}) {
		t.Fatalf("closed pool must refuse")
	}
}
