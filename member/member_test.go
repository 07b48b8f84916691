package member

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
	"unsafe"

	"github.com/google/go-cmp/cmp"

	"github.com/unkn0wn-root/revcache"
	"github.com/unkn0wn-root/revcache/key"
	"github.com/unkn0wn-root/revcache/store"
	"github.com/unkn0wn-root/revcache/thunk"
	"github.com/unkn0wn-root/revcache/typename"
)

type inner struct{ Depth int }

type node struct {
	inner
	Name   string
	Weight *float64
}

func (n *node) Rename(s string) string { old := n.Name; n.Name = s; return old }
func (n node) Label() string           { return "node:" + n.Name }
func (n *node) Addr() unsafe.Pointer   { return unsafe.Pointer(&n.Name) }
func (n *node) Scale(f *float64)       { *f *= 2 }

func newNode(name string) *node { return &node{Name: name} }

type recLogger struct {
	revcache.NopLogger
	mu    sync.Mutex
	warns []string
}

func (l *recLogger) Warn(msg string, f revcache.Fields) {
	l.mu.Lock()
	l.warns = append(l.warns, msg+" "+f["member"].(string))
	l.mu.Unlock()
}

type recHooks struct {
	revcache.NopHooks
	mu          sync.Mutex
	unsupported []string
	failed      int
	dropped     int
}

func (h *recHooks) SynthesisUnsupported(member, _ string) {
	h.mu.Lock()
	h.unsupported = append(h.unsupported, member)
	h.mu.Unlock()
}

func (h *recHooks) SynthesisFailed(string, error) {
	h.mu.Lock()
	h.failed++
	h.mu.Unlock()
}

func (h *recHooks) ProductionDropped(string) {
	h.mu.Lock()
	h.dropped++
	h.mu.Unlock()
}

func newCache(t *testing.T, opts Options) (*Cache, *recLogger, *recHooks) {
	t.Helper()
	l, h := &recLogger{}, &recHooks{}
	opts.Logger, opts.Hooks = l, h
	opts.Names = typename.NewCentral()
	return New(opts), l, h
}

func mustField(t *testing.T, c *Cache, name string) thunk.Member {
	t.Helper()
	m, err := c.Field(reflect.TypeFor[node](), name, key.Promoted)
	if err != nil {
		t.Fatalf("Field(%s): %v", name, err)
	}
	return m
}

func mustMethod(t *testing.T, c *Cache, name string) thunk.Member {
	t.Helper()
	m, err := c.Method(reflect.TypeFor[*node](), name, 0)
	if err != nil {
		t.Fatalf("Method(%s): %v", name, err)
	}
	return m
}

// ==============================
// Fast path
// ==============================

func TestFieldThroughCache(t *testing.T) {
	c, _, _ := newCache(t, Options{})
	m := mustField(t, c, "Name")
	n := &node{Name: "a"}

	for i := 0; i < 3; i++ {
		v, err := c.Get(m, n)
		if err != nil || v != n.Name {
			t.Fatalf("Get = %v, %v", v, err)
		}
	}
	if err := c.Set(m, n, "b"); err != nil || n.Name != "b" {
		t.Fatalf("Set: %v name=%q", err, n.Name)
	}

	rep := c.Report()
	want := revcache.Report{Name: "members", Hits: 3, Misses: 1, Synthesized: 1}
	if diff := cmp.Diff(want, rep); diff != "" {
		t.Fatalf("report (-want +got):\n%s", diff)
	}
	if c.Len() != 1 {
		t.Fatalf("Len=%d want 1", c.Len())
	}
}

func TestMethodsAndConstructorsThroughCache(t *testing.T) {
	c, _, _ := newCache(t, Options{})
	n := &node{Name: "x"}

	out, err := c.Call(mustMethod(t, c, "Rename"), n, "y")
	if err != nil || out[0] != "x" || n.Name != "y" {
		t.Fatalf("Rename = %v, %v (name %q)", out, err, n.Name)
	}
	out, err = c.Call(mustMethod(t, c, "Label"), n)
	if err != nil || out[0] != "node:y" {
		t.Fatalf("Label = %v, %v", out, err)
	}

	ctor, err := thunk.ConstructorOf(reflect.TypeFor[*node](), newNode)
	if err != nil {
		t.Fatal(err)
	}
	v, err := c.New(ctor, "z")
	if err != nil || v.(*node).Name != "z" {
		t.Fatalf("New = %v, %v", v, err)
	}
}

func TestByRefWriteBackOnSite(t *testing.T) {
	c, _, _ := newCache(t, Options{})
	site := c.Bind(mustMethod(t, c, "Scale"))
	args := []any{1.5}
	if _, err := site.Call(&node{}, args...); err != nil {
		t.Fatalf("Scale: %v", err)
	}
	// a plain float64 was boxed into a fresh *float64 that replaced args[0]
	p, ok := args[0].(*float64)
	if !ok || *p != 3 {
		t.Fatalf("args[0] = %#v, want *float64(3)", args[0])
	}
}

func TestWrongKind(t *testing.T) {
	c, _, _ := newCache(t, Options{})
	m := mustMethod(t, c, "Rename")
	if _, err := c.Get(m, &node{}); !errors.Is(err, thunk.ErrNoMember) {
		t.Fatalf("Get on a method: %v", err)
	}
	f := mustField(t, c, "Name")
	if _, err := c.Call(f, &node{}); !errors.Is(err, thunk.ErrNoMember) {
		t.Fatalf("Call on a field: %v", err)
	}
}

func TestCacheCallsShareTheBoundSlot(t *testing.T) {
	c, _, _ := newCache(t, Options{})
	m := mustField(t, c, "Name")
	site := c.Bind(m)
	n := &node{Name: "a"}
	if v, err := site.Get(n); err != nil || v != "a" {
		t.Fatalf("site Get = %v, %v", v, err)
	}
	if v, err := c.Get(m, n); err != nil || v != "a" {
		t.Fatalf("cache Get = %v, %v", v, err)
	}
	if c.Len() != 1 {
		t.Fatalf("Len=%d want 1", c.Len())
	}
	if rep := c.Report(); rep.Misses != 1 || rep.Hits != 1 || rep.Synthesized != 1 {
		t.Fatalf("report %+v", rep)
	}
}

// A Member assembled from its exported fields has no resolved index; it
// must be served by name, not crash while computing its key.
func TestHandBuiltMemberFallsBackToSlowPath(t *testing.T) {
	c, _, hooks := newCache(t, Options{})
	f := thunk.Member{Kind: key.KindField, Owner: reflect.TypeFor[node](), Name: "Name"}
	n := &node{Name: "x"}

	v, err := c.Get(f, n)
	if err != nil || v != "x" {
		t.Fatalf("Get = %v, %v", v, err)
	}
	if err := c.Set(f, n, "y"); err != nil || n.Name != "y" {
		t.Fatalf("Set: %v name=%q", err, n.Name)
	}
	if c.Thunk(f) != nil {
		t.Fatalf("hand-built member got a thunk")
	}

	m := thunk.Member{Kind: key.KindMethod, Owner: reflect.TypeFor[*node](), Name: "Rename"}
	out, err := c.Call(m, n, "z")
	if err != nil || out[0] != "y" || n.Name != "z" {
		t.Fatalf("Call = %v, %v name=%q", out, err, n.Name)
	}

	if rep := c.Report(); rep.Unsupported != 2 || rep.Synthesized != 0 {
		t.Fatalf("report %+v", rep)
	}
	if len(hooks.unsupported) != 2 {
		t.Fatalf("unsupported hooks %v", hooks.unsupported)
	}
}

// ==============================
// Slow path
// ==============================

// A method returning a raw address into its receiver never gets a thunk;
// every call goes the slow way and matches a direct call.
func TestReturnByRefStaysOnSlowPath(t *testing.T) {
	c, logs, hooks := newCache(t, Options{})
	m := mustMethod(t, c, "Addr")
	n := &node{Name: "r"}

	const calls = 5
	for i := 0; i < calls; i++ {
		out, err := c.Call(m, n)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if out[0] != n.Addr() {
			t.Fatalf("call %d: %v != direct %v", i, out[0], n.Addr())
		}
	}
	if c.Thunk(m) != nil {
		t.Fatalf("unsupported member got a thunk")
	}

	rep := c.Report()
	if rep.Unsupported != 1 || rep.SlowPath != calls+1 || rep.Synthesized != 0 {
		t.Fatalf("report %+v", rep)
	}
	want := []string{"*github.com/unkn0wn-root/revcache/member.node.Addr"}
	if diff := cmp.Diff(want, hooks.unsupported); diff != "" {
		t.Fatalf("hooks (-want +got):\n%s", diff)
	}
	if len(logs.warns) != 1 {
		t.Fatalf("want one warning, got %v", logs.warns)
	}
}

func TestSynthesisFailureIsReportedOnce(t *testing.T) {
	c, logs, hooks := newCache(t, Options{})
	var m thunk.Member
	for i := 0; i < 3; i++ {
		if c.Thunk(m) != nil {
			t.Fatalf("zero member got a thunk")
		}
	}
	if hooks.failed != 1 || len(logs.warns) != 1 || c.Report().Failed != 1 {
		t.Fatalf("failed hooks=%d warns=%v", hooks.failed, logs.warns)
	}
}

// ==============================
// Resolution
// ==============================

func TestResolveFlags(t *testing.T) {
	c, _, _ := newCache(t, Options{})
	nt := reflect.TypeFor[node]()

	if _, err := c.Field(nt, "Depth", 0); !errors.Is(err, thunk.ErrNoMember) {
		t.Fatalf("promoted field without Promoted: %v", err)
	}
	if m, err := c.Field(nt, "Depth", key.Promoted); err != nil || m.Name != "Depth" {
		t.Fatalf("promoted field: %v, %v", m, err)
	}
	if m, err := c.Field(nt, "name", key.IgnoreCase); err != nil || m.Name != "Name" {
		t.Fatalf("case-insensitive field: %v, %v", m, err)
	}
	if _, err := c.Method(nt, "Rename", 0); !errors.Is(err, thunk.ErrNoMember) {
		t.Fatalf("pointer method on value owner: %v", err)
	}
	if m, err := c.Method(nt, "rename", key.PointerMethods|key.IgnoreCase); err != nil || m.Owner != reflect.TypeFor[*node]() {
		t.Fatalf("pointer method: %v, %v", m, err)
	}
	str := reflect.TypeFor[string]()
	if _, err := c.MethodSig(reflect.TypeFor[*node](), "Rename", 0, str); err != nil {
		t.Fatalf("matching signature: %v", err)
	}
	if _, err := c.MethodSig(reflect.TypeFor[*node](), "Rename", 0, str, str); !errors.Is(err, thunk.ErrNoMember) {
		t.Fatalf("mismatched signature: %v", err)
	}
}

func TestResolutionIsCached(t *testing.T) {
	c, _, _ := newCache(t, Options{})
	a := mustField(t, c, "Name")
	b := mustField(t, c, "Name")
	if !a.Key().Equal(b.Key()) {
		t.Fatalf("same lookup resolved differently")
	}
	c.Field(reflect.TypeFor[node](), "Missing", 0)
	c.Field(reflect.TypeFor[node](), "Missing", 0)
	if c.lookups.Len() != 2 {
		t.Fatalf("lookups Len=%d want 2 (hit and cached miss)", c.lookups.Len())
	}
}

// ==============================
// Population modes
// ==============================

func TestBackgroundProduction(t *testing.T) {
	pool := store.NewPool(2, 16)
	t.Cleanup(pool.Close)
	c, _, _ := newCache(t, Options{Mode: store.Background, Pool: pool, WaitBudget: time.Second})
	m := mustField(t, c, "Name")
	if c.Thunk(m) == nil {
		t.Fatalf("background production within budget must yield a thunk")
	}
	if !c.Bind(m).Fast() {
		t.Fatalf("site must see the thunk")
	}
}

func TestWarm(t *testing.T) {
	c, _, _ := newCache(t, Options{WarmLimit: 2})
	ms := []thunk.Member{
		mustField(t, c, "Name"),
		mustField(t, c, "Weight"),
		mustMethod(t, c, "Rename"),
		mustMethod(t, c, "Addr"),
	}
	n, err := c.Warm(context.Background(), ms...)
	if err != nil || n != 3 {
		t.Fatalf("Warm = %d, %v; want 3", n, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Warm(ctx, ms...); !errors.Is(err, context.Canceled) {
		t.Fatalf("Warm on a canceled context: %v", err)
	}
}

func TestConcurrentFirstUse(t *testing.T) {
	c, _, _ := newCache(t, Options{})
	m, err := c.Method(reflect.TypeFor[node](), "Label", 0)
	if err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := c.Call(m, node{Name: "c"})
			if err != nil || out[0] != "node:c" {
				t.Errorf("Call = %v, %v", out, err)
			}
		}()
	}
	wg.Wait()
	if !c.Bind(m).Fast() {
		t.Fatalf("slot still dirty after concurrent first use")
	}
}

func TestForSharesPerRegistry(t *testing.T) {
	r := revcache.NewRegistry()
	if For(r, Options{}) != For(r, Options{}) {
		t.Fatalf("registry must return one member cache")
	}
}
