package revcache

import (
	"sync"
	"sync/atomic"
	"testing"
)

// ==============================
// Registry
// ==============================

type resetTable struct{ resets atomic.Int64 }

func (r *resetTable) Reset() { r.resets.Add(1) }

func TestTableForBuildsOncePerToken(t *testing.T) {
	r := NewRegistry()
	var built atomic.Int64
	mk := func() *resetTable { built.Add(1); return &resetTable{} }

	var wg sync.WaitGroup
	got := make([]*resetTable, 16)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i] = TableFor(r, "a", mk)
		}()
	}
	wg.Wait()
	if built.Load() != 1 {
		t.Fatalf("built %d tables for one token", built.Load())
	}
	for _, g := range got {
		if g != got[0] {
			t.Fatalf("callers saw different tables")
		}
	}
	if TableFor(r, "b", mk) == got[0] || r.Len() != 2 {
		t.Fatalf("tokens must not share tables")
	}

	TableFor(r, "plain", func() int { return 1 })
	r.Reset()
	if got[0].resets.Load() != 1 {
		t.Fatalf("Reset did not reach the table")
	}
}

// ==============================
// Stats
// ==============================

func TestReport(t *testing.T) {
	var s Stats
	if s.Report("x").HitRatio() != 0 {
		t.Fatalf("empty ratio must be 0")
	}
	s.Hit()
	s.Hit()
	s.Hit()
	s.Miss()
	s.Suppressed()
	r := s.Report("x")
	if r.HitRatio() != 0.75 || r.Suppressed != 1 || r.Name != "x" {
		t.Fatalf("report %+v", r)
	}
	if f := r.Fields(); f["hits"] != uint64(3) || f["cache"] != "x" {
		t.Fatalf("fields %v", f)
	}
}

// ==============================
// Logging
// ==============================

type countLogger struct {
	NopLogger
	warns atomic.Int64
}

func (l *countLogger) Warn(string, Fields) { l.warns.Add(1) }

func TestLogOnce(t *testing.T) {
	var once LogOnce
	l := &countLogger{}
	if !once.Warn(l, "k", "m", nil) || once.Warn(l, "k", "m", nil) {
		t.Fatalf("first call must log, second must not")
	}
	once.Warn(l, "other", "m", nil)
	if l.warns.Load() != 2 {
		t.Fatalf("warns=%d want 2", l.warns.Load())
	}
}

func TestCoalesce(t *testing.T) {
	if Coalesce(0, 5) != 5 || Coalesce(3, 5) != 3 || Coalesce("", "d") != "d" {
		t.Fatalf("Coalesce")
	}
	var l Logger
	if _, ok := Coalesce[Logger](l, NopLogger{}).(NopLogger); !ok {
		t.Fatalf("nil logger must default to NopLogger")
	}
}
