package sloghooks

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSampling(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := New(l, Options{SuppressedEvery: 3})

	for i := 0; i < 9; i++ {
		h.RefreshSuppressed("component", -1)
	}
	if n := strings.Count(buf.String(), "revcache.refresh_suppressed"); n != 3 {
		t.Fatalf("logged %d of 9 with sampling 3, want 3", n)
	}

	buf.Reset()
	h.ProductionDropped("T.M")
	h.ProductionDropped("T.M")
	if n := strings.Count(buf.String(), "revcache.production_dropped"); n != 2 {
		t.Fatalf("unsampled event logged %d times, want 2", n)
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	h := New(nil, Options{})
	h.SynthesisUnsupported("T.M", "variadic")
	h.SingletonReset("world")
}
