package taint

import (
	"testing"

	"github.com/dkarev/symflow/internal/ir"
)

func makeCacheKey(fn string) CacheKey {
	return CacheKey{
		Fn:     fn,
		Shape:  "()",
		IRHash: "abc123",
	}
}

func TestCacheKeyHash(t *testing.T) {
	k := makeCacheKey("app.handler")
	h := k.hash()
	if len(h) != 16 {
		t.Errorf("expected 16-char hash, got %q (len=%d)", h, len(h))
	}
	if h != k.hash() {
		t.Error("hash is not deterministic")
	}
	if k.hash() == makeCacheKey("app.other").hash() {
		t.Error("different keys should produce different hashes")
	}
	withCallees := makeCacheKey("app.handler")
	withCallees.CalleeHashes = []string{"app.helper:deadbeef"}
	if k.hash() == withCallees.hash() {
		t.Error("callee hashes should change the key hash")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(t.TempDir())
	if !c.enabled {
		t.Fatal("expected enabled cache")
	}

	k := makeCacheKey("app.handler")
	s := &Summary{
		Fn: "app.handler",
		Flows: []Flow{{
			Kind:     "sql-injection",
			Source:   Step{Loc: ir.Location{File: "app.py", Line: 2}, Level: High},
			Sink:     Step{Loc: ir.Location{File: "app.py", Line: 3}, Level: High},
			Level:    High,
			Function: "app.handler",
		}},
	}
	c.Put(k, s)

	got, ok := c.Get(k)
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got.Fn != "app.handler" || len(got.Flows) != 1 {
		t.Errorf("round trip lost content: %+v", got)
	}
	if got.Flows[0].Key() != s.Flows[0].Key() {
		t.Errorf("flow key = %q, want %q", got.Flows[0].Key(), s.Flows[0].Key())
	}
}

func TestCacheMissOnStaleHashes(t *testing.T) {
	c := NewCache(t.TempDir())
	k := makeCacheKey("app.handler")
	c.Put(k, &Summary{Fn: "app.handler"})

	stale := k
	stale.IRHash = "changed"
	if _, ok := c.Get(stale); ok {
		t.Error("changed IR hash should miss")
	}

	stale = k
	stale.CalleeHashes = []string{"app.helper:feedface"}
	if _, ok := c.Get(stale); ok {
		t.Error("changed callee hashes should miss")
	}
}

func TestCacheDisabledIsNoOp(t *testing.T) {
	c := &Cache{}
	k := makeCacheKey("app.handler")
	c.Put(k, &Summary{Fn: "app.handler"})
	if _, ok := c.Get(k); ok {
		t.Error("disabled cache should always miss")
	}
	if err := c.Clear(); err != nil {
		t.Errorf("Clear on disabled cache: %v", err)
	}
}

func TestCacheStats(t *testing.T) {
	c := NewCache(t.TempDir())
	k := makeCacheKey("app.handler")
	c.Get(k)
	c.Put(k, &Summary{Fn: "app.handler"})
	c.Get(k)

	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = (%d, %d), want (1, 1)", hits, misses)
	}
}
