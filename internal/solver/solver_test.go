package solver

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func intConst(v int64) *Term { return Const(IntValue(v)) }

func TestCacheKeySetSemantics(t *testing.T) {
	a := Binary(OpGt, Var("x"), intConst(5))
	b := Binary(OpLt, Var("x"), intConst(10))

	k1 := cacheKey([]*Term{a, b})
	k2 := cacheKey([]*Term{b, a})
	k3 := cacheKey([]*Term{a, b, a}) // duplicates collapse

	if k1 != k2 {
		t.Errorf("key should be order-insensitive: %s != %s", k1, k2)
	}
	if k1 != k3 {
		t.Errorf("key should dedupe conjuncts: %s != %s", k1, k3)
	}

	k4 := cacheKey([]*Term{a})
	if k1 == k4 {
		t.Error("different conjunct sets must not collide")
	}
}

func TestSolveCaches(t *testing.T) {
	ad := New()
	conj := []*Term{Binary(OpGt, Var("x"), intConst(5))}

	first := ad.Solve(context.Background(), conj)
	second := ad.Solve(context.Background(), conj)

	if first.Status != Sat || second.Status != Sat {
		t.Fatalf("Solve = %s, %s; want sat, sat", first.Status, second.Status)
	}
	hits, misses := ad.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats = %d hits, %d misses; want 1, 1", hits, misses)
	}
}

// countingBackend counts invocations and blocks until released.
type countingBackend struct {
	calls   int64
	release chan struct{}
}

func (c *countingBackend) Check(ctx context.Context, conjuncts []*Term) Result {
	atomic.AddInt64(&c.calls, 1)
	if c.release != nil {
		<-c.release
	}
	return Result{Status: Sat}
}

func TestSolveAtMostOncePerKey(t *testing.T) {
	backend := &countingBackend{release: make(chan struct{})}
	ad := NewAdapter(backend, time.Second)
	conj := []*Term{Binary(OpEq, Var("y"), intConst(1))}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ad.Solve(context.Background(), conj)
		}()
	}

	// Let the callers pile onto the in-flight key, then release.
	time.Sleep(20 * time.Millisecond)
	close(backend.release)
	wg.Wait()

	if got := atomic.LoadInt64(&backend.calls); got != 1 {
		t.Errorf("backend invoked %d times for one key, want 1", got)
	}
}

// stallingBackend ignores its work until the context expires.
type stallingBackend struct{}

func (stallingBackend) Check(ctx context.Context, conjuncts []*Term) Result {
	<-ctx.Done()
	return Result{Status: Sat}
}

func TestSolveTimeoutIsUnknown(t *testing.T) {
	ad := NewAdapter(stallingBackend{}, 10*time.Millisecond)

	res := ad.Solve(context.Background(), []*Term{Var("p")})
	if res.Status != Unknown {
		t.Fatalf("Solve after timeout = %s, want unknown", res.Status)
	}
	if res.Reason != ErrSolverTimeout.Error() {
		t.Errorf("Reason = %q, want %q", res.Reason, ErrSolverTimeout)
	}
}

func TestSolveCancelledCallerDoesNotPoisonCache(t *testing.T) {
	ad := New()
	conj := []*Term{Binary(OpGt, Var("x"), intConst(5))}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	res := ad.Solve(cancelled, conj)
	if res.Status != Unknown || res.Reason != "cancelled" {
		t.Fatalf("Solve under cancelled ctx = %s/%q, want unknown/cancelled", res.Status, res.Reason)
	}

	// A later caller with a live context must get a real answer, not the
	// Unknown from someone else's expired deadline.
	res = ad.Solve(context.Background(), conj)
	if res.Status != Sat {
		t.Fatalf("Solve after cancellation = %s, want sat", res.Status)
	}
}

func TestPushPopScopes(t *testing.T) {
	ad := New()
	ctx := context.Background()

	ad.Assert(Binary(OpGt, Var("x"), intConst(5)))
	if res := ad.Check(ctx); res.Status != Sat {
		t.Fatalf("base frame = %s, want sat", res.Status)
	}

	ad.Push()
	ad.Assert(Binary(OpLt, Var("x"), intConst(0)))
	if res := ad.Check(ctx); res.Status != Unsat {
		t.Fatalf("pushed contradiction = %s, want unsat", res.Status)
	}

	ad.Pop()
	if res := ad.Check(ctx); res.Status != Sat {
		t.Fatalf("after pop = %s, want sat", res.Status)
	}
}

func TestNotRewrites(t *testing.T) {
	tests := []struct {
		name string
		in   *Term
		want string
	}{
		{"flip lt", Binary(OpLt, Var("x"), intConst(3)), "(>= x 3)"},
		{"flip ge", Binary(OpGe, Var("x"), intConst(3)), "(< x 3)"},
		{"eq to ne", Binary(OpEq, Var("s"), Const(StringValue("a"))), `(!= s "a")`},
		{"double negation", Not(Var("p")), "p"},
		{"const fold", Const(BoolValue(true)), "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Not(tt.in).String(); got != tt.want {
				t.Errorf("Not(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestTermVars(t *testing.T) {
	term := Binary(OpAnd,
		Binary(OpGt, Var("x"), Var("y")),
		Binary(OpEq, Var("x"), intConst(1)))
	vars := term.Vars(nil)
	if len(vars) != 2 || vars[0] != "x" || vars[1] != "y" {
		t.Errorf("Vars = %v, want [x y]", vars)
	}
}
