package worker

import (
	"context"
	"testing"
	"time"

	"github.com/dkarev/symflow/internal/engine"
	"github.com/dkarev/symflow/internal/ir"
	"github.com/dkarev/symflow/internal/solver"
	"github.com/dkarev/symflow/internal/symbolic"
)

func buildGraph(t *testing.T) *ir.Graph {
	t.Helper()
	b := ir.NewBuilder()
	b.SetFile("pool.py")

	straight := b.Function("straight", 1, nil,
		b.Return(b.Int(7, 2), 2),
	)
	branchy := b.Function("branchy", 4, []string{"x"},
		b.If(b.BinOp(">", b.Ident("x", 5), b.Int(0, 5), 5),
			b.Block(5, b.Return(b.Int(1, 6), 6)),
			ir.NoNode, 5),
		b.Return(b.Int(2, 7), 7),
	)
	spinner := b.Function("spinner", 9, nil,
		b.Assign(b.Ident("i", 10), b.Int(0, 10), 10),
		b.Loop(b.Bool(true, 11),
			b.Block(11, b.Assign(b.Ident("i", 12),
				b.BinOp("+", b.Ident("i", 12), b.Int(1, 12), 12), 12)), 11),
	)
	b.Module("m", straight, branchy, spinner)
	return b.Graph()
}

func newEngine(t *testing.T, g *ir.Graph) *engine.Engine {
	t.Helper()
	ad := solver.NewAdapter(solver.NewIntervalBackend(), time.Second)
	return engine.New(g, ad, engine.Limits{Fuel: 20})
}

func TestExploreAllCoversEveryFunction(t *testing.T) {
	g := buildGraph(t)
	pool := NewPool(newEngine(t, g), 4, 0)

	results := pool.ExploreAll(context.Background(), FuncFilter(g, nil))
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}

	straight := results["m.straight"]
	if straight.Err != nil || len(straight.States) != 1 {
		t.Errorf("straight: err=%v states=%d", straight.Err, len(straight.States))
	}
	if straight.Confidence != 1.0 {
		t.Errorf("straight confidence = %v, want 1.0", straight.Confidence)
	}

	branchy := results["m.branchy"]
	if len(branchy.States) != 2 {
		t.Errorf("branchy states = %d, want 2", len(branchy.States))
	}

	spinner := results["m.spinner"]
	if len(spinner.States) != 1 || spinner.States[0].Status != symbolic.Exhausted {
		t.Errorf("spinner should exhaust fuel, got %+v", spinner.States)
	}
	if len(spinner.Gaps) == 0 {
		t.Error("spinner should report a coverage gap")
	}
}

func TestUnknownFunctionReportsError(t *testing.T) {
	g := buildGraph(t)
	pool := NewPool(newEngine(t, g), 2, 0)

	results := pool.ExploreAll(context.Background(), []string{"m.missing"})
	if results["m.missing"].Err == nil {
		t.Error("unknown function should carry an error")
	}
}

func TestCancelledContextYieldsPartialResults(t *testing.T) {
	g := buildGraph(t)
	pool := NewPool(newEngine(t, g), 2, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := pool.ExploreAll(ctx, FuncFilter(g, nil))

	// Every dispatched unit still reports, with Exhausted partials rather
	// than silence.
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	for name, r := range results {
		if r.Err != nil {
			t.Errorf("%s: unexpected error %v", name, r.Err)
		}
	}
}

func TestFuncFilter(t *testing.T) {
	g := buildGraph(t)

	all := FuncFilter(g, nil)
	if len(all) != 3 {
		t.Fatalf("all = %v", all)
	}
	only := FuncFilter(g, func(name string) bool { return name == "m.branchy" })
	if len(only) != 1 || only[0] != "m.branchy" {
		t.Errorf("filtered = %v", only)
	}
}
