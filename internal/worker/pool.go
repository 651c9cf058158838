// Package worker fans per-function symbolic explorations out over a bounded
// pool. Each exploration is an independent unit of work: the only shared
// state is the read-only IR and the thread-safe solver cache, so workers
// need no coordination beyond the result collection.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dkarev/symflow/internal/engine"
	"github.com/dkarev/symflow/internal/ir"
	"github.com/dkarev/symflow/internal/symbolic"
)

// Result is the outcome of exploring one function. Err is non-nil only for
// malformed IR; resource exhaustion surfaces as Exhausted states with gaps,
// not as an error.
type Result struct {
	Fn         string
	States     []*symbolic.State
	Pruned     int
	Created    int
	Confidence float64
	Gaps       []string
	Err        error
}

// Pool runs explorations with bounded parallelism and a per-function
// deadline. Zero values select runtime.NumCPU workers and no deadline.
type Pool struct {
	eng     *engine.Engine
	workers int
	timeout time.Duration
}

// NewPool builds a pool around an engine.
func NewPool(eng *engine.Engine, workers int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{eng: eng, workers: workers, timeout: timeout}
}

// ExploreAll explores every named function and returns results keyed by
// qualified name. A cancelled ctx stops dispatching new work; functions
// already in flight finish with whatever partial results their own deadline
// allows. Per-function failures never abort the batch.
func (p *Pool) ExploreAll(ctx context.Context, fns []string) map[string]*Result {
	names := append([]string(nil), fns...)
	sort.Strings(names)

	results := make(map[string]*Result, len(names))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, name := range names {
		name := name
		g.Go(func() error {
			r := p.explore(gctx, name)
			mu.Lock()
			results[name] = r
			mu.Unlock()
			return nil
		})
	}
	// Workers never return errors; Wait is just the join point.
	_ = g.Wait()
	return results
}

func (p *Pool) explore(ctx context.Context, name string) *Result {
	r := &Result{Fn: name, Confidence: 1.0}

	fn, ok := p.eng.Graph().Func(name)
	if !ok {
		r.Err = errors.New("unknown function " + name)
		return r
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	x, err := p.eng.Explore(ctx, fn, nil)
	if err != nil {
		// Malformed IR aborts this function only.
		r.Err = err
		r.Confidence = 0
		return r
	}

	r.States = x.All()
	r.Pruned = len(x.PrunedStates())
	r.Created = x.StatesCreated()

	seen := make(map[string]bool)
	for _, st := range r.States {
		if st.Confidence < r.Confidence {
			r.Confidence = st.Confidence
		}
		for _, gap := range st.Gaps {
			if !seen[gap] {
				seen[gap] = true
				r.Gaps = append(r.Gaps, gap)
			}
		}
	}
	return r
}

// FuncFilter selects the functions of g matching keep; a nil keep selects
// everything. Results are sorted for deterministic dispatch.
func FuncFilter(g *ir.Graph, keep func(string) bool) []string {
	var out []string
	for name := range g.Funcs {
		if keep == nil || keep(name) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
