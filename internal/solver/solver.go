package solver

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Status is the outcome of a feasibility query.
type Status uint8

const (
	// Sat means the conjunct set has a model.
	Sat Status = iota
	// Unsat means the conjunct set is contradictory.
	Unsat
	// Unknown means the backend could not decide within its fragment or
	// its time budget. Callers treat Unknown conservatively as feasible
	// with lowered confidence.
	Unknown
)

func (s Status) String() string {
	switch s {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	case Unknown:
		return "unknown"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// ErrSolverTimeout marks a query that exceeded the adapter's per-query
// budget. It is consumed internally: Solve reports it as the Reason of an
// Unknown result rather than returning an error.
var ErrSolverTimeout = errors.New("solver timeout")

// Result is the answer to a Solve call. Model is populated only for Sat;
// Reason only for Unknown.
type Result struct {
	Status Status
	Model  map[string]Value
	Reason string
}

// Backend decides satisfiability of a conjunct set. Implementations must be
// deterministic for a fixed input and safe for concurrent use.
type Backend interface {
	Check(ctx context.Context, conjuncts []*Term) Result
}

// Adapter wraps a Backend with result caching, a per-query timeout, and
// scoped incremental contexts. The cache supports concurrent read/insert
// with at-most-once computation per key: concurrent callers for the same
// in-flight key wait for the first caller's backend invocation instead of
// duplicating it.
//
// An Adapter owns no IR and no exploration state; it is safe to share one
// across all workers of a run.
type Adapter struct {
	backend Backend
	timeout time.Duration

	mu     sync.RWMutex
	cache  map[string]Result
	flight singleflight.Group

	hits   int
	misses int

	// frames implements Push/Pop scoped assertion contexts.
	frames [][]*Term
}

// DefaultTimeout bounds a single backend query.
const DefaultTimeout = 250 * time.Millisecond

// NewAdapter returns an adapter over backend. A zero timeout selects
// DefaultTimeout.
func NewAdapter(backend Backend, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{
		backend: backend,
		timeout: timeout,
		cache:   make(map[string]Result),
	}
}

// New returns an adapter over the built-in interval backend with the default
// per-query timeout.
func New() *Adapter {
	return NewAdapter(NewIntervalBackend(), 0)
}

// cacheKey computes the canonical hash of a conjunct set: conjuncts are
// rendered, sorted, and deduplicated so that set-equal queries share a key.
func cacheKey(conjuncts []*Term) string {
	rendered := make([]string, 0, len(conjuncts))
	for _, c := range conjuncts {
		if c != nil {
			rendered = append(rendered, c.String())
		}
	}
	sort.Strings(rendered)
	uniq := rendered[:0]
	var prev string
	for i, r := range rendered {
		if i == 0 || r != prev {
			uniq = append(uniq, r)
		}
		prev = r
	}
	h := sha256.Sum256([]byte(strings.Join(uniq, "\n")))
	return fmt.Sprintf("%x", h[:16])
}

// Solve decides the conjunction of conjuncts. Results are cached; a query
// exceeding the adapter's own budget yields Unknown with ErrSolverTimeout as
// the reason and is cached like any other result (the budget is per key, not per call,
// so a slow query does not stall every state that reaches the same
// frontier). An expiry inherited from the caller's ctx is not a property of
// the query: it yields Unknown with reason "cancelled" and is never cached,
// so callers with a live deadline still get a real answer later.
func (a *Adapter) Solve(ctx context.Context, conjuncts []*Term) Result {
	key := cacheKey(conjuncts)

	a.mu.Lock()
	cached, ok := a.cache[key]
	if ok {
		a.hits++
	}
	a.mu.Unlock()
	if ok {
		debugf("cache hit %s → %s", key[:8], cached.Status)
		return cached
	}

	v, _, _ := a.flight.Do(key, func() (interface{}, error) {
		qctx, cancel := context.WithTimeout(ctx, a.timeout)
		defer cancel()

		res := a.backend.Check(qctx, conjuncts)
		if qctx.Err() != nil {
			if ctx.Err() != nil {
				return Result{Status: Unknown, Reason: "cancelled"}, nil
			}
			res = Result{Status: Unknown, Reason: ErrSolverTimeout.Error()}
		}

		a.mu.Lock()
		a.misses++
		a.cache[key] = res
		a.mu.Unlock()

		debugf("solved %s → %s (%d conjuncts)", key[:8], res.Status, len(conjuncts))
		return res, nil
	})
	return v.(Result)
}

// Push opens a scoped assertion frame.
func (a *Adapter) Push() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.frames = append(a.frames, nil)
}

// Pop discards the most recent assertion frame. Popping with no open frame
// is a no-op.
func (a *Adapter) Pop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.frames) > 0 {
		a.frames = a.frames[:len(a.frames)-1]
	}
}

// Assert adds a conjunct to the current frame (or a base frame when none is
// open).
func (a *Adapter) Assert(t *Term) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.frames) == 0 {
		a.frames = append(a.frames, nil)
	}
	top := len(a.frames) - 1
	a.frames[top] = append(a.frames[top], t)
}

// Check solves the conjunction of every assertion across open frames.
func (a *Adapter) Check(ctx context.Context) Result {
	a.mu.RLock()
	var all []*Term
	for _, frame := range a.frames {
		all = append(all, frame...)
	}
	a.mu.RUnlock()
	return a.Solve(ctx, all)
}

// Stats returns cache hit/miss counters.
func (a *Adapter) Stats() (hits, misses int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.hits, a.misses
}
