package taint

import (
	"context"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/dkarev/symflow/internal/callgraph"
	"github.com/dkarev/symflow/internal/ir"
)

// Config tunes confidence accounting and the fixpoint bound. Decay and floor
// are deliberately configuration, not constants: link-quality heuristics
// differ per deployment.
type Config struct {
	// DecayFactor multiplies confidence once per cross-function hop.
	DecayFactor float64
	// ConfidenceFloor is the lowest confidence a retained flow can carry.
	// Long low-confidence chains are flagged, never dropped.
	ConfidenceFloor float64
	// BaseConfidence is the starting confidence of a direct in-function flow.
	BaseConfidence float64
	// MaxIterations bounds the cross-module fixpoint; 0 derives a bound
	// from the function count.
	MaxIterations int
	// Cache, when set, persists computed summaries across runs. Entries
	// are invalidated by IR, rule set, and callee-summary hashes.
	Cache *Cache
}

// DefaultConfig is the tuning used when callers pass a zero Config.
var DefaultConfig = Config{
	DecayFactor:     0.85,
	ConfidenceFloor: 0.25,
	BaseConfidence:  0.95,
}

func (c Config) withDefaults() Config {
	if c.DecayFactor == 0 {
		c.DecayFactor = DefaultConfig.DecayFactor
	}
	if c.ConfidenceFloor == 0 {
		c.ConfidenceFloor = DefaultConfig.ConfidenceFloor
	}
	if c.BaseConfidence == 0 {
		c.BaseConfidence = DefaultConfig.BaseConfidence
	}
	return c
}

// Tracker runs taint propagation over one IR graph. The summary cache is
// safe for concurrent use; the first caller to request a key computes it and
// concurrent requesters for the in-flight key block rather than duplicate
// the work.
type Tracker struct {
	graph *ir.Graph
	cg    *callgraph.Graph
	rules Classifier
	cfg   Config

	irHash    string
	rulesHash string

	mu        sync.Mutex
	summaries map[string]*Summary
	computing map[string]bool
	labels    map[ir.NodeID]Label
	gaps      []string

	flight singleflight.Group
}

// New builds a tracker for g with the given registry. A zero cfg selects
// DefaultConfig.
func New(g *ir.Graph, rules Classifier, cfg Config) *Tracker {
	t := &Tracker{
		graph:     g,
		cg:        callgraph.Build(g),
		rules:     rules,
		cfg:       cfg.withDefaults(),
		summaries: make(map[string]*Summary),
		computing: make(map[string]bool),
		labels:    make(map[ir.NodeID]Label),
	}
	if t.cfg.Cache != nil {
		t.irHash = g.Fingerprint()
		if fp, ok := rules.(interface{ Fingerprint() string }); ok {
			t.rulesHash = fp.Fingerprint()
		}
	}
	return t
}

// CallGraph exposes the call graph the tracker summarizes over.
func (t *Tracker) CallGraph() *callgraph.Graph { return t.cg }

// Track summarizes every function in reverse topological order, iterating
// cycles to a fixed point, and returns the taint label reaching each IR
// node. On context expiry the fixpoint stops early and whatever labels were
// already computed are returned with a recorded gap.
func (t *Tracker) Track(ctx context.Context) map[ir.NodeID]Label {
	order := t.cg.TopologicalOrder()
	maxIter := t.cfg.MaxIterations
	if maxIter == 0 {
		// Finite lattice height keeps convergence well under this.
		maxIter = 8*len(order) + 32
	}

	pending := make(map[string]bool, len(order))
	for _, name := range order {
		pending[name] = true
	}

	iteration := 0
	for len(pending) > 0 && iteration < maxIter {
		if ctx.Err() != nil {
			t.addGap("deadline expired during taint fixpoint")
			break
		}

		name := popSmallest(pending)
		fnID, ok := t.graph.Func(name)
		if !ok {
			continue
		}
		vec := make(ParamTaint, len(t.graph.Params(fnID)))
		s := t.compute(name, vec, true)
		key := summaryKey(name, vec)

		t.mu.Lock()
		changed := !summaryEqual(t.summaries[key], s)
		if changed {
			// Drop stale shape-keyed summaries of this function so
			// callers recompute against the new result.
			for k, old := range t.summaries {
				if old.Fn == name {
					delete(t.summaries, k)
				}
			}
			t.summaries[key] = s
		}
		t.mu.Unlock()

		if changed {
			for _, caller := range t.cg.Callers(name) {
				pending[caller] = true
			}
			// Cycle members see each other's summaries, so a change
			// anywhere in the SCC must re-run the whole component.
			if id, inSCC := t.cg.NodeToSCC[name]; inSCC {
				for _, m := range t.cg.SCCs[id].Members {
					if m != name {
						pending[m] = true
					}
				}
			}
			debugf("summary updated for %s (iteration %d)", name, iteration)
		}
		iteration++
	}
	if len(pending) > 0 {
		t.addGap("taint fixpoint did not converge within iteration bound")
	}
	infof("taint fixpoint done in %d iterations over %d functions", iteration, len(order))

	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[ir.NodeID]Label, len(t.labels))
	for id, l := range t.labels {
		out[id] = l
	}
	return out
}

// popSmallest removes and returns the lexicographically smallest pending key
// so fixpoint processing order is deterministic.
func popSmallest(pending map[string]bool) string {
	keys := make([]string, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	delete(pending, keys[0])
	return keys[0]
}

// SummaryFor returns the summary of fn under the given input shape, computing
// and caching it on first request. A cached summary for a dominating vector
// is reused as a sound over-approximation.
func (t *Tracker) SummaryFor(fn string, vec ParamTaint) *Summary {
	key := summaryKey(fn, vec)

	t.mu.Lock()
	if s, ok := t.summaries[key]; ok {
		t.mu.Unlock()
		return s
	}
	var dominating *Summary
	for _, s := range t.summaries {
		if s.Fn != fn || !s.Input.Dominates(vec) {
			continue
		}
		if dominating == nil || s.Input.Key() < dominating.Input.Key() {
			dominating = s
		}
	}
	t.mu.Unlock()
	if dominating != nil {
		return dominating
	}

	// Recursive functions re-enter compute on their own call chain; the
	// in-progress guard inside compute answers those with an optimistic
	// bottom, so routing them through singleflight would self-deadlock.
	if t.cg.InCycle(fn) {
		// Iterate: re-entrant lookups see the previous iterate through
		// the cache, so this is a bounded Kleene ascent over the finite
		// lattice.
		var prev, s *Summary
		for i := 0; i < 4; i++ {
			s = t.compute(fn, vec, false)
			t.mu.Lock()
			t.summaries[key] = s
			t.mu.Unlock()
			if summaryEqual(prev, s) {
				break
			}
			prev = s
		}
		return s
	}

	v, _, _ := t.flight.Do(key, func() (interface{}, error) {
		ck, cacheable := t.cacheKey(fn, vec)
		if cacheable {
			if s, ok := t.cfg.Cache.Get(ck); ok {
				t.mu.Lock()
				t.summaries[key] = s
				t.mu.Unlock()
				return s, nil
			}
		}
		s := t.compute(fn, vec, false)
		t.mu.Lock()
		t.summaries[key] = s
		t.mu.Unlock()
		if cacheable {
			t.cfg.Cache.Put(ck, s)
		}
		return s, nil
	})
	return v.(*Summary)
}

// cacheKey builds the persistent-cache key for (fn, vec). The callee hashes
// snapshot the in-memory summaries fn was (or will be) computed against, so
// an entry persisted under different callee results never matches.
func (t *Tracker) cacheKey(fn string, vec ParamTaint) (CacheKey, bool) {
	if t.cfg.Cache == nil {
		return CacheKey{}, false
	}
	ck := CacheKey{
		Fn:        fn,
		Shape:     vec.Key(),
		IRHash:    t.irHash,
		RulesHash: t.rulesHash,
	}
	t.mu.Lock()
	for _, callee := range t.cg.Callees(fn) {
		calleeID, ok := t.graph.Func(callee)
		if !ok {
			continue
		}
		entry := make(ParamTaint, len(t.graph.Params(calleeID)))
		if s, ok := t.summaries[summaryKey(callee, entry)]; ok {
			ck.CalleeHashes = append(ck.CalleeHashes, callee+":"+summaryHash(s))
		}
	}
	t.mu.Unlock()
	sort.Strings(ck.CalleeHashes)
	return ck, true
}

// compute runs the intra-procedural walk of fn with formals seeded from vec.
// Re-entry for a (fn, vec) already on the current chain returns an
// optimistic bottom summary; the caller's fixpoint refines it.
func (t *Tracker) compute(fn string, vec ParamTaint, record bool) *Summary {
	key := summaryKey(fn, vec)
	t.mu.Lock()
	if t.computing[key] {
		t.mu.Unlock()
		return &Summary{Fn: fn, Input: vec}
	}
	t.computing[key] = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.computing, key)
		t.mu.Unlock()
	}()

	fnID, ok := t.graph.Func(fn)
	if !ok {
		return &Summary{Fn: fn, Input: vec}
	}
	if err := t.graph.ValidateFunc(fnID); err != nil {
		t.addGap("skipped " + fn + ": " + err.Error())
		return &Summary{Fn: fn, Input: vec, Gaps: []string{err.Error()}}
	}

	w := &walker{t: t, fn: fn, vars: make(map[string]Label), record: record}
	for i, p := range t.graph.Params(fnID) {
		var lbl Label
		if i < len(vec) && vec[i].Tainted() {
			lbl = Label{
				Level:    vec[i].Level,
				Category: vec[i].Category,
				Provenance: []Step{{
					Loc:   t.graph.Loc(p),
					Level: vec[i].Level,
					Note:  paramNote(i),
				}},
			}
		}
		w.vars[t.graph.Node(p).Name] = lbl
	}
	w.walkStmt(t.graph.Body(fnID))

	return &Summary{Fn: fn, Input: vec, Return: w.ret, Flows: w.flows, Gaps: w.gaps}
}

// Flows returns every source-to-sink flow observed under entry (untainted)
// input shapes, deduplicated by (source, sink, kind) keeping the highest
// confidence, in deterministic order.
func (t *Tracker) Flows() []Flow {
	t.mu.Lock()
	best := make(map[string]Flow)
	for _, s := range t.summaries {
		if !s.Input.AllUntainted() {
			continue
		}
		for _, f := range s.Flows {
			k := f.Key()
			if prev, ok := best[k]; !ok || f.Confidence > prev.Confidence {
				best[k] = f
			}
		}
	}
	t.mu.Unlock()

	out := make([]Flow, 0, len(best))
	for _, f := range best {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Source.Loc != out[j].Source.Loc {
			return out[i].Source.Loc.String() < out[j].Source.Loc.String()
		}
		return out[i].Sink.Loc.String() < out[j].Sink.Loc.String()
	})
	return out
}

// Gaps returns the analysis gaps hit during tracking: unresolved call
// targets, skipped malformed functions, fixpoint shortfalls.
func (t *Tracker) Gaps() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	add := func(g string) {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	for _, g := range t.gaps {
		add(g)
	}
	keys := make([]string, 0, len(t.summaries))
	for k := range t.summaries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, g := range t.summaries[k].Gaps {
			add(g)
		}
	}
	return out
}

func (t *Tracker) addGap(g string) {
	t.mu.Lock()
	t.gaps = append(t.gaps, g)
	t.mu.Unlock()
}

func (t *Tracker) recordLabel(id ir.NodeID, l Label) {
	t.mu.Lock()
	t.labels[id] = l
	t.mu.Unlock()
}

// confidence turns a label's hop count into a flow confidence.
func (t *Tracker) confidence(l Label) float64 {
	c := t.cfg.BaseConfidence * math.Pow(t.cfg.DecayFactor, float64(l.Hops))
	if c < t.cfg.ConfidenceFloor {
		return t.cfg.ConfidenceFloor
	}
	return c
}

// decay applies one cross-function hop to an existing confidence.
func (t *Tracker) decay(c float64) float64 {
	c *= t.cfg.DecayFactor
	if c < t.cfg.ConfidenceFloor {
		return t.cfg.ConfidenceFloor
	}
	return c
}
