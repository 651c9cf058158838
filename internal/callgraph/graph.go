// Package callgraph builds the whole-program call graph that orders
// interprocedural taint summarization. Functions are vertices keyed by
// qualified name; edges come from statically resolvable call sites. Cycles
// (recursion, mutual recursion across modules) are collapsed into strongly
// connected components so the summary fixpoint can treat each cycle as one
// unit.
package callgraph

import (
	"sort"

	"github.com/dkarev/symflow/internal/ir"
)

// Site is one call expression inside a function body. Unresolved sites
// (dynamic dispatch, external callees) carry the textual name only and are
// surfaced as analysis gaps by the taint tracker.
type Site struct {
	Node     ir.NodeID
	Caller   string
	Callee   string
	Resolved bool
}

// Graph is the call graph over one IR run. Edge lists are sorted and
// deduplicated so every traversal is deterministic.
type Graph struct {
	Funcs        map[string]ir.NodeID
	Edges        map[string][]string
	ReverseEdges map[string][]string
	Sites        map[string][]Site

	SCCs      map[int]*SCC
	NodeToSCC map[string]int
}

// SCC is a strongly connected component: either a set of mutually recursive
// functions or a single self-recursive one.
type SCC struct {
	ID      int
	Members []string
}

// Build walks every function body collecting call sites and returns the
// resulting graph with SCCs already detected.
func Build(g *ir.Graph) *Graph {
	cg := &Graph{
		Funcs:        make(map[string]ir.NodeID, len(g.Funcs)),
		Edges:        make(map[string][]string),
		ReverseEdges: make(map[string][]string),
		Sites:        make(map[string][]Site),
	}

	names := make([]string, 0, len(g.Funcs))
	for name := range g.Funcs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fn := g.Funcs[name]
		cg.Funcs[name] = fn
		cg.collectSites(g, name, g.Body(fn))
	}

	for caller, sites := range cg.Sites {
		seen := make(map[string]bool)
		for _, s := range sites {
			if !s.Resolved || seen[s.Callee] {
				continue
			}
			seen[s.Callee] = true
			cg.Edges[caller] = append(cg.Edges[caller], s.Callee)
		}
		sort.Strings(cg.Edges[caller])
	}
	for caller, callees := range cg.Edges {
		for _, callee := range callees {
			cg.ReverseEdges[callee] = append(cg.ReverseEdges[callee], caller)
		}
	}
	for _, callers := range cg.ReverseEdges {
		sort.Strings(callers)
	}

	cg.detectSCCs()
	debugf("built call graph: %d functions, %d SCCs", len(cg.Funcs), len(cg.SCCs))
	return cg
}

// collectSites walks a function body recording every Call node. Nested
// function definitions are their own graph vertices and are skipped here.
func (cg *Graph) collectSites(g *ir.Graph, caller string, root ir.NodeID) {
	var walk func(id ir.NodeID)
	walk = func(id ir.NodeID) {
		n := g.Node(id)
		if n == nil || n.Kind == ir.KindFunctionDef {
			return
		}
		if n.Kind == ir.KindCall {
			site := Site{Node: id, Caller: caller, Callee: g.CalleeName(id)}
			if fn, ok := g.ResolveCallee(id); ok {
				site.Callee = g.FuncName(fn)
				site.Resolved = true
			}
			cg.Sites[caller] = append(cg.Sites[caller], site)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
}

// Callees returns the resolved callees of name in sorted order.
func (cg *Graph) Callees(name string) []string { return cg.Edges[name] }

// Callers returns the resolved callers of name in sorted order.
func (cg *Graph) Callers(name string) []string { return cg.ReverseEdges[name] }

// InCycle reports whether name participates in recursion (belongs to an SCC).
func (cg *Graph) InCycle(name string) bool {
	_, ok := cg.NodeToSCC[name]
	return ok
}

// Roots returns functions with no callers, sorted.
func (cg *Graph) Roots() []string {
	var roots []string
	for name := range cg.Funcs {
		if len(cg.ReverseEdges[name]) == 0 {
			roots = append(roots, name)
		}
	}
	sort.Strings(roots)
	return roots
}

// Leaves returns functions with no resolved callees, sorted.
func (cg *Graph) Leaves() []string {
	var leaves []string
	for name := range cg.Funcs {
		if len(cg.Edges[name]) == 0 {
			leaves = append(leaves, name)
		}
	}
	sort.Strings(leaves)
	return leaves
}
