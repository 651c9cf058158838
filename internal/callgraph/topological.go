package callgraph

import "sort"

// TopologicalOrder returns function names in reverse topological order,
// leaves first, so that callees are summarized before their callers.
// Members of a cycle appear in DFS post-order within their SCC. The result
// is deterministic: both the outer iteration and callee visits are sorted.
func (cg *Graph) TopologicalOrder() []string {
	visited := make(map[string]bool, len(cg.Funcs))
	var order []string

	var visit func(name string)
	visit = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, callee := range cg.Edges[name] {
			if _, known := cg.Funcs[callee]; known {
				visit(callee)
			}
		}
		order = append(order, name)
	}

	names := make([]string, 0, len(cg.Funcs))
	for name := range cg.Funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		visit(name)
	}
	return order
}
