package callgraph

import "sort"

// sccState holds Tarjan's algorithm state for a single vertex.
type sccState struct {
	index   int
	lowlink int
	onStack bool
}

// detectSCCs runs Tarjan's algorithm and populates SCCs and NodeToSCC.
// Single vertices only form an SCC when they carry a self loop; plain
// non-recursive functions stay outside any component.
func (cg *Graph) detectSCCs() {
	var (
		index = 0
		stack []string
		state = make(map[string]*sccState)
		sccID = 0
	)
	cg.SCCs = make(map[int]*SCC)
	cg.NodeToSCC = make(map[string]int)

	var strongConnect func(v string)
	strongConnect = func(v string) {
		state[v] = &sccState{index: index, lowlink: index, onStack: true}
		index++
		stack = append(stack, v)

		for _, w := range cg.Edges[v] {
			if _, known := cg.Funcs[w]; !known {
				continue
			}
			ws := state[w]
			if ws == nil {
				strongConnect(w)
				if state[w].lowlink < state[v].lowlink {
					state[v].lowlink = state[w].lowlink
				}
			} else if ws.onStack {
				if ws.index < state[v].lowlink {
					state[v].lowlink = ws.index
				}
			}
		}

		if state[v].lowlink == state[v].index {
			var members []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				state[w].onStack = false
				members = append(members, w)
				if w == v {
					break
				}
			}
			if len(members) > 1 || cg.hasSelfLoop(members[0]) {
				sort.Strings(members)
				cg.SCCs[sccID] = &SCC{ID: sccID, Members: members}
				for _, m := range members {
					cg.NodeToSCC[m] = sccID
				}
				debugf("SCC #%d: %d members", sccID, len(members))
				sccID++
			}
		}
	}

	names := make([]string, 0, len(cg.Funcs))
	for name := range cg.Funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if state[name] == nil {
			strongConnect(name)
		}
	}
}

func (cg *Graph) hasSelfLoop(name string) bool {
	for _, callee := range cg.Edges[name] {
		if callee == name {
			return true
		}
	}
	return false
}
