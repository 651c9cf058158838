package ir

import "fmt"

// Validate checks the structural invariants of the graph: every child link
// resolves, parent links agree with child links, and the statement tree under
// each module root is acyclic. A violation is reported as ErrMalformedIR.
//
// Validation runs once per analysis run, before any exploration starts, so
// the visitors downstream can index the arena without re-checking bounds.
func (g *Graph) Validate() error {
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.ID != NodeID(i) {
			return fmt.Errorf("%w: node %d carries ID %d", ErrMalformedIR, i, n.ID)
		}
		for _, c := range n.Children {
			if !g.Valid(c) {
				return fmt.Errorf("%w: node %d (%s) has dangling child %d", ErrMalformedIR, i, n.Kind, c)
			}
			if g.Nodes[c].Parent != n.ID {
				return fmt.Errorf("%w: node %d is child of %d but claims parent %d",
					ErrMalformedIR, c, n.ID, g.Nodes[c].Parent)
			}
		}
	}

	// Cycle check over the child relation. Colors: 0 unvisited, 1 on the
	// current DFS path, 2 done.
	color := make([]uint8, len(g.Nodes))
	var visit func(NodeID) error
	visit = func(id NodeID) error {
		switch color[id] {
		case 1:
			return fmt.Errorf("%w: cycle through node %d (%s at %s)",
				ErrMalformedIR, id, g.Nodes[id].Kind, g.Nodes[id].Loc)
		case 2:
			return nil
		}
		color[id] = 1
		for _, c := range g.Nodes[id].Children {
			if err := visit(c); err != nil {
				return err
			}
		}
		color[id] = 2
		return nil
	}
	for _, m := range g.Modules {
		if !g.Valid(m.Root) {
			return fmt.Errorf("%w: module %q has dangling root %d", ErrMalformedIR, m.Name, m.Root)
		}
		if err := visit(m.Root); err != nil {
			return err
		}
	}

	for name, fn := range g.Funcs {
		if g.Kind(fn) != KindFunctionDef {
			return fmt.Errorf("%w: function index entry %q does not point at a FunctionDef", ErrMalformedIR, name)
		}
	}
	return nil
}

// ValidateFunc checks the subtree of a single function. The engine calls it
// before exploring a function so that one malformed body aborts only that
// function's analysis.
func (g *Graph) ValidateFunc(fn NodeID) error {
	if g.Kind(fn) != KindFunctionDef {
		return fmt.Errorf("%w: node %d is not a FunctionDef", ErrMalformedIR, fn)
	}
	seen := make(map[NodeID]bool)
	var visit func(NodeID) error
	visit = func(id NodeID) error {
		if !g.Valid(id) {
			return fmt.Errorf("%w: dangling reference %d under %s", ErrMalformedIR, id, g.FuncName(fn))
		}
		if seen[id] {
			return fmt.Errorf("%w: cycle through node %d in %s", ErrMalformedIR, id, g.FuncName(fn))
		}
		seen[id] = true
		for _, c := range g.Nodes[id].Children {
			if err := visit(c); err != nil {
				return err
			}
		}
		delete(seen, id)
		return nil
	}
	return visit(fn)
}
