package symbolic

import (
	"fmt"

	"github.com/dkarev/symflow/internal/ir"
	"github.com/dkarev/symflow/internal/solver"
)

// Status is the lifecycle state of a SymbolicState.
type Status uint8

const (
	// Active states are still being explored.
	Active Status = iota
	// Solved states reached a return to the entry function (or the
	// analysis target).
	Solved
	// Infeasible states carry a path condition proven Unsat; they are
	// pruned and never expanded.
	Infeasible
	// Exhausted states ran out of fuel, call depth, or deadline. They are
	// surfaced to the caller as a coverage gap, not hidden.
	Exhausted
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Solved:
		return "solved"
	case Infeasible:
		return "infeasible"
	case Exhausted:
		return "exhausted"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// PathCondition is the conjunction of branch predicates accumulated along a
// path. It is an immutable cons list: appending a conjunct shares the whole
// prefix with the parent state, so forking never deep-copies.
type PathCondition struct {
	conjunct *solver.Term
	parent   *PathCondition
	depth    int
}

// With returns a new condition extending pc with one conjunct. pc may be nil
// (the empty condition).
func (pc *PathCondition) With(t *solver.Term) *PathCondition {
	depth := 1
	if pc != nil {
		depth = pc.depth + 1
	}
	return &PathCondition{conjunct: t, parent: pc, depth: depth}
}

// Len returns the number of conjuncts.
func (pc *PathCondition) Len() int {
	if pc == nil {
		return 0
	}
	return pc.depth
}

// Conjuncts returns the accumulated predicates, oldest first.
func (pc *PathCondition) Conjuncts() []*solver.Term {
	if pc == nil {
		return nil
	}
	out := make([]*solver.Term, pc.depth)
	for node := pc; node != nil; node = node.parent {
		out[node.depth-1] = node.conjunct
	}
	return out
}

// Frame is one entry of the symbolic call stack.
type Frame struct {
	// Fn is the FunctionDef being executed.
	Fn ir.NodeID
	// CallSite is the Call node that entered this frame; NoNode for the
	// entry frame.
	CallSite ir.NodeID
	// ReturnTarget is the caller-side identifier the return value binds
	// to, or "" when the call result is discarded.
	ReturnTarget string

	// saved is the caller's scope chain, restored when the frame pops.
	// Each frame's own chain is rooted at the frame, so a callee never
	// resolves a caller local.
	saved *scope
}

// scope is one link of the lexical scope chain. Variable maps are copied on
// fork; the chain structure itself is immutable between forks.
type scope struct {
	vars   map[string]*Value
	parent *scope
}

// State is the unit of exploration: variable bindings, path condition, call
// stack, fuel, and status. A State is exclusively owned by the worker
// exploring it until it forks; forked children share no mutable storage with
// the parent or each other.
type State struct {
	ID     int
	Status Status

	scope *scope
	Path  *PathCondition
	Stack []Frame

	// Fuel bounds loop unrolling; each loop iteration costs one unit.
	Fuel int

	// Confidence starts at 1.0 and is lowered when a solver Unknown or an
	// unsupported construct forces a conservative assumption.
	Confidence float64

	// Gaps lists the degradations that lowered confidence, for coverage
	// reporting.
	Gaps []string

	// At is the IR node the state halted on (for terminal states).
	At ir.NodeID

	// Ret is the value returned to the entry function (Solved states).
	Ret *Value

	// Model is a satisfying assignment for the path condition, when the
	// solver produced one for a Solved state.
	Model map[string]solver.Value
}

// NewState returns an Active state with one frame and one scope.
func NewState(fn ir.NodeID, fuel int) *State {
	return &State{
		Status:     Active,
		scope:      &scope{vars: map[string]*Value{}},
		Stack:      []Frame{{Fn: fn, CallSite: ir.NoNode}},
		Fuel:       fuel,
		Confidence: 1.0,
		At:         ir.NoNode,
	}
}

// Bind sets name to v in the innermost scope. The binding map is mutated in
// place: exclusive ownership until fork makes that safe, and fork copies.
func (s *State) Bind(name string, v *Value) {
	s.scope.vars[name] = v
}

// Lookup resolves name through the scope chain.
func (s *State) Lookup(name string) (*Value, bool) {
	for sc := s.scope; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// PushScope opens a fresh innermost scope (used at function entry).
func (s *State) PushScope() {
	s.scope = &scope{vars: map[string]*Value{}, parent: s.scope}
}

// PopScope drops the innermost scope.
func (s *State) PopScope() {
	if s.scope != nil {
		s.scope = s.scope.parent
	}
}

// Depth returns the call stack depth.
func (s *State) Depth() int { return len(s.Stack) }

// Frame returns the innermost call frame.
func (s *State) Frame() *Frame {
	if len(s.Stack) == 0 {
		return nil
	}
	return &s.Stack[len(s.Stack)-1]
}

// PushFrame enters a callee frame. The caller's scope chain is saved on the
// frame and a fresh chain is installed, so names unbound in the callee stay
// unbound there instead of resolving to caller locals.
func (s *State) PushFrame(f Frame) {
	f.saved = s.scope
	s.Stack = append(s.Stack, f)
	s.scope = &scope{vars: map[string]*Value{}}
}

// PopFrame leaves the innermost frame and restores the caller's scope chain.
func (s *State) PopFrame() Frame {
	f := s.Stack[len(s.Stack)-1]
	s.Stack = s.Stack[:len(s.Stack)-1]
	s.scope = f.saved
	return f
}

// Fork clones the state for branch exploration, appending cond to the
// child's path condition (pass nil to fork without a new conjunct). The
// clone copies every scope's binding map; values themselves are immutable
// and shared. The path condition prefix is shared structurally.
func (s *State) Fork(cond *solver.Term) *State {
	child := &State{
		Status:     Active,
		Path:       s.Path,
		Fuel:       s.Fuel,
		Confidence: s.Confidence,
		At:         s.At,
	}
	if cond != nil {
		child.Path = s.Path.With(cond)
	}

	child.Stack = make([]Frame, len(s.Stack))
	copy(child.Stack, s.Stack)

	if len(s.Gaps) > 0 {
		child.Gaps = append([]string(nil), s.Gaps...)
	}

	// Rebuild every scope chain with copied maps, preserving chain shape.
	// The memo keeps suffixes shared between the live chain and the chains
	// saved on frames shared in the copy too.
	seen := make(map[*scope]*scope)
	var rebuild func(sc *scope) *scope
	rebuild = func(sc *scope) *scope {
		if sc == nil {
			return nil
		}
		if c, ok := seen[sc]; ok {
			return c
		}
		vars := make(map[string]*Value, len(sc.vars))
		for k, v := range sc.vars {
			vars[k] = v
		}
		c := &scope{vars: vars, parent: rebuild(sc.parent)}
		seen[sc] = c
		return c
	}
	child.scope = rebuild(s.scope)
	for i := range child.Stack {
		child.Stack[i].saved = rebuild(child.Stack[i].saved)
	}
	return child
}

// Degrade lowers confidence by factor and records why. Confidence never
// drops below 0.
func (s *State) Degrade(factor float64, reason string) {
	s.Confidence *= factor
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	s.Gaps = append(s.Gaps, reason)
}

// Terminal reports whether the state has reached a terminal status.
func (s *State) Terminal() bool {
	return s.Status != Active
}
