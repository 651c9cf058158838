// Package engine drives symbolic path exploration over the IR. Exploration
// is an explicit worklist walk: each work item owns one symbolic state plus
// its continuation stack, branches fork the item, and the solver prunes
// forks whose path condition is unsatisfiable. Loops and recursion are
// bounded by fuel and call depth; hitting a bound yields an Exhausted
// terminal state instead of silent termination.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkarev/symflow/internal/ir"
	"github.com/dkarev/symflow/internal/solver"
	"github.com/dkarev/symflow/internal/symbolic"
)

// ErrUnsupportedConstruct marks an IR node kind the engine does not model.
// It is consumed internally: the affected path degrades to conservative
// Unknown instead of aborting the run.
var ErrUnsupportedConstruct = errors.New("unsupported construct")

// ErrResourceExhausted marks a path that hit a fuel, call depth, or state
// bound. Also consumed internally: the path surfaces as an Exhausted state
// with a recorded gap, never as an error.
var ErrResourceExhausted = errors.New("resource exhausted")

// Limits bounds one exploration.
type Limits struct {
	// Fuel bounds total loop iterations per path.
	Fuel int
	// MaxCallDepth bounds the symbolic call stack.
	MaxCallDepth int
	// MaxStates caps the total number of states one exploration may
	// create; forks beyond the cap are marked Exhausted.
	MaxStates int
	// UnknownPenalty is the confidence multiplier applied when a solver
	// Unknown or an unsupported construct forces a conservative
	// assumption.
	UnknownPenalty float64
}

// DefaultLimits are the bounds used when a caller passes the zero Limits.
func DefaultLimits() Limits {
	return Limits{
		Fuel:           100,
		MaxCallDepth:   10,
		MaxStates:      4096,
		UnknownPenalty: 0.75,
	}
}

func (l Limits) orDefaults() Limits {
	d := DefaultLimits()
	if l.Fuel <= 0 {
		l.Fuel = d.Fuel
	}
	if l.MaxCallDepth <= 0 {
		l.MaxCallDepth = d.MaxCallDepth
	}
	if l.MaxStates <= 0 {
		l.MaxStates = d.MaxStates
	}
	if l.UnknownPenalty <= 0 || l.UnknownPenalty > 1 {
		l.UnknownPenalty = d.UnknownPenalty
	}
	return l
}

// Engine explores one IR graph. The graph and the solver adapter are shared
// read-only/thread-safe respectively, so a single Engine may serve multiple
// concurrent explorations.
type Engine struct {
	graph  *ir.Graph
	solver *solver.Adapter
	limits Limits
}

// New returns an engine over g using ad for feasibility queries.
func New(g *ir.Graph, ad *solver.Adapter, limits Limits) *Engine {
	return &Engine{graph: g, solver: ad, limits: limits.orDefaults()}
}

// Graph returns the IR graph the engine explores.
func (e *Engine) Graph() *ir.Graph { return e.graph }

// cont is one entry of a work item's continuation stack: a position inside a
// block. frameMark entries correspond to call frames; popping one leaves the
// frame.
type cont struct {
	block     ir.NodeID
	idx       int
	frameMark bool
}

// task pairs a state with its continuation stack. A task is owned by exactly
// one worker at a time.
type task struct {
	st    *symbolic.State
	conts []cont
}

func (t *task) fork(st *symbolic.State) *task {
	conts := make([]cont, len(t.conts))
	copy(conts, t.conts)
	return &task{st: st, conts: conts}
}

// Exploration is a lazy, restartable-per-function sequence of terminal
// states. It is bounded: for fuel F and branch depth D it yields at most
// O(2^D) states and always terminates. Infeasible forks are pruned: they
// never appear in the sequence and are never expanded; PrunedStates exposes
// them for diagnostics.
type Exploration struct {
	eng      *Engine
	ctx      context.Context
	worklist []*task // LIFO: depth-first order
	pruned   []*symbolic.State
	created  int
	nextID   int
}

// Explore starts a depth-first exploration of fn from entry. If entry is
// nil, a fresh state is seeded with the function's parameters bound to
// symbolic variables. The returned Exploration is consumed by calling Next
// until it reports done.
//
// A malformed function body is the one fatal condition: it aborts this
// function's exploration with ErrMalformedIR before any state is produced.
func (e *Engine) Explore(ctx context.Context, fn ir.NodeID, entry *symbolic.State) (*Exploration, error) {
	if err := e.graph.ValidateFunc(fn); err != nil {
		return nil, err
	}

	if entry == nil {
		entry = symbolic.NewState(fn, e.limits.Fuel)
		for _, p := range e.graph.Params(fn) {
			name := e.graph.Node(p).Name
			entry.Bind(name, symbolic.SymbolicValue(solver.Var(name)))
		}
	}

	x := &Exploration{eng: e, ctx: ctx, nextID: 1}
	entry.ID = x.stateID()
	x.created = 1

	body := e.graph.Body(fn)
	root := &task{st: entry}
	if body != ir.NoNode {
		root.conts = []cont{{block: body, frameMark: true}}
	}
	x.worklist = append(x.worklist, root)

	debugf("explore %s: fuel=%d depth=%d", e.graph.FuncName(fn), entry.Fuel, e.limits.MaxCallDepth)
	return x, nil
}

func (x *Exploration) stateID() int {
	id := x.nextID
	x.nextID++
	return id
}

// Next produces the next terminal state, or ok=false when the exploration
// is complete. Order is deterministic for fixed inputs and limits.
func (x *Exploration) Next() (*symbolic.State, bool) {
	for len(x.worklist) > 0 {
		t := x.worklist[len(x.worklist)-1]
		x.worklist = x.worklist[:len(x.worklist)-1]

		if t.st.Terminal() {
			if t.st.Status == symbolic.Infeasible {
				x.pruned = append(x.pruned, t.st)
				continue
			}
			return t.st, true
		}

		terminal := x.advance(t)
		if terminal != nil {
			if terminal.Status == symbolic.Infeasible {
				x.pruned = append(x.pruned, terminal)
				continue
			}
			return terminal, true
		}
	}
	return nil, false
}

// All drains the exploration.
func (x *Exploration) All() []*symbolic.State {
	var out []*symbolic.State
	for {
		st, ok := x.Next()
		if !ok {
			return out
		}
		out = append(out, st)
	}
}

// PrunedStates returns the Infeasible forks pruned so far.
func (x *Exploration) PrunedStates() []*symbolic.State { return x.pruned }

// StatesCreated returns the number of states allocated so far.
func (x *Exploration) StatesCreated() int { return x.created }

// advance runs t until it terminates (returned) or forks (children pushed,
// nil returned).
func (x *Exploration) advance(t *task) *symbolic.State {
	g := x.eng.graph
	st := t.st

	for {
		if err := x.ctx.Err(); err != nil {
			st.Status = symbolic.Exhausted
			st.Gaps = append(st.Gaps, "deadline expired")
			x.drainExhausted()
			return st
		}

		if len(t.conts) == 0 {
			x.solveTerminal(st, symbolic.Solved)
			return st
		}

		c := &t.conts[len(t.conts)-1]
		block := g.Node(c.block)
		if block == nil || c.idx >= len(block.Children) {
			frameMark := c.frameMark
			t.conts = t.conts[:len(t.conts)-1]
			if frameMark {
				if x.returnFromFrame(t, symbolic.ConcreteValue(solver.NoneValue())) {
					return st
				}
			}
			continue
		}

		stmt := block.Children[c.idx]
		switch g.Kind(stmt) {
		case ir.KindAssign:
			c.idx++
			x.execAssign(t, stmt)

		case ir.KindCall:
			c.idx++
			x.execCall(t, stmt, "")

		case ir.KindReturn:
			var ret *symbolic.Value = symbolic.ConcreteValue(solver.NoneValue())
			if n := g.Node(stmt); len(n.Children) == 1 {
				ret = x.eval(st, n.Children[0])
			}
			x.popToFrame(t)
			if x.returnFromFrame(t, ret) {
				return st
			}

		case ir.KindIf:
			children := x.execIf(t, stmt)
			if children != nil {
				x.push(children)
				return nil
			}

		case ir.KindLoop:
			terminal, children := x.execLoop(t, stmt)
			if terminal != nil {
				return terminal
			}
			if children != nil {
				x.push(children)
				return nil
			}

		case ir.KindFunctionDef, ir.KindClassDef, ir.KindImport:
			// Nested definitions and imports are not executed.
			c.idx++

		case ir.KindBlock:
			c.idx++
			t.conts = append(t.conts, cont{block: stmt})

		default:
			// Unknown statement kind: degrade this path, keep going.
			st.Degrade(x.eng.limits.UnknownPenalty,
				fmt.Sprintf("%v %s at %s", ErrUnsupportedConstruct, g.Kind(stmt), g.Loc(stmt)))
			warnf("skipping unsupported %s at %s", g.Kind(stmt), g.Loc(stmt))
			c.idx++
		}

		if st.Terminal() {
			return st
		}
	}
}

// push appends children to the worklist in reverse so the first child is
// explored first (depth-first, deterministic).
func (x *Exploration) push(children []*task) {
	for i := len(children) - 1; i >= 0; i-- {
		x.worklist = append(x.worklist, children[i])
	}
}

// drainExhausted marks every queued task Exhausted once the deadline has
// expired, so partial results are returned instead of being discarded.
func (x *Exploration) drainExhausted() {
	for _, t := range x.worklist {
		if !t.st.Terminal() {
			t.st.Status = symbolic.Exhausted
			t.st.Gaps = append(t.st.Gaps, "deadline expired")
		}
	}
}

// popToFrame unwinds continuations up to and including the innermost frame
// boundary.
func (x *Exploration) popToFrame(t *task) {
	for len(t.conts) > 0 {
		frameMark := t.conts[len(t.conts)-1].frameMark
		t.conts = t.conts[:len(t.conts)-1]
		if frameMark {
			return
		}
	}
}

// returnFromFrame completes the innermost call frame with ret. It reports
// true when the state reached a terminal status (entry function returned).
func (x *Exploration) returnFromFrame(t *task, ret *symbolic.Value) bool {
	st := t.st
	if st.Depth() <= 1 {
		st.Ret = ret
		x.solveTerminal(st, symbolic.Solved)
		return true
	}
	f := st.PopFrame()
	if f.ReturnTarget != "" {
		st.Bind(f.ReturnTarget, ret)
	}
	return false
}

// solveTerminal finalizes a state: one last feasibility query attaches a
// model (Solved) or reclassifies the path as Infeasible.
func (x *Exploration) solveTerminal(st *symbolic.State, status symbolic.Status) {
	res := x.eng.solver.Solve(x.ctx, st.Path.Conjuncts())
	switch res.Status {
	case solver.Unsat:
		st.Status = symbolic.Infeasible
		return
	case solver.Unknown:
		st.Degrade(x.eng.limits.UnknownPenalty, "solver unknown: "+res.Reason)
	case solver.Sat:
		st.Model = res.Model
	}
	st.Status = status
}

// execAssign evaluates the right-hand side and rebinds the target. Bindings
// are value-replaced, never mutated, so forked states stay independent.
func (x *Exploration) execAssign(t *task, stmt ir.NodeID) {
	g := x.eng.graph
	n := g.Node(stmt)
	if len(n.Children) != 2 {
		t.st.Degrade(x.eng.limits.UnknownPenalty,
			fmt.Sprintf("%v: malformed assign at %s", ErrUnsupportedConstruct, n.Loc))
		return
	}
	target, value := n.Children[0], n.Children[1]

	// Calls on the right-hand side go through the call machinery so that
	// known callees are stepped into.
	if g.Kind(value) == ir.KindCall {
		if name := g.DottedName(target); name != "" {
			x.execCall(t, value, name)
			return
		}
	}

	v := x.eval(t.st, value)
	x.bindTarget(t.st, target, v)
}

// bindTarget writes v to an assignment target: identifier, attribute path,
// or container subscript.
func (x *Exploration) bindTarget(st *symbolic.State, target ir.NodeID, v *symbolic.Value) {
	g := x.eng.graph
	switch g.Kind(target) {
	case ir.KindIdentifier, ir.KindAttribute:
		if name := g.DottedName(target); name != "" {
			st.Bind(name, v)
			return
		}
	case ir.KindSubscript:
		n := g.Node(target)
		if len(n.Children) == 2 {
			baseName := g.DottedName(n.Children[0])
			index := x.eval(st, n.Children[1])
			if baseName != "" {
				base, ok := st.Lookup(baseName)
				if !ok || base.Kind != symbolic.Container {
					base = symbolic.NewContainer()
				}
				st.Bind(baseName, base.WithElem(index.AsTerm(), v))
				return
			}
		}
	}
	st.Degrade(x.eng.limits.UnknownPenalty,
		fmt.Sprintf("%v: assignment target %s at %s", ErrUnsupportedConstruct, g.Kind(target), g.Loc(target)))
}

// execCall executes a statement-level or assignment-level call. target is
// the caller identifier the result binds to ("" to discard).
func (x *Exploration) execCall(t *task, call ir.NodeID, target string) {
	g := x.eng.graph
	st := t.st

	name := g.CalleeName(call)
	if name == "" {
		// Dynamic dispatch the engine cannot bind statically.
		st.Degrade(x.eng.limits.UnknownPenalty,
			fmt.Sprintf("unresolved call target at %s", g.Loc(call)))
		if target != "" {
			st.Bind(target, symbolic.UnknownValue())
		}
		return
	}

	fn, ok := g.ResolveCallee(call)
	if !ok {
		// External function: the result is a fresh symbol named after the
		// call site, so distinct calls stay distinguishable in terms.
		if target != "" {
			st.Bind(target, symbolic.SymbolicValue(solver.Var(fmt.Sprintf("%s@%s", name, g.Loc(call)))))
		}
		return
	}

	if st.Depth() >= x.eng.limits.MaxCallDepth {
		st.Status = symbolic.Exhausted
		st.At = call
		st.Gaps = append(st.Gaps, fmt.Sprintf("%v: max call depth %d at %s", ErrResourceExhausted, x.eng.limits.MaxCallDepth, g.Loc(call)))
		debugf("call depth limit at %s", g.Loc(call))
		return
	}

	// Evaluate actuals in the caller scope, then bind formals in the
	// callee frame's fresh scope chain.
	args := g.Args(call)
	params := g.Params(fn)
	actuals := make([]*symbolic.Value, len(args))
	for i, a := range args {
		actuals[i] = x.eval(st, a)
	}

	st.PushFrame(symbolic.Frame{Fn: fn, CallSite: call, ReturnTarget: target})
	for i, p := range params {
		v := symbolic.UnknownValue()
		if i < len(actuals) {
			v = actuals[i]
		}
		st.Bind(g.Node(p).Name, v)
	}

	body := g.Body(fn)
	if body == ir.NoNode {
		// Empty body: return none immediately.
		x.returnFromFrame(t, symbolic.ConcreteValue(solver.NoneValue()))
		return
	}
	t.conts = append(t.conts, cont{block: body, frameMark: true})
}

// execIf forks the task on a branch. It returns nil when the condition was
// concrete (no fork needed; execution continued on t).
func (x *Exploration) execIf(t *task, stmt ir.NodeID) []*task {
	g := x.eng.graph
	st := t.st
	n := g.Node(stmt)
	c := &t.conts[len(t.conts)-1]
	c.idx++ // both arms resume after the If

	if len(n.Children) < 2 {
		st.Degrade(x.eng.limits.UnknownPenalty,
			fmt.Sprintf("%v: malformed if at %s", ErrUnsupportedConstruct, n.Loc))
		return nil
	}
	condID, thenID := n.Children[0], n.Children[1]
	elseID := ir.NoNode
	if len(n.Children) == 3 {
		elseID = n.Children[2]
	}

	cond := x.eval(st, condID)

	// Concrete condition: single successor, no fork, no solver query.
	if cond.Kind == symbolic.Concrete {
		if cond.Const.Truthy() {
			t.conts = append(t.conts, cont{block: thenID})
		} else if elseID != ir.NoNode {
			t.conts = append(t.conts, cont{block: elseID})
		}
		return nil
	}

	condTerm := cond.AsTerm()

	thenSt := x.forkState(st, condTerm)
	elseSt := x.forkState(st, solver.Not(condTerm))
	if condTerm == nil {
		// Unknown condition: explore both sides unconstrained, at reduced
		// confidence.
		reason := fmt.Sprintf("opaque branch condition at %s", g.Loc(condID))
		thenSt.Degrade(x.eng.limits.UnknownPenalty, reason)
		elseSt.Degrade(x.eng.limits.UnknownPenalty, reason)
	} else {
		x.checkFeasible(thenSt, g.Loc(condID))
		x.checkFeasible(elseSt, g.Loc(condID))
	}

	thenTask := t.fork(thenSt)
	thenTask.conts = append(thenTask.conts, cont{block: thenID})
	elseTask := t.fork(elseSt)
	if elseID != ir.NoNode {
		elseTask.conts = append(elseTask.conts, cont{block: elseID})
	}
	return []*task{thenTask, elseTask}
}

// execLoop handles one loop head visit: either continue concretely on t, or
// fork into an enter child and an exit child. Fuel is charged per entered
// iteration; running dry yields Exhausted rather than a hang.
func (x *Exploration) execLoop(t *task, stmt ir.NodeID) (*symbolic.State, []*task) {
	g := x.eng.graph
	st := t.st
	n := g.Node(stmt)
	c := &t.conts[len(t.conts)-1]

	if len(n.Children) != 2 {
		st.Degrade(x.eng.limits.UnknownPenalty,
			fmt.Sprintf("%v: malformed loop at %s", ErrUnsupportedConstruct, n.Loc))
		c.idx++
		return nil, nil
	}
	condID, bodyID := n.Children[0], n.Children[1]
	cond := x.eval(st, condID)

	if cond.Kind == symbolic.Concrete {
		if !cond.Const.Truthy() {
			c.idx++
			return nil, nil
		}
		st.Fuel--
		if st.Fuel < 0 {
			st.Status = symbolic.Exhausted
			st.At = stmt
			st.Gaps = append(st.Gaps, fmt.Sprintf("%v: fuel spent in loop at %s", ErrResourceExhausted, g.Loc(stmt)))
			debugf("fuel exhausted at %s", g.Loc(stmt))
			return st, nil
		}
		// Keep c.idx pointing at the loop so the head is revisited after
		// the body completes.
		t.conts = append(t.conts, cont{block: bodyID})
		return nil, nil
	}

	condTerm := cond.AsTerm()

	enterSt := x.forkState(st, condTerm)
	exitSt := x.forkState(st, solver.Not(condTerm))
	if condTerm == nil {
		reason := fmt.Sprintf("opaque loop condition at %s", g.Loc(condID))
		enterSt.Degrade(x.eng.limits.UnknownPenalty, reason)
		exitSt.Degrade(x.eng.limits.UnknownPenalty, reason)
	} else {
		x.checkFeasible(enterSt, g.Loc(condID))
		x.checkFeasible(exitSt, g.Loc(condID))
	}

	enterTask := t.fork(enterSt)
	if !enterSt.Terminal() {
		enterSt.Fuel--
		if enterSt.Fuel < 0 {
			enterSt.Status = symbolic.Exhausted
			enterSt.At = stmt
			enterSt.Gaps = append(enterSt.Gaps, fmt.Sprintf("%v: fuel spent in loop at %s", ErrResourceExhausted, g.Loc(stmt)))
		} else {
			enterTask.conts = append(enterTask.conts, cont{block: bodyID})
		}
	}

	exitTask := t.fork(exitSt)
	exitTask.conts[len(exitTask.conts)-1].idx++

	return nil, []*task{enterTask, exitTask}
}

// forkState forks st with a new conjunct, respecting the state cap.
func (x *Exploration) forkState(st *symbolic.State, cond *solver.Term) *symbolic.State {
	child := st.Fork(cond)
	child.ID = x.stateID()
	x.created++
	if x.created > x.eng.limits.MaxStates {
		child.Status = symbolic.Exhausted
		child.Gaps = append(child.Gaps, fmt.Sprintf("%v: state cap %d reached", ErrResourceExhausted, x.eng.limits.MaxStates))
	}
	return child
}

// checkFeasible queries the solver for the state's path condition. Unsat
// prunes the state; Unknown keeps it alive at reduced confidence.
func (x *Exploration) checkFeasible(st *symbolic.State, at ir.Location) {
	if st.Terminal() {
		return
	}
	res := x.eng.solver.Solve(x.ctx, st.Path.Conjuncts())
	switch res.Status {
	case solver.Unsat:
		st.Status = symbolic.Infeasible
		debugf("pruned infeasible fork at %s", at)
	case solver.Unknown:
		st.Degrade(x.eng.limits.UnknownPenalty,
			fmt.Sprintf("solver unknown at %s: %s", at, res.Reason))
	}
}

