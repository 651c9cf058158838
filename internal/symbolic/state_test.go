package symbolic

import (
	"testing"

	"github.com/dkarev/symflow/internal/ir"
	"github.com/dkarev/symflow/internal/solver"
)

func TestPathConditionStructuralSharing(t *testing.T) {
	a := solver.Binary(solver.OpGt, solver.Var("x"), solver.Const(solver.IntValue(0)))
	b := solver.Binary(solver.OpLt, solver.Var("x"), solver.Const(solver.IntValue(9)))
	c := solver.Not(b)

	var base *PathCondition
	base = base.With(a)

	left := base.With(b)
	right := base.With(c)

	if left.Len() != 2 || right.Len() != 2 {
		t.Fatalf("Len = %d, %d; want 2, 2", left.Len(), right.Len())
	}

	lc := left.Conjuncts()
	rc := right.Conjuncts()
	if lc[0] != a || rc[0] != a {
		t.Error("siblings should share the prefix conjunct by reference")
	}
	if lc[1] != b || rc[1] != c {
		t.Error("each sibling should carry its own appended conjunct")
	}
	if base.Len() != 1 {
		t.Errorf("parent Len = %d after children appended, want 1", base.Len())
	}
}

func TestForkIndependence(t *testing.T) {
	s := NewState(ir.NodeID(0), 10)
	s.Bind("x", ConcreteValue(solver.IntValue(1)))

	child := s.Fork(solver.Var("p"))
	child.Bind("x", ConcreteValue(solver.IntValue(2)))
	child.Bind("y", UnknownValue())

	if v, _ := s.Lookup("x"); v.Const.Int != 1 {
		t.Errorf("parent x = %s, want 1 (child write leaked)", v)
	}
	if _, ok := s.Lookup("y"); ok {
		t.Error("parent sees child-only binding y")
	}
	if v, _ := child.Lookup("x"); v.Const.Int != 2 {
		t.Errorf("child x = %s, want 2", v)
	}
	if child.Path.Len() != 1 || s.Path.Len() != 0 {
		t.Errorf("Path lengths = %d, %d; want 1, 0", child.Path.Len(), s.Path.Len())
	}
}

func TestScopeChainLookup(t *testing.T) {
	s := NewState(ir.NodeID(0), 10)
	s.Bind("g", ConcreteValue(solver.IntValue(7)))

	s.PushScope()
	s.Bind("l", ConcreteValue(solver.IntValue(1)))

	if v, ok := s.Lookup("g"); !ok || v.Const.Int != 7 {
		t.Error("inner scope should see outer binding")
	}
	if v, ok := s.Lookup("l"); !ok || v.Const.Int != 1 {
		t.Error("inner scope should see its own binding")
	}

	// Shadowing is scoped.
	s.Bind("g", ConcreteValue(solver.IntValue(8)))
	s.PopScope()
	if v, _ := s.Lookup("g"); v.Const.Int != 7 {
		t.Errorf("after pop g = %s, want 7", v)
	}
	if _, ok := s.Lookup("l"); ok {
		t.Error("after pop l should be gone")
	}
}

func TestForkCopiesScopeChain(t *testing.T) {
	s := NewState(ir.NodeID(0), 10)
	s.Bind("outer", ConcreteValue(solver.IntValue(1)))
	s.PushScope()
	s.Bind("inner", ConcreteValue(solver.IntValue(2)))

	child := s.Fork(nil)
	child.Bind("outer", ConcreteValue(solver.IntValue(99))) // shadows in inner scope copy

	s.PopScope()
	if v, _ := s.Lookup("outer"); v.Const.Int != 1 {
		t.Errorf("parent outer = %s, want 1", v)
	}

	child.PopScope()
	if v, _ := child.Lookup("outer"); v.Const.Int != 1 {
		t.Errorf("child outer after pop = %s, want 1", v)
	}
}

func TestFrameScopeIsolation(t *testing.T) {
	s := NewState(ir.NodeID(0), 10)
	s.Bind("x", ConcreteValue(solver.IntValue(1)))

	s.PushFrame(Frame{Fn: ir.NodeID(9), ReturnTarget: "r"})
	if _, ok := s.Lookup("x"); ok {
		t.Error("callee frame resolved a caller local")
	}
	s.Bind("x", ConcreteValue(solver.IntValue(2)))
	s.Bind("tmp", UnknownValue())

	s.PopFrame()
	if v, ok := s.Lookup("x"); !ok || v.Const.Int != 1 {
		t.Errorf("caller x = %s after frame pop, want 1", v)
	}
	if _, ok := s.Lookup("tmp"); ok {
		t.Error("callee local visible after frame pop")
	}
}

func TestForkCopiesFrameSavedScopes(t *testing.T) {
	s := NewState(ir.NodeID(0), 10)
	s.Bind("x", ConcreteValue(solver.IntValue(1)))
	s.PushFrame(Frame{Fn: ir.NodeID(9)})

	child := s.Fork(nil)
	child.PopFrame()
	child.Bind("x", ConcreteValue(solver.IntValue(2)))

	s.PopFrame()
	if v, _ := s.Lookup("x"); v.Const.Int != 1 {
		t.Errorf("parent x = %s, want 1 (child wrote through a shared saved scope)", v)
	}
}

func TestContainerCopyOnWrite(t *testing.T) {
	idx := solver.Const(solver.IntValue(0))
	base := NewContainer()
	updated := base.WithElem(idx, ConcreteValue(solver.StringValue("v")))

	if _, ok := base.Elem(idx); ok {
		t.Error("original container should not see the write")
	}
	e, ok := updated.Elem(idx)
	if !ok || e.Const.Str != "v" {
		t.Errorf("updated[0] = %s, %v; want v", e, ok)
	}

	// Unwritten index reads back Unknown.
	other, ok := updated.Elem(solver.Var("i"))
	if ok || other.Kind != Unknown {
		t.Errorf("unwritten index = %s, %v; want unknown, false", other, ok)
	}
}

func TestDegrade(t *testing.T) {
	s := NewState(ir.NodeID(0), 10)
	s.Degrade(0.5, "solver unknown at app.py:3")
	s.Degrade(0.5, "unsupported construct")

	if s.Confidence != 0.25 {
		t.Errorf("Confidence = %v, want 0.25", s.Confidence)
	}
	if len(s.Gaps) != 2 {
		t.Errorf("Gaps = %v, want 2 entries", s.Gaps)
	}
}

func TestFrames(t *testing.T) {
	s := NewState(ir.NodeID(3), 10)
	if s.Depth() != 1 || s.Frame().Fn != ir.NodeID(3) {
		t.Fatalf("entry frame wrong: depth=%d", s.Depth())
	}
	s.PushFrame(Frame{Fn: ir.NodeID(9), CallSite: ir.NodeID(4), ReturnTarget: "r"})
	if s.Depth() != 2 {
		t.Fatalf("Depth = %d, want 2", s.Depth())
	}
	f := s.PopFrame()
	if f.ReturnTarget != "r" || s.Depth() != 1 {
		t.Errorf("PopFrame = %+v, depth %d", f, s.Depth())
	}
}
