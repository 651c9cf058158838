package engine

import (
	"fmt"

	"github.com/dkarev/symflow/internal/ir"
	"github.com/dkarev/symflow/internal/solver"
	"github.com/dkarev/symflow/internal/symbolic"
)

// binOps maps IR operator spellings to solver operators. Frontends may emit
// either the symbolic or the keyword spelling for boolean connectives.
var binOps = map[string]solver.Op{
	"+":   solver.OpAdd,
	"-":   solver.OpSub,
	"*":   solver.OpMul,
	"/":   solver.OpDiv,
	"%":   solver.OpMod,
	"==":  solver.OpEq,
	"!=":  solver.OpNe,
	"<":   solver.OpLt,
	"<=":  solver.OpLe,
	">":   solver.OpGt,
	">=":  solver.OpGe,
	"and": solver.OpAnd,
	"&&":  solver.OpAnd,
	"or":  solver.OpOr,
	"||":  solver.OpOr,
}

// eval computes the symbolic value of an expression in st. Evaluation never
// fails: anything outside the modeled fragment produces Unknown, keeping the
// path alive conservatively.
func (x *Exploration) eval(st *symbolic.State, id ir.NodeID) *symbolic.Value {
	g := x.eng.graph
	n := g.Node(id)
	if n == nil {
		return symbolic.UnknownValue()
	}

	switch n.Kind {
	case ir.KindLiteral:
		return literalValue(n.Lit)

	case ir.KindIdentifier:
		if v, ok := st.Lookup(n.Name); ok {
			return v
		}
		// First read of an unbound name: a free symbolic input.
		return symbolic.SymbolicValue(solver.Var(n.Name))

	case ir.KindAttribute:
		name := g.DottedName(id)
		if name == "" {
			return symbolic.UnknownValue()
		}
		if v, ok := st.Lookup(name); ok {
			return v
		}
		return symbolic.SymbolicValue(solver.Var(name))

	case ir.KindSubscript:
		if len(n.Children) != 2 {
			return symbolic.UnknownValue()
		}
		baseName := g.DottedName(n.Children[0])
		index := x.eval(st, n.Children[1])
		if baseName != "" {
			if base, ok := st.Lookup(baseName); ok && base.Kind == symbolic.Container {
				if elem, ok := base.Elem(index.AsTerm()); ok {
					return elem
				}
			}
		}
		return symbolic.UnknownValue()

	case ir.KindBinaryOp:
		return x.evalBinary(st, n)

	case ir.KindUnaryOp:
		return x.evalUnary(st, n)

	case ir.KindCall:
		// A call in expression position is not stepped into; its result
		// is a fresh symbol tied to the call site.
		name := g.CalleeName(id)
		if name == "" {
			return symbolic.UnknownValue()
		}
		return symbolic.SymbolicValue(solver.Var(fmt.Sprintf("%s@%s", name, n.Loc)))
	}

	return symbolic.UnknownValue()
}

func literalValue(lit *ir.Literal) *symbolic.Value {
	if lit == nil {
		return symbolic.UnknownValue()
	}
	switch lit.Kind {
	case ir.LitInt:
		return symbolic.ConcreteValue(solver.IntValue(lit.Int))
	case ir.LitBool:
		return symbolic.ConcreteValue(solver.BoolValue(lit.Bool))
	case ir.LitString:
		return symbolic.ConcreteValue(solver.StringValue(lit.Str))
	case ir.LitFloat:
		return symbolic.ConcreteValue(solver.FloatValue(lit.Float))
	case ir.LitNone:
		return symbolic.ConcreteValue(solver.NoneValue())
	}
	return symbolic.UnknownValue()
}

func (x *Exploration) evalBinary(st *symbolic.State, n *ir.Node) *symbolic.Value {
	if len(n.Children) != 2 {
		return symbolic.UnknownValue()
	}
	op, ok := binOps[n.Name]
	if !ok {
		return symbolic.UnknownValue()
	}

	lhs := x.eval(st, n.Children[0])
	rhs := x.eval(st, n.Children[1])

	// Concrete operands fold.
	if lhs.Kind == symbolic.Concrete && rhs.Kind == symbolic.Concrete {
		if v, ok := foldBinary(op, lhs.Const, rhs.Const); ok {
			return symbolic.ConcreteValue(v)
		}
		return symbolic.UnknownValue()
	}

	lt, rt := lhs.AsTerm(), rhs.AsTerm()
	if lt == nil || rt == nil {
		return symbolic.UnknownValue()
	}

	// "+" over strings is concatenation in source languages; keep the
	// distinction in the term language.
	if op == solver.OpAdd && (isStringOperand(lhs) || isStringOperand(rhs)) {
		op = solver.OpConcat
	}
	return symbolic.SymbolicValue(solver.Binary(op, lt, rt))
}

func isStringOperand(v *symbolic.Value) bool {
	return v.Kind == symbolic.Concrete && v.Const.Kind == solver.ValString
}

func (x *Exploration) evalUnary(st *symbolic.State, n *ir.Node) *symbolic.Value {
	if len(n.Children) != 1 {
		return symbolic.UnknownValue()
	}
	operand := x.eval(st, n.Children[0])

	switch n.Name {
	case "not", "!":
		if operand.Kind == symbolic.Concrete {
			return symbolic.ConcreteValue(solver.BoolValue(!operand.Const.Truthy()))
		}
		if t := operand.AsTerm(); t != nil {
			return symbolic.SymbolicValue(solver.Not(t))
		}
	case "-":
		if operand.Kind == symbolic.Concrete {
			switch operand.Const.Kind {
			case solver.ValInt:
				return symbolic.ConcreteValue(solver.IntValue(-operand.Const.Int))
			case solver.ValFloat:
				return symbolic.ConcreteValue(solver.FloatValue(-operand.Const.Float))
			}
		}
		if t := operand.AsTerm(); t != nil {
			return symbolic.SymbolicValue(&solver.Term{Op: solver.OpNeg, Args: []*solver.Term{t}})
		}
	}
	return symbolic.UnknownValue()
}

// foldBinary evaluates op over two constants. ok is false for operations the
// engine refuses to fold (division by zero, incompatible kinds), which
// degrade to Unknown instead of faulting.
func foldBinary(op solver.Op, a, b solver.Value) (solver.Value, bool) {
	switch op {
	case solver.OpEq, solver.OpNe, solver.OpLt, solver.OpLe, solver.OpGt, solver.OpGe:
		res, known := solver.Compare(op, a, b)
		if !known {
			return solver.Value{}, false
		}
		return solver.BoolValue(res), true

	case solver.OpAnd:
		return solver.BoolValue(a.Truthy() && b.Truthy()), true
	case solver.OpOr:
		return solver.BoolValue(a.Truthy() || b.Truthy()), true
	}

	// String concatenation via "+".
	if op == solver.OpAdd && a.Kind == solver.ValString && b.Kind == solver.ValString {
		return solver.StringValue(a.Str + b.Str), true
	}

	if a.Kind == solver.ValInt && b.Kind == solver.ValInt {
		switch op {
		case solver.OpAdd:
			return solver.IntValue(a.Int + b.Int), true
		case solver.OpSub:
			return solver.IntValue(a.Int - b.Int), true
		case solver.OpMul:
			return solver.IntValue(a.Int * b.Int), true
		case solver.OpDiv:
			if b.Int == 0 {
				return solver.Value{}, false
			}
			return solver.IntValue(a.Int / b.Int), true
		case solver.OpMod:
			if b.Int == 0 {
				return solver.Value{}, false
			}
			return solver.IntValue(a.Int % b.Int), true
		}
	}

	af, aok := numeric(a)
	bf, bok := numeric(b)
	if aok && bok {
		switch op {
		case solver.OpAdd:
			return solver.FloatValue(af + bf), true
		case solver.OpSub:
			return solver.FloatValue(af - bf), true
		case solver.OpMul:
			return solver.FloatValue(af * bf), true
		case solver.OpDiv:
			if bf == 0 {
				return solver.Value{}, false
			}
			return solver.FloatValue(af / bf), true
		}
	}
	return solver.Value{}, false
}

func numeric(v solver.Value) (float64, bool) {
	switch v.Kind {
	case solver.ValInt:
		return float64(v.Int), true
	case solver.ValFloat:
		return v.Float, true
	}
	return 0, false
}
