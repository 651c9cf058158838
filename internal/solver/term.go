// Package solver provides the symbolic term language and the constraint
// solver adapter used by the execution engine. The adapter fronts a pluggable
// Backend, caches results by a canonical hash of the conjunct set, enforces a
// per-query timeout, and collapses concurrent queries for the same key into a
// single backend invocation.
package solver

import (
	"fmt"
	"strconv"
	"strings"
)

// Op tags a Term variant.
type Op uint8

const (
	OpInvalid Op = iota
	OpVar
	OpConst
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpConcat
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNot
	OpNeg
)

var opNames = map[Op]string{
	OpVar:    "var",
	OpConst:  "const",
	OpAdd:    "+",
	OpSub:    "-",
	OpMul:    "*",
	OpDiv:    "/",
	OpMod:    "%",
	OpConcat: "++",
	OpEq:     "==",
	OpNe:     "!=",
	OpLt:     "<",
	OpLe:     "<=",
	OpGt:     ">",
	OpGe:     ">=",
	OpAnd:    "and",
	OpOr:     "or",
	OpNot:    "not",
	OpNeg:    "neg",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// ValueKind tags a constant Value.
type ValueKind uint8

const (
	ValInt ValueKind = iota
	ValBool
	ValString
	ValFloat
	ValNone
)

// Value is a concrete scalar: the payload of OpConst terms and of solver
// models.
type Value struct {
	Kind  ValueKind
	Int   int64
	Bool  bool
	Str   string
	Float float64
}

func (v Value) String() string {
	switch v.Kind {
	case ValInt:
		return strconv.FormatInt(v.Int, 10)
	case ValBool:
		return strconv.FormatBool(v.Bool)
	case ValString:
		return strconv.Quote(v.Str)
	case ValFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case ValNone:
		return "none"
	}
	return "?"
}

// Truthy reports the boolean interpretation of the value.
func (v Value) Truthy() bool {
	switch v.Kind {
	case ValInt:
		return v.Int != 0
	case ValBool:
		return v.Bool
	case ValString:
		return v.Str != ""
	case ValFloat:
		return v.Float != 0
	}
	return false
}

// IntValue wraps an int64.
func IntValue(v int64) Value { return Value{Kind: ValInt, Int: v} }

// BoolValue wraps a bool.
func BoolValue(v bool) Value { return Value{Kind: ValBool, Bool: v} }

// StringValue wraps a string.
func StringValue(v string) Value { return Value{Kind: ValString, Str: v} }

// FloatValue wraps a float64.
func FloatValue(v float64) Value { return Value{Kind: ValFloat, Float: v} }

// NoneValue is the null constant.
func NoneValue() Value { return Value{Kind: ValNone} }

// Term is an immutable symbolic expression. Terms are shared structurally:
// building a new term never mutates its operands, so path conditions can
// alias sub-terms across forked states.
type Term struct {
	Op   Op
	Name string // OpVar: the symbolic variable name
	Val  Value  // OpConst: the constant payload
	Args []*Term
}

// Var returns a symbolic variable reference.
func Var(name string) *Term { return &Term{Op: OpVar, Name: name} }

// Const returns a constant term.
func Const(v Value) *Term { return &Term{Op: OpConst, Val: v} }

// Binary returns a two-operand term.
func Binary(op Op, lhs, rhs *Term) *Term {
	return &Term{Op: op, Args: []*Term{lhs, rhs}}
}

// Not returns the logical negation of t, collapsing double negation and
// flipping comparison operators where possible so that negated branch
// conditions stay inside the backend's decidable fragment.
func Not(t *Term) *Term {
	if t == nil {
		return nil
	}
	switch t.Op {
	case OpNot:
		return t.Args[0]
	case OpEq:
		return Binary(OpNe, t.Args[0], t.Args[1])
	case OpNe:
		return Binary(OpEq, t.Args[0], t.Args[1])
	case OpLt:
		return Binary(OpGe, t.Args[0], t.Args[1])
	case OpLe:
		return Binary(OpGt, t.Args[0], t.Args[1])
	case OpGt:
		return Binary(OpLe, t.Args[0], t.Args[1])
	case OpGe:
		return Binary(OpLt, t.Args[0], t.Args[1])
	case OpConst:
		return Const(BoolValue(!t.Val.Truthy()))
	}
	return &Term{Op: OpNot, Args: []*Term{t}}
}

// String renders the term as a canonical s-expression. Two structurally
// equal terms always render identically, which the adapter relies on for
// cache keying.
func (t *Term) String() string {
	if t == nil {
		return "nil"
	}
	switch t.Op {
	case OpVar:
		return t.Name
	case OpConst:
		return t.Val.String()
	}
	var sb strings.Builder
	sb.WriteByte('(')
	sb.WriteString(t.Op.String())
	for _, a := range t.Args {
		sb.WriteByte(' ')
		sb.WriteString(a.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Compare folds a comparison operator over two constants. known is false
// when the operand kinds are incomparable under op.
func Compare(op Op, a, b Value) (result, known bool) {
	return compareValues(op, a, b)
}

// Vars appends the free variables of t to out, in first-occurrence order.
func (t *Term) Vars(out []string) []string {
	if t == nil {
		return out
	}
	if t.Op == OpVar {
		for _, v := range out {
			if v == t.Name {
				return out
			}
		}
		return append(out, t.Name)
	}
	for _, a := range t.Args {
		out = a.Vars(out)
	}
	return out
}
