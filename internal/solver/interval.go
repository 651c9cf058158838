package solver

import (
	"context"
	"math"
)

// IntervalBackend is the built-in decision procedure. It covers the fragment
// the engine actually emits for branch conditions: integer comparisons
// against constants, equalities over int/bool/string constants, boolean
// connectives, and constant folding. Everything outside that fragment
// answers Unknown, which the engine treats as feasible with lowered
// confidence.
//
// The backend is stateless and deterministic; all per-query scratch lives on
// the stack of Check.
type IntervalBackend struct{}

// NewIntervalBackend returns the built-in backend.
func NewIntervalBackend() *IntervalBackend { return &IntervalBackend{} }

// interval is a closed integer range [lo, hi].
type interval struct {
	lo, hi int64
}

func fullInterval() interval { return interval{math.MinInt64, math.MaxInt64} }

func (iv interval) empty() bool { return iv.lo > iv.hi }

func (iv interval) intersect(other interval) interval {
	if other.lo > iv.lo {
		iv.lo = other.lo
	}
	if other.hi < iv.hi {
		iv.hi = other.hi
	}
	return iv
}

// Check decides the conjunction of conjuncts within the interval fragment.
func (b *IntervalBackend) Check(ctx context.Context, conjuncts []*Term) Result {
	ivs := make(map[string]interval)
	bindings := make(map[string]Value)
	complete := true

	var flat []*Term
	for _, c := range conjuncts {
		flat = flatten(c, flat)
	}

	for _, c := range flat {
		select {
		case <-ctx.Done():
			return Result{Status: Unknown, Reason: ErrSolverTimeout.Error()}
		default:
		}

		switch verdict := b.assume(c, ivs, bindings); verdict {
		case assumeUnsat:
			return Result{Status: Unsat}
		case assumeUnknown:
			complete = false
		}
	}

	for name, iv := range ivs {
		if iv.empty() {
			debugf("interval contradiction on %s", name)
			return Result{Status: Unsat}
		}
		if bound, ok := bindings[name]; ok && bound.Kind == ValInt {
			if bound.Int < iv.lo || bound.Int > iv.hi {
				return Result{Status: Unsat}
			}
		}
	}

	if !complete {
		return Result{Status: Unknown, Reason: "outside decidable fragment"}
	}

	// Build a witness model: bound values first, then the low end of each
	// interval.
	model := make(map[string]Value, len(ivs)+len(bindings))
	for name, v := range bindings {
		model[name] = v
	}
	for name, iv := range ivs {
		if _, ok := model[name]; !ok {
			model[name] = IntValue(iv.lo)
		}
	}
	return Result{Status: Sat, Model: model}
}

// flatten splits nested conjunctions into a flat conjunct list.
func flatten(t *Term, out []*Term) []*Term {
	if t == nil {
		return out
	}
	if t.Op == OpAnd {
		for _, a := range t.Args {
			out = flatten(a, out)
		}
		return out
	}
	return append(out, t)
}

type assumeVerdict uint8

const (
	assumeOK assumeVerdict = iota
	assumeUnsat
	assumeUnknown
)

// assume narrows ivs/bindings with one conjunct.
func (b *IntervalBackend) assume(t *Term, ivs map[string]interval, bindings map[string]Value) assumeVerdict {
	if t == nil {
		return assumeUnknown
	}
	switch t.Op {
	case OpConst:
		if t.Val.Truthy() {
			return assumeOK
		}
		return assumeUnsat

	case OpVar:
		// A bare variable used as a condition: truthiness of an
		// unconstrained symbol is open.
		return assumeUnknown

	case OpNot:
		return b.assume(Not(t.Args[0]), ivs, bindings)

	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return b.assumeCompare(t, ivs, bindings)

	case OpOr:
		// A disjunction is satisfiable if either side might be; we only
		// prove Unsat when both sides are independently Unsat.
		left := b.checkIsolated(t.Args[0])
		right := b.checkIsolated(t.Args[1])
		if left == assumeUnsat && right == assumeUnsat {
			return assumeUnsat
		}
		if left == assumeOK || right == assumeOK {
			return assumeOK
		}
		return assumeUnknown
	}
	return assumeUnknown
}

// checkIsolated evaluates a term against fresh state, for disjunct probing.
func (b *IntervalBackend) checkIsolated(t *Term) assumeVerdict {
	ivs := make(map[string]interval)
	bindings := make(map[string]Value)
	v := b.assume(t, ivs, bindings)
	if v != assumeOK {
		return v
	}
	for _, iv := range ivs {
		if iv.empty() {
			return assumeUnsat
		}
	}
	return assumeOK
}

func (b *IntervalBackend) assumeCompare(t *Term, ivs map[string]interval, bindings map[string]Value) assumeVerdict {
	if len(t.Args) != 2 {
		return assumeUnknown
	}
	lhs, rhs := t.Args[0], t.Args[1]

	// Both sides constant: fold.
	if lhs.Op == OpConst && rhs.Op == OpConst {
		ok, known := compareValues(t.Op, lhs.Val, rhs.Val)
		if !known {
			return assumeUnknown
		}
		if ok {
			return assumeOK
		}
		return assumeUnsat
	}

	// Normalize to var OP const.
	op := t.Op
	if lhs.Op == OpConst && rhs.Op == OpVar {
		lhs, rhs = rhs, lhs
		op = swapCompare(op)
	}
	if lhs.Op != OpVar || rhs.Op != OpConst {
		return assumeUnknown
	}

	name, c := lhs.Name, rhs.Val
	switch c.Kind {
	case ValInt:
		iv, ok := ivs[name]
		if !ok {
			iv = fullInterval()
		}
		switch op {
		case OpEq:
			iv = iv.intersect(interval{c.Int, c.Int})
		case OpNe:
			// Representable only when it splits an endpoint.
			if iv.lo == c.Int {
				iv.lo++
			} else if iv.hi == c.Int {
				iv.hi--
			}
		case OpLt:
			iv = iv.intersect(interval{math.MinInt64, c.Int - 1})
		case OpLe:
			iv = iv.intersect(interval{math.MinInt64, c.Int})
		case OpGt:
			iv = iv.intersect(interval{c.Int + 1, math.MaxInt64})
		case OpGe:
			iv = iv.intersect(interval{c.Int, math.MaxInt64})
		default:
			return assumeUnknown
		}
		ivs[name] = iv
		if iv.empty() {
			return assumeUnsat
		}
		return assumeOK

	case ValBool, ValString:
		switch op {
		case OpEq:
			if prev, ok := bindings[name]; ok {
				if eq, known := compareValues(OpEq, prev, c); known && !eq {
					return assumeUnsat
				}
			}
			bindings[name] = c
			return assumeOK
		case OpNe:
			if prev, ok := bindings[name]; ok {
				if eq, known := compareValues(OpEq, prev, c); known && eq {
					return assumeUnsat
				}
				return assumeOK
			}
			return assumeOK
		}
	}
	return assumeUnknown
}

func swapCompare(op Op) Op {
	switch op {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	}
	return op
}

// compareValues folds a comparison over two constants. known is false when
// the kinds are incomparable.
func compareValues(op Op, a, b Value) (result, known bool) {
	if a.Kind != b.Kind {
		// Mixed int/float comparisons are folded through float64.
		if (a.Kind == ValInt && b.Kind == ValFloat) || (a.Kind == ValFloat && b.Kind == ValInt) {
			return compareFloats(op, asFloat(a), asFloat(b)), true
		}
		if op == OpEq {
			return false, true
		}
		if op == OpNe {
			return true, true
		}
		return false, false
	}
	switch a.Kind {
	case ValInt:
		return compareInts(op, a.Int, b.Int), true
	case ValFloat:
		return compareFloats(op, a.Float, b.Float), true
	case ValBool:
		switch op {
		case OpEq:
			return a.Bool == b.Bool, true
		case OpNe:
			return a.Bool != b.Bool, true
		}
		return false, false
	case ValString:
		switch op {
		case OpEq:
			return a.Str == b.Str, true
		case OpNe:
			return a.Str != b.Str, true
		case OpLt:
			return a.Str < b.Str, true
		case OpLe:
			return a.Str <= b.Str, true
		case OpGt:
			return a.Str > b.Str, true
		case OpGe:
			return a.Str >= b.Str, true
		}
	case ValNone:
		switch op {
		case OpEq:
			return true, true
		case OpNe:
			return false, true
		}
	}
	return false, false
}

func compareInts(op Op, a, b int64) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	}
	return false
}

func compareFloats(op Op, a, b float64) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	}
	return false
}

func asFloat(v Value) float64 {
	if v.Kind == ValInt {
		return float64(v.Int)
	}
	return v.Float
}
