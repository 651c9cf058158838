// Package symbolic holds the value and state model for path exploration:
// symbolic values, structurally-shared path conditions, scope-chained
// variable bindings, and the fork discipline that keeps sibling states
// independent.
package symbolic

import (
	"fmt"

	"github.com/dkarev/symflow/internal/solver"
)

// ValueKind tags a Value variant.
type ValueKind uint8

const (
	// Concrete is a fully known scalar.
	Concrete ValueKind = iota
	// Symbolic is a solver term over symbolic inputs.
	Symbolic
	// Container is a symbolic map from index expression to element value;
	// containers are never fully concretized.
	Container
	// Unknown is the conservative top element: nothing is known about the
	// value. Unknown values taint feasibility checks toward "assume
	// feasible".
	Unknown
)

func (k ValueKind) String() string {
	switch k {
	case Concrete:
		return "concrete"
	case Symbolic:
		return "symbolic"
	case Container:
		return "container"
	case Unknown:
		return "unknown"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a symbolic value: a concrete scalar, a solver term, a symbolic
// container, or Unknown. Values are immutable; updates produce new Values.
type Value struct {
	Kind  ValueKind
	Const solver.Value      // Concrete payload
	Term  *solver.Term      // Symbolic payload
	Elems map[string]*Value // Container: canonical index term → element
}

// ConcreteValue wraps a scalar constant.
func ConcreteValue(v solver.Value) *Value {
	return &Value{Kind: Concrete, Const: v}
}

// SymbolicValue wraps a solver term.
func SymbolicValue(t *solver.Term) *Value {
	return &Value{Kind: Symbolic, Term: t}
}

// UnknownValue is the conservative top value.
func UnknownValue() *Value {
	return &Value{Kind: Unknown}
}

// NewContainer returns an empty symbolic container.
func NewContainer() *Value {
	return &Value{Kind: Container, Elems: map[string]*Value{}}
}

// AsTerm renders the value as a solver term. Concrete values become constant
// terms; Unknown and Container values have no term form and return nil.
func (v *Value) AsTerm() *solver.Term {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case Concrete:
		return solver.Const(v.Const)
	case Symbolic:
		return v.Term
	}
	return nil
}

// WithElem returns a copy of a container value with index bound to elem.
// The receiver is left untouched so forked states never observe the update.
func (v *Value) WithElem(index *solver.Term, elem *Value) *Value {
	if v == nil || v.Kind != Container {
		return UnknownValue()
	}
	elems := make(map[string]*Value, len(v.Elems)+1)
	for k, e := range v.Elems {
		elems[k] = e
	}
	elems[indexKey(index)] = elem
	return &Value{Kind: Container, Elems: elems}
}

// Elem looks up the element bound at index. The second result is false when
// the index expression has never been written, in which case callers must
// treat the element conservatively.
func (v *Value) Elem(index *solver.Term) (*Value, bool) {
	if v == nil || v.Kind != Container {
		return UnknownValue(), false
	}
	e, ok := v.Elems[indexKey(index)]
	if !ok {
		return UnknownValue(), false
	}
	return e, true
}

func indexKey(index *solver.Term) string {
	if index == nil {
		return "?"
	}
	return index.String()
}

func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	switch v.Kind {
	case Concrete:
		return v.Const.String()
	case Symbolic:
		return v.Term.String()
	case Container:
		return fmt.Sprintf("container(%d elems)", len(v.Elems))
	case Unknown:
		return "unknown"
	}
	return v.Kind.String()
}
