// Package ir defines the unified intermediate representation consumed by the
// analysis core. The IR is a flat arena of nodes addressed by NodeID: parent
// and child links are indices, never pointers, so the graph can be shared
// read-only across workers and can never form an ownership cycle.
//
// The node graph is produced by a per-language frontend (see internal/irload)
// and is immutable for the duration of an analysis run.
package ir

import (
	"errors"
	"fmt"
)

// ErrMalformedIR reports a structural invariant violation in the node graph:
// a dangling reference, a cycle in the statement tree, or a node whose child
// layout does not match its kind. It is the only fatal error kind in the
// core; it aborts analysis of the enclosing function, never the whole run.
var ErrMalformedIR = errors.New("malformed IR")

// NodeID is an index into a Graph's node arena. NoNode marks an absent link.
type NodeID int32

// NoNode is the null NodeID.
const NoNode NodeID = -1

// Kind is the closed tag of a Node variant. Visitors match exhaustively on
// Kind; unknown kinds route to the unsupported-construct degradation path
// rather than panicking.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindModule
	KindFunctionDef
	KindClassDef
	KindBlock
	KindCall
	KindBinaryOp
	KindUnaryOp
	KindAssign
	KindIf
	KindLoop
	KindReturn
	KindLiteral
	KindIdentifier
	KindAttribute
	KindSubscript
	KindImport
	KindParam
)

var kindNames = map[Kind]string{
	KindInvalid:     "invalid",
	KindModule:      "module",
	KindFunctionDef: "func",
	KindClassDef:    "class",
	KindBlock:       "block",
	KindCall:        "call",
	KindBinaryOp:    "binop",
	KindUnaryOp:     "unop",
	KindAssign:      "assign",
	KindIf:          "if",
	KindLoop:        "loop",
	KindReturn:      "return",
	KindLiteral:     "literal",
	KindIdentifier:  "ident",
	KindAttribute:   "attr",
	KindSubscript:   "subscript",
	KindImport:      "import",
	KindParam:       "param",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// TypeHint is the static type of a value when the frontend knows it.
type TypeHint uint8

const (
	TypeUnknown TypeHint = iota
	TypeInt
	TypeBool
	TypeString
	TypeFloat
	TypeList
	TypeMap
	TypeObject
)

var typeNames = map[TypeHint]string{
	TypeUnknown: "unknown",
	TypeInt:     "int",
	TypeBool:    "bool",
	TypeString:  "string",
	TypeFloat:   "float",
	TypeList:    "list",
	TypeMap:     "map",
	TypeObject:  "object",
}

func (t TypeHint) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Location is a stable, source-addressable node identity.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Col  int    `json:"col,omitempty"`
}

func (l Location) String() string {
	if l.Col > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// IsZero reports whether the location carries no position.
func (l Location) IsZero() bool { return l.File == "" && l.Line == 0 }

// LitKind tags a literal payload.
type LitKind uint8

const (
	LitInt LitKind = iota
	LitBool
	LitString
	LitFloat
	LitNone
)

// Literal is the constant payload of a KindLiteral node.
type Literal struct {
	Kind  LitKind `json:"kind"`
	Int   int64   `json:"int,omitempty"`
	Bool  bool    `json:"bool,omitempty"`
	Str   string  `json:"str,omitempty"`
	Float float64 `json:"float,omitempty"`
}

// Node is one vertex of the IR graph. The meaning of Name and Children
// depends on Kind:
//
//	Module       Name=module path; Children=top-level statements and defs
//	FunctionDef  Name=function name; Children=[KindParam..., body KindBlock]
//	ClassDef     Name=class name; Children=[methods...]
//	Block        Children=statements in order
//	Call         Children=[callee expr, args...]
//	BinaryOp     Name=operator ("+", "<", "and", ...); Children=[lhs, rhs]
//	UnaryOp      Name=operator ("-", "not"); Children=[operand]
//	Assign       Children=[target, value]
//	If           Children=[cond, then Block] or [cond, then Block, else Block]
//	Loop         Children=[cond, body Block]
//	Return       Children=[value] or empty
//	Literal      Lit holds the payload
//	Identifier   Name=variable name
//	Attribute    Name=attribute; Children=[object]
//	Subscript    Children=[object, index]
//	Import       Name=imported module path
//	Param        Name=parameter name
type Node struct {
	ID       NodeID   `json:"id"`
	Kind     Kind     `json:"kind"`
	Loc      Location `json:"loc"`
	TypeHint TypeHint `json:"type,omitempty"`
	Name     string   `json:"name,omitempty"`
	Lit      *Literal `json:"lit,omitempty"`
	Parent   NodeID   `json:"parent"`
	Children []NodeID `json:"children,omitempty"`
}

// ImportEdge is a module-level dependency edge.
type ImportEdge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Loc  Location `json:"loc"`
}

// Module groups the top-level definitions of one source file/module.
type Module struct {
	Name  string   `json:"name"`
	File  string   `json:"file"`
	Root  NodeID   `json:"root"`
	Funcs []NodeID `json:"funcs,omitempty"`
}

// Graph is the arena-backed IR for one analysis run. It is built once by a
// frontend and read-only afterwards; the core never mutates it.
type Graph struct {
	Nodes   []Node
	Modules []Module
	Imports []ImportEdge

	// Funcs maps qualified function name ("module.func") to its
	// FunctionDef node.
	Funcs map[string]NodeID
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{Funcs: make(map[string]NodeID)}
}

// Valid reports whether id addresses a node in the arena.
func (g *Graph) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(g.Nodes)
}

// Node returns the node for id, or nil if id is out of range.
func (g *Graph) Node(id NodeID) *Node {
	if !g.Valid(id) {
		return nil
	}
	return &g.Nodes[id]
}

// Kind returns the kind of id, or KindInvalid for a dangling reference.
func (g *Graph) Kind(id NodeID) Kind {
	if n := g.Node(id); n != nil {
		return n.Kind
	}
	return KindInvalid
}

// Loc returns the source location of id, or the zero Location.
func (g *Graph) Loc(id NodeID) Location {
	if n := g.Node(id); n != nil {
		return n.Loc
	}
	return Location{}
}

// Func resolves a qualified function name to its FunctionDef node.
func (g *Graph) Func(qualified string) (NodeID, bool) {
	id, ok := g.Funcs[qualified]
	return id, ok
}

// FuncName returns the qualified name of a FunctionDef node, walking the
// parent chain to the enclosing module.
func (g *Graph) FuncName(fn NodeID) string {
	n := g.Node(fn)
	if n == nil {
		return ""
	}
	mod := g.ModuleOf(fn)
	if mod == "" {
		return n.Name
	}
	return mod + "." + n.Name
}

// ModuleOf returns the name of the module enclosing id, or "".
func (g *Graph) ModuleOf(id NodeID) string {
	for g.Valid(id) {
		n := &g.Nodes[id]
		if n.Kind == KindModule {
			return n.Name
		}
		id = n.Parent
	}
	return ""
}

// EnclosingFunc walks the parent chain to the nearest FunctionDef, or NoNode.
func (g *Graph) EnclosingFunc(id NodeID) NodeID {
	for g.Valid(id) {
		n := &g.Nodes[id]
		if n.Kind == KindFunctionDef {
			return id
		}
		id = n.Parent
	}
	return NoNode
}

// Params returns the parameter nodes of a FunctionDef in declaration order.
func (g *Graph) Params(fn NodeID) []NodeID {
	n := g.Node(fn)
	if n == nil || n.Kind != KindFunctionDef {
		return nil
	}
	var params []NodeID
	for _, c := range n.Children {
		if g.Kind(c) == KindParam {
			params = append(params, c)
		}
	}
	return params
}

// Body returns the body Block of a FunctionDef, or NoNode.
func (g *Graph) Body(fn NodeID) NodeID {
	n := g.Node(fn)
	if n == nil || n.Kind != KindFunctionDef {
		return NoNode
	}
	for _, c := range n.Children {
		if g.Kind(c) == KindBlock {
			return c
		}
	}
	return NoNode
}

// CalleeName returns the textual callee of a Call node: the identifier name
// for f(x), or the dotted attribute path for a method call. Returns "" when
// the callee is not statically nameable (dynamic dispatch), which callers
// must treat as an unresolved target.
func (g *Graph) CalleeName(call NodeID) string {
	n := g.Node(call)
	if n == nil || n.Kind != KindCall || len(n.Children) == 0 {
		return ""
	}
	return g.DottedName(n.Children[0])
}

// DottedName renders an Identifier or Attribute chain as "a.b.c", or ""
// when the expression is not a plain name chain.
func (g *Graph) DottedName(id NodeID) string {
	n := g.Node(id)
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindIdentifier:
		return n.Name
	case KindAttribute:
		if len(n.Children) != 1 {
			return ""
		}
		base := g.DottedName(n.Children[0])
		if base == "" {
			return ""
		}
		return base + "." + n.Name
	default:
		return ""
	}
}

// ResolveCallee binds a Call node to a FunctionDef. Resolution prefers the
// enclosing module, then an exact qualified match, then a unique suffix
// match across modules (import-qualified calls). The second result is false
// for external or dynamically dispatched callees.
func (g *Graph) ResolveCallee(call NodeID) (NodeID, bool) {
	name := g.CalleeName(call)
	if name == "" {
		return NoNode, false
	}
	if mod := g.ModuleOf(call); mod != "" {
		if fn, ok := g.Funcs[mod+"."+name]; ok {
			return fn, true
		}
	}
	if fn, ok := g.Funcs[name]; ok {
		return fn, true
	}
	match := NoNode
	count := 0
	for qualified, fn := range g.Funcs {
		if suffixMatch(qualified, name) {
			match = fn
			count++
		}
	}
	if count == 1 {
		return match, true
	}
	return NoNode, false
}

func suffixMatch(qualified, name string) bool {
	if len(qualified) <= len(name) {
		return false
	}
	return qualified[len(qualified)-len(name)-1] == '.' && qualified[len(qualified)-len(name):] == name
}

// Args returns the argument expressions of a Call node.
func (g *Graph) Args(call NodeID) []NodeID {
	n := g.Node(call)
	if n == nil || n.Kind != KindCall || len(n.Children) < 2 {
		return nil
	}
	return n.Children[1:]
}
