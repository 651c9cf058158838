package ir

// Builder constructs a Graph incrementally. Frontends allocate nodes through
// it so that IDs, parent links, and the function index stay consistent.
// A Builder is not safe for concurrent use.
type Builder struct {
	g    *Graph
	file string
}

// NewBuilder returns a Builder targeting a fresh graph.
func NewBuilder() *Builder {
	return &Builder{g: NewGraph()}
}

// Graph finalizes and returns the built graph.
func (b *Builder) Graph() *Graph { return b.g }

// SetFile sets the file recorded on subsequently added nodes.
func (b *Builder) SetFile(file string) { b.file = file }

func (b *Builder) add(n Node) NodeID {
	id := NodeID(len(b.g.Nodes))
	n.ID = id
	n.Parent = NoNode
	if n.Loc.File == "" {
		n.Loc.File = b.file
	}
	b.g.Nodes = append(b.g.Nodes, n)
	for _, c := range n.Children {
		if b.g.Valid(c) {
			b.g.Nodes[c].Parent = id
		}
	}
	return id
}

// Module adds a module root holding the given top-level nodes and registers
// any FunctionDef children in the function index.
func (b *Builder) Module(name string, children ...NodeID) NodeID {
	id := b.add(Node{Kind: KindModule, Name: name, Children: children})
	mod := Module{Name: name, File: b.file, Root: id}
	for _, c := range children {
		if b.g.Kind(c) == KindFunctionDef {
			mod.Funcs = append(mod.Funcs, c)
			b.g.Funcs[name+"."+b.g.Nodes[c].Name] = c
		}
	}
	b.g.Modules = append(b.g.Modules, mod)
	return id
}

// Function adds a FunctionDef with the given parameter names and body
// statements. The body is wrapped in a Block node.
func (b *Builder) Function(name string, line int, params []string, body ...NodeID) NodeID {
	children := make([]NodeID, 0, len(params)+1)
	for _, p := range params {
		children = append(children, b.add(Node{Kind: KindParam, Name: p, Loc: Location{Line: line}}))
	}
	children = append(children, b.Block(line, body...))
	return b.add(Node{Kind: KindFunctionDef, Name: name, Loc: Location{Line: line}, Children: children})
}

// Block adds a statement block.
func (b *Builder) Block(line int, stmts ...NodeID) NodeID {
	return b.add(Node{Kind: KindBlock, Loc: Location{Line: line}, Children: stmts})
}

// Ident adds an identifier reference.
func (b *Builder) Ident(name string, line int) NodeID {
	return b.add(Node{Kind: KindIdentifier, Name: name, Loc: Location{Line: line}})
}

// Attr adds an attribute access base.attr.
func (b *Builder) Attr(base NodeID, attr string, line int) NodeID {
	return b.add(Node{Kind: KindAttribute, Name: attr, Loc: Location{Line: line}, Children: []NodeID{base}})
}

// Subscript adds an index access base[index].
func (b *Builder) Subscript(base, index NodeID, line int) NodeID {
	return b.add(Node{Kind: KindSubscript, Loc: Location{Line: line}, Children: []NodeID{base, index}})
}

// Call adds a call of callee with the given arguments.
func (b *Builder) Call(callee NodeID, line int, args ...NodeID) NodeID {
	children := append([]NodeID{callee}, args...)
	return b.add(Node{Kind: KindCall, Loc: Location{Line: line}, Children: children})
}

// CallNamed adds a call of a plain identifier callee.
func (b *Builder) CallNamed(callee string, line int, args ...NodeID) NodeID {
	return b.Call(b.Ident(callee, line), line, args...)
}

// Assign adds target = value.
func (b *Builder) Assign(target, value NodeID, line int) NodeID {
	return b.add(Node{Kind: KindAssign, Loc: Location{Line: line}, Children: []NodeID{target, value}})
}

// BinOp adds lhs op rhs.
func (b *Builder) BinOp(op string, lhs, rhs NodeID, line int) NodeID {
	return b.add(Node{Kind: KindBinaryOp, Name: op, Loc: Location{Line: line}, Children: []NodeID{lhs, rhs}})
}

// UnOp adds op operand.
func (b *Builder) UnOp(op string, operand NodeID, line int) NodeID {
	return b.add(Node{Kind: KindUnaryOp, Name: op, Loc: Location{Line: line}, Children: []NodeID{operand}})
}

// If adds a conditional with an optional else block (pass NoNode for none).
func (b *Builder) If(cond, then, els NodeID, line int) NodeID {
	children := []NodeID{cond, then}
	if els != NoNode {
		children = append(children, els)
	}
	return b.add(Node{Kind: KindIf, Loc: Location{Line: line}, Children: children})
}

// Loop adds a while-style loop.
func (b *Builder) Loop(cond, body NodeID, line int) NodeID {
	return b.add(Node{Kind: KindLoop, Loc: Location{Line: line}, Children: []NodeID{cond, body}})
}

// Return adds a return statement; pass NoNode for a bare return.
func (b *Builder) Return(value NodeID, line int) NodeID {
	n := Node{Kind: KindReturn, Loc: Location{Line: line}}
	if value != NoNode {
		n.Children = []NodeID{value}
	}
	return b.add(n)
}

// Int adds an integer literal.
func (b *Builder) Int(v int64, line int) NodeID {
	return b.add(Node{Kind: KindLiteral, TypeHint: TypeInt, Loc: Location{Line: line}, Lit: &Literal{Kind: LitInt, Int: v}})
}

// Bool adds a boolean literal.
func (b *Builder) Bool(v bool, line int) NodeID {
	return b.add(Node{Kind: KindLiteral, TypeHint: TypeBool, Loc: Location{Line: line}, Lit: &Literal{Kind: LitBool, Bool: v}})
}

// Str adds a string literal.
func (b *Builder) Str(v string, line int) NodeID {
	return b.add(Node{Kind: KindLiteral, TypeHint: TypeString, Loc: Location{Line: line}, Lit: &Literal{Kind: LitString, Str: v}})
}

// Float adds a float literal.
func (b *Builder) Float(v float64, line int) NodeID {
	return b.add(Node{Kind: KindLiteral, TypeHint: TypeFloat, Loc: Location{Line: line}, Lit: &Literal{Kind: LitFloat, Float: v}})
}

// None adds a null literal.
func (b *Builder) None(line int) NodeID {
	return b.add(Node{Kind: KindLiteral, Loc: Location{Line: line}, Lit: &Literal{Kind: LitNone}})
}

// Import adds a module import and records the edge when the enclosing module
// name is supplied.
func (b *Builder) Import(from, to string, line int) NodeID {
	id := b.add(Node{Kind: KindImport, Name: to, Loc: Location{Line: line}})
	b.g.Imports = append(b.g.Imports, ImportEdge{From: from, To: to, Loc: Location{File: b.file, Line: line}})
	return id
}
