package irload

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"

	"golang.org/x/tools/go/packages"

	"github.com/dkarev/symflow/internal/ir"
)

// LoadGoPackages loads Go packages under dir with the standard build
// machinery and converts every function body into IR. Packages that fail to
// load are skipped; a run with zero usable packages is an error.
func LoadGoPackages(dir string, patterns ...string) (*ir.Graph, error) {
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}
	fset := token.NewFileSet()
	cfg := &packages.Config{
		Mode: packages.NeedName | packages.NeedFiles | packages.NeedSyntax,
		Dir:  dir,
		Fset: fset,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}

	conv := newConverter(fset)
	loaded := 0
	for _, pkg := range pkgs {
		if len(pkg.Syntax) == 0 {
			continue
		}
		conv.addPackage(pkg.PkgPath, pkg.Syntax)
		loaded++
	}
	if loaded == 0 {
		return nil, fmt.Errorf("no loadable packages under %s", dir)
	}
	return conv.finish()
}

// LoadGoFiles parses individual Go files without build metadata. Files that
// do not parse are skipped with their error recorded against the result.
func LoadGoFiles(paths ...string) (*ir.Graph, error) {
	fset := token.NewFileSet()
	byPkg := make(map[string][]*ast.File)
	var order []string

	for _, path := range paths {
		f, err := parser.ParseFile(fset, path, nil, 0)
		if err != nil {
			debugf("skipping %s: %v", path, err)
			continue
		}
		name := f.Name.Name
		if _, seen := byPkg[name]; !seen {
			order = append(order, name)
		}
		byPkg[name] = append(byPkg[name], f)
	}
	if len(byPkg) == 0 {
		return nil, fmt.Errorf("no parsable Go files")
	}

	conv := newConverter(fset)
	for _, name := range order {
		conv.addPackage(name, byPkg[name])
	}
	return conv.finish()
}

// converter lowers Go ASTs into the analysis IR. The lowering is
// deliberately partial: constructs outside the modeled fragment become
// opaque identifiers, which downstream analyses treat as fresh symbols.
type converter struct {
	fset *token.FileSet
	b    *ir.Builder
}

func newConverter(fset *token.FileSet) *converter {
	return &converter{fset: fset, b: ir.NewBuilder()}
}

func (c *converter) finish() (*ir.Graph, error) {
	g := c.b.Graph()
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (c *converter) line(pos token.Pos) int {
	return c.fset.Position(pos).Line
}

func (c *converter) addPackage(name string, files []*ast.File) {
	var fns []ir.NodeID
	for _, f := range files {
		c.b.SetFile(c.fset.Position(f.Pos()).Filename)
		for _, imp := range f.Imports {
			path, _ := strconv.Unquote(imp.Path.Value)
			c.b.Import(name, path, c.line(imp.Pos()))
		}
		for _, decl := range f.Decls {
			fd, ok := decl.(*ast.FuncDecl)
			if !ok || fd.Body == nil {
				continue
			}
			fns = append(fns, c.funcDecl(fd))
		}
	}
	c.b.Module(name, fns...)
}

func (c *converter) funcDecl(fd *ast.FuncDecl) ir.NodeID {
	name := fd.Name.Name
	if fd.Recv != nil && len(fd.Recv.List) > 0 {
		if recv := receiverName(fd.Recv.List[0].Type); recv != "" {
			name = recv + "." + name
		}
	}

	var params []string
	for _, field := range fd.Type.Params.List {
		for _, id := range field.Names {
			params = append(params, id.Name)
		}
	}
	return c.b.Function(name, c.line(fd.Pos()), params, c.stmts(fd.Body.List)...)
}

func receiverName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverName(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverName(t.X)
	}
	return ""
}

func (c *converter) stmts(list []ast.Stmt) []ir.NodeID {
	var out []ir.NodeID
	for _, s := range list {
		if id := c.stmt(s); id != ir.NoNode {
			out = append(out, id)
		}
	}
	return out
}

func (c *converter) stmt(s ast.Stmt) ir.NodeID {
	line := c.line(s.Pos())
	switch st := s.(type) {
	case *ast.AssignStmt:
		// Multi-assign lowers pairwise; extra values are dropped.
		n := len(st.Lhs)
		if len(st.Rhs) < n {
			n = len(st.Rhs)
		}
		if n == 1 {
			return c.b.Assign(c.expr(st.Lhs[0]), c.expr(st.Rhs[0]), line)
		}
		pairs := make([]ir.NodeID, 0, n)
		for i := 0; i < n; i++ {
			pairs = append(pairs, c.b.Assign(c.expr(st.Lhs[i]), c.expr(st.Rhs[i]), line))
		}
		return c.b.Block(line, pairs...)

	case *ast.ExprStmt:
		return c.expr(st.X)

	case *ast.ReturnStmt:
		if len(st.Results) == 0 {
			return c.b.Return(ir.NoNode, line)
		}
		return c.b.Return(c.expr(st.Results[0]), line)

	case *ast.IfStmt:
		cond := c.expr(st.Cond)
		then := c.b.Block(c.line(st.Body.Pos()), c.stmts(st.Body.List)...)
		els := ir.NoNode
		switch e := st.Else.(type) {
		case *ast.BlockStmt:
			els = c.b.Block(c.line(e.Pos()), c.stmts(e.List)...)
		case *ast.IfStmt:
			els = c.b.Block(c.line(e.Pos()), c.stmt(e))
		}
		return c.b.If(cond, then, els, line)

	case *ast.ForStmt:
		var cond ir.NodeID
		if st.Cond != nil {
			cond = c.expr(st.Cond)
		} else {
			cond = c.b.Bool(true, line)
		}
		stmts := c.stmts(st.Body.List)
		if st.Post != nil {
			if post := c.stmt(st.Post); post != ir.NoNode {
				stmts = append(stmts, post)
			}
		}
		body := c.b.Block(c.line(st.Body.Pos()), stmts...)
		loop := c.b.Loop(cond, body, line)
		if st.Init != nil {
			return c.b.Block(line, c.stmt(st.Init), loop)
		}
		return loop

	case *ast.BlockStmt:
		return c.b.Block(line, c.stmts(st.List)...)

	case *ast.DeclStmt:
		if gd, ok := st.Decl.(*ast.GenDecl); ok {
			var assigns []ir.NodeID
			for _, spec := range gd.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				for i, id := range vs.Names {
					if i < len(vs.Values) {
						assigns = append(assigns,
							c.b.Assign(c.b.Ident(id.Name, line), c.expr(vs.Values[i]), line))
					}
				}
			}
			if len(assigns) == 1 {
				return assigns[0]
			}
			if len(assigns) > 0 {
				return c.b.Block(line, assigns...)
			}
		}
		return ir.NoNode

	case *ast.IncDecStmt:
		op := "+"
		if st.Tok == token.DEC {
			op = "-"
		}
		target := c.expr(st.X)
		return c.b.Assign(target, c.b.BinOp(op, c.expr(st.X), c.b.Int(1, line), line), line)
	}

	// Out-of-fragment statement: drop it rather than guess semantics.
	return ir.NoNode
}

func (c *converter) expr(e ast.Expr) ir.NodeID {
	line := c.line(e.Pos())
	switch x := e.(type) {
	case *ast.Ident:
		switch x.Name {
		case "true":
			return c.b.Bool(true, line)
		case "false":
			return c.b.Bool(false, line)
		case "nil":
			return c.b.None(line)
		}
		return c.b.Ident(x.Name, line)

	case *ast.BasicLit:
		switch x.Kind {
		case token.INT:
			if v, err := strconv.ParseInt(x.Value, 0, 64); err == nil {
				return c.b.Int(v, line)
			}
		case token.FLOAT:
			if v, err := strconv.ParseFloat(x.Value, 64); err == nil {
				return c.b.Float(v, line)
			}
		case token.STRING:
			if v, err := strconv.Unquote(x.Value); err == nil {
				return c.b.Str(v, line)
			}
		}

	case *ast.SelectorExpr:
		return c.b.Attr(c.expr(x.X), x.Sel.Name, line)

	case *ast.CallExpr:
		args := make([]ir.NodeID, 0, len(x.Args))
		for _, a := range x.Args {
			args = append(args, c.expr(a))
		}
		return c.b.Call(c.expr(x.Fun), line, args...)

	case *ast.BinaryExpr:
		return c.b.BinOp(x.Op.String(), c.expr(x.X), c.expr(x.Y), line)

	case *ast.UnaryExpr:
		return c.b.UnOp(x.Op.String(), c.expr(x.X), line)

	case *ast.IndexExpr:
		return c.b.Subscript(c.expr(x.X), c.expr(x.Index), line)

	case *ast.ParenExpr:
		return c.expr(x.X)
	}

	// Opaque expression: a fresh name downstream treats as symbolic input.
	return c.b.Ident(fmt.Sprintf("opaque@%d", line), line)
}
