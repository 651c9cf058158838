package ir

import (
	"errors"
	"testing"
)

// buildSample constructs:
//
//	module app:
//	  func handler(req):
//	    user = input()
//	    cursor.execute(user)
func buildSample() (*Graph, NodeID) {
	b := NewBuilder()
	b.SetFile("app.py")

	user1 := b.Ident("user", 2)
	input := b.CallNamed("input", 2)
	asg := b.Assign(user1, input, 2)

	cursor := b.Ident("cursor", 3)
	execute := b.Attr(cursor, "execute", 3)
	user2 := b.Ident("user", 3)
	call := b.Call(execute, 3, user2)

	fn := b.Function("handler", 1, []string{"req"}, asg, call)
	b.Module("app", fn)
	return b.Graph(), fn
}

func TestBuilderLinks(t *testing.T) {
	g, fn := buildSample()

	if err := g.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	got, ok := g.Func("app.handler")
	if !ok || got != fn {
		t.Fatalf("Func(app.handler) = %d, %v; want %d, true", got, ok, fn)
	}
	if name := g.FuncName(fn); name != "app.handler" {
		t.Errorf("FuncName = %q, want app.handler", name)
	}
	if params := g.Params(fn); len(params) != 1 || g.Node(params[0]).Name != "req" {
		t.Errorf("Params = %v, want one param req", params)
	}
	if body := g.Body(fn); g.Kind(body) != KindBlock {
		t.Errorf("Body kind = %s, want block", g.Kind(body))
	}
}

func TestCalleeName(t *testing.T) {
	g, fn := buildSample()

	body := g.Body(fn)
	stmts := g.Node(body).Children
	if len(stmts) != 2 {
		t.Fatalf("body has %d statements, want 2", len(stmts))
	}

	asg := g.Node(stmts[0])
	if got := g.CalleeName(asg.Children[1]); got != "input" {
		t.Errorf("CalleeName(input call) = %q, want input", got)
	}
	if got := g.CalleeName(stmts[1]); got != "cursor.execute" {
		t.Errorf("CalleeName(execute call) = %q, want cursor.execute", got)
	}
	if args := g.Args(stmts[1]); len(args) != 1 || g.Node(args[0]).Name != "user" {
		t.Errorf("Args = %v, want single user identifier", args)
	}
}

func TestValidateDanglingChild(t *testing.T) {
	g, _ := buildSample()
	g.Nodes[0].Children = append(g.Nodes[0].Children, NodeID(9999))

	err := g.Validate()
	if !errors.Is(err, ErrMalformedIR) {
		t.Fatalf("Validate() = %v, want ErrMalformedIR", err)
	}
}

func TestValidateCycle(t *testing.T) {
	g, fn := buildSample()

	// Make the function's block point back at the function.
	body := g.Body(fn)
	g.Nodes[body].Children = append(g.Nodes[body].Children, fn)
	g.Nodes[fn].Parent = body

	err := g.Validate()
	if !errors.Is(err, ErrMalformedIR) {
		t.Fatalf("Validate() = %v, want ErrMalformedIR", err)
	}
}

func TestValidateFuncScopesFailure(t *testing.T) {
	b := NewBuilder()
	ret := b.Return(b.Int(1, 2), 2)
	good := b.Function("good", 1, nil, ret)
	bad := b.Function("bad", 4, nil)
	b.Module("m", good, bad)
	g := b.Graph()

	// Corrupt only the bad function.
	g.Nodes[bad].Children = append(g.Nodes[bad].Children, NodeID(12345))

	if err := g.ValidateFunc(good); err != nil {
		t.Errorf("ValidateFunc(good) = %v, want nil", err)
	}
	if err := g.ValidateFunc(bad); !errors.Is(err, ErrMalformedIR) {
		t.Errorf("ValidateFunc(bad) = %v, want ErrMalformedIR", err)
	}
}

func TestKindAndTypeStrings(t *testing.T) {
	if KindAssign.String() != "assign" {
		t.Errorf("KindAssign = %q", KindAssign.String())
	}
	if Kind(200).String() != "kind(200)" {
		t.Errorf("unknown kind = %q", Kind(200).String())
	}
	if TypeString.String() != "string" {
		t.Errorf("TypeString = %q", TypeString.String())
	}
}

func TestLocationString(t *testing.T) {
	loc := Location{File: "a.py", Line: 3, Col: 7}
	if loc.String() != "a.py:3:7" {
		t.Errorf("String = %q", loc.String())
	}
	loc.Col = 0
	if loc.String() != "a.py:3" {
		t.Errorf("String = %q", loc.String())
	}
}
