package irload

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dkarev/symflow/internal/ir"
)

func sampleGraph() *ir.Graph {
	b := ir.NewBuilder()
	b.SetFile("app.py")
	f := b.Function("handler", 1, []string{"req"},
		b.Assign(b.Ident("user", 2), b.CallNamed("input", 2), 2),
		b.Return(b.Ident("user", 3), 3),
	)
	b.Module("app", f)
	return b.Graph()
}

func TestJSONRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := SaveJSON(&buf, sampleGraph()); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}

	g, err := LoadJSON(&buf)
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(g.Funcs) != 1 {
		t.Fatalf("funcs = %d, want 1", len(g.Funcs))
	}
	fn, ok := g.Func("app.handler")
	if !ok {
		t.Fatal("app.handler missing after round trip")
	}
	if got := len(g.Params(fn)); got != 1 {
		t.Errorf("params = %d, want 1", got)
	}
}

func TestLoadJSONRebuildsFuncIndex(t *testing.T) {
	var buf bytes.Buffer
	if err := SaveJSON(&buf, sampleGraph()); err != nil {
		t.Fatalf("SaveJSON: %v", err)
	}
	// Strip the top-level funcs index; the loader must rebuild it from
	// the module lists.
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	delete(doc, "funcs")
	stripped, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	g, err := LoadJSON(bytes.NewReader(stripped))
	if err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if _, ok := g.Func("app.handler"); !ok {
		t.Error("function index not rebuilt from module list")
	}
}

func TestLoadJSONRejectsDanglingReference(t *testing.T) {
	doc := `{
	  "nodes": [
	    {"id": 0, "kind": 1, "name": "app", "parent": -1, "children": [99]}
	  ],
	  "modules": [{"name": "app", "file": "app.py", "root": 0}]
	}`
	_, err := LoadJSON(strings.NewReader(doc))
	if !errors.Is(err, ir.ErrMalformedIR) {
		t.Errorf("err = %v, want ErrMalformedIR", err)
	}
}

func TestLoadJSONRejectsGarbage(t *testing.T) {
	if _, err := LoadJSON(strings.NewReader("{not json")); err == nil {
		t.Error("garbage input should fail to decode")
	}
}

func TestLoadGoFiles(t *testing.T) {
	dir := t.TempDir()
	src := `package web

import "os"

func handler(q string) int {
	user := readInput()
	if len(user) > 0 {
		runQuery("SELECT " + user)
	}
	total := 0
	for i := 0; i < 3; i++ {
		total++
	}
	return total
}

func readInput() string {
	return os.Args[1]
}
`
	path := filepath.Join(dir, "web.go")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	g, err := LoadGoFiles(path)
	if err != nil {
		t.Fatalf("LoadGoFiles: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	fn, ok := g.Func("web.handler")
	if !ok {
		t.Fatal("web.handler not converted")
	}
	if got := len(g.Params(fn)); got != 1 {
		t.Errorf("handler params = %d, want 1", got)
	}
	if _, ok := g.Func("web.readInput"); !ok {
		t.Error("web.readInput not converted")
	}
	if len(g.Imports) != 1 || g.Imports[0].To != "os" {
		t.Errorf("imports = %+v", g.Imports)
	}

	// The intra-package call resolves through the function index.
	var sawCall bool
	for id := range g.Nodes {
		nid := ir.NodeID(id)
		if g.Kind(nid) == ir.KindCall && g.CalleeName(nid) == "readInput" {
			if fn, ok := g.ResolveCallee(nid); ok && g.FuncName(fn) == "web.readInput" {
				sawCall = true
			}
		}
	}
	if !sawCall {
		t.Error("readInput call site did not resolve")
	}
}

func TestLoadGoFilesSkipsBroken(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.go")
	bad := filepath.Join(dir, "bad.go")
	os.WriteFile(good, []byte("package p\n\nfunc ok() int { return 1 }\n"), 0o644)
	os.WriteFile(bad, []byte("package p\n\nfunc {{{\n"), 0o644)

	g, err := LoadGoFiles(good, bad)
	if err != nil {
		t.Fatalf("LoadGoFiles: %v", err)
	}
	if _, ok := g.Func("p.ok"); !ok {
		t.Error("good file should still load")
	}
}

func TestLoadGoFilesAllBroken(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.go")
	os.WriteFile(bad, []byte("not go at all"), 0o644)

	if _, err := LoadGoFiles(bad); err == nil {
		t.Error("no parsable files should be an error")
	}
}
