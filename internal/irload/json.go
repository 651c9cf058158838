// Package irload builds ir.Graph values from the outside world: the JSON
// wire format emitted by per-language frontends, and a native Go frontend
// for analyzing Go source directly.
package irload

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dkarev/symflow/internal/ir"
)

// wireGraph is the JSON document shape exchanged with language frontends.
type wireGraph struct {
	Nodes   []ir.Node            `json:"nodes"`
	Modules []ir.Module          `json:"modules"`
	Imports []ir.ImportEdge      `json:"imports,omitempty"`
	Funcs   map[string]ir.NodeID `json:"funcs,omitempty"`
}

// LoadJSON decodes a frontend-produced IR document and validates it. A
// structurally broken graph fails here, before any analysis starts.
func LoadJSON(r io.Reader) (*ir.Graph, error) {
	var doc wireGraph
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding IR: %w", err)
	}

	g := &ir.Graph{
		Nodes:   doc.Nodes,
		Modules: doc.Modules,
		Imports: doc.Imports,
		Funcs:   doc.Funcs,
	}
	if g.Funcs == nil {
		g.Funcs = make(map[string]ir.NodeID)
		for _, mod := range g.Modules {
			for _, fn := range mod.Funcs {
				if n := g.Node(fn); n != nil {
					g.Funcs[mod.Name+"."+n.Name] = fn
				}
			}
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// LoadJSONFile loads an IR document from disk.
func LoadJSONFile(path string) (*ir.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening IR file: %w", err)
	}
	defer f.Close()
	return LoadJSON(f)
}

// SaveJSON writes g in the wire format.
func SaveJSON(w io.Writer, g *ir.Graph) error {
	doc := wireGraph{
		Nodes:   g.Nodes,
		Modules: g.Modules,
		Imports: g.Imports,
		Funcs:   g.Funcs,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
