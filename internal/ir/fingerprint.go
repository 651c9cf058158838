package ir

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// Fingerprint identifies the graph contents for cache keying. Two graphs
// with the same nodes, modules, and import edges hash identically regardless
// of how they were loaded.
func (g *Graph) Fingerprint() string {
	h := sha256.New()
	enc := json.NewEncoder(h)
	_ = enc.Encode(g.Nodes)
	_ = enc.Encode(g.Modules)
	_ = enc.Encode(g.Imports)
	return fmt.Sprintf("%x", h.Sum(nil)[:8])
}
