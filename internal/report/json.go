package report

import (
	"encoding/json"
	"io"

	"github.com/dkarev/symflow/internal/analyzer"
)

// WriteJSON emits the full report as indented JSON.
func WriteJSON(w io.Writer, r *analyzer.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
