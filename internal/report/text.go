// Package report renders analysis results for humans and machines: a
// colored terminal view, plain JSON, and SARIF 2.1.0 for code scanning
// integrations.
package report

import (
	"fmt"
	"io"

	"github.com/dkarev/symflow/internal/analyzer"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorBold   = "\033[1m"
	colorCyan   = "\033[36m"
)

func severityColor(severity string) string {
	switch severity {
	case "critical", "high":
		return colorRed
	case "medium":
		return colorYellow
	default:
		return colorGreen
	}
}

// WriteText renders the report for a terminal.
func WriteText(w io.Writer, r *analyzer.Report) {
	fmt.Fprintf(w, "%s%s=== Security Findings ===%s\n\n", colorBold, colorCyan, colorReset)

	if len(r.Findings) == 0 {
		fmt.Fprintf(w, "%s%s✓ No findings%s\n", colorBold, colorGreen, colorReset)
	}
	for _, f := range r.Findings {
		color := severityColor(f.Severity)
		fmt.Fprintf(w, "%s%-28s%s %s[%s]%s confidence=%.2f\n",
			colorBold, f.Kind, colorReset,
			color, f.Severity, colorReset,
			f.Confidence,
		)
		if f.CWE != "" {
			fmt.Fprintf(w, "  cwe:    %s\n", f.CWE)
		}
		fmt.Fprintf(w, "  source: %s\n", f.Source)
		fmt.Fprintf(w, "  sink:   %s (%s)\n", f.Sink, f.Function)
		for _, s := range f.Sanitizers {
			fmt.Fprintf(w, "  %ssanitizer seen:%s %s at %s\n", colorYellow, colorReset, s.Name, s.Loc)
		}
		if len(f.Flow) > 0 {
			fmt.Fprintf(w, "  path:\n")
			for _, step := range f.Flow {
				fmt.Fprintf(w, "    %s (%s)\n", step.Loc, step.Note)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "%sCoverage:%s %d functions, %d terminal states, %d pruned\n",
		colorBold, colorReset, r.Functions, r.States, r.Pruned)
	if len(r.Gaps) > 0 {
		fmt.Fprintf(w, "%sGaps (%d):%s\n", colorYellow, len(r.Gaps), colorReset)
		for _, g := range r.Gaps {
			fmt.Fprintf(w, "  - %s\n", g)
		}
	}
}
