// Package flows implements the taint-flow listing subcommand. It runs the
// taint tracker alone, without symbolic exploration, and prints the raw
// source-to-sink flows before analyzer scoring.
package flows

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dkarev/symflow/internal/irload"
	"github.com/dkarev/symflow/internal/registry"
	"github.com/dkarev/symflow/internal/taint"
)

// Run executes the subcommand and returns the process exit code: 0 when no
// flows exist, 1 when some do, 2 on input errors.
func Run(args []string) int {
	fs := flag.NewFlagSet("flows", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "emit JSON instead of text")
	rulesPath := fs.String("rules", "", "YAML source/sink rules (default: built-in catalog)")
	lang := fs.String("lang", "", "restrict rules to one language (e.g. python, js); empty applies all")
	decay := fs.Float64("decay", 0, "confidence decay per cross-function hop")
	floor := fs.Float64("floor", 0, "confidence floor for retained flows")
	timeout := fs.Duration("timeout", 30*time.Second, "propagation deadline")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: symflow flows [flags] <ir.json|src.go|dir>")
		return 2
	}

	g, err := irload.Auto(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "symflow: %v\n", err)
		return 2
	}

	cat := registry.Default()
	if *rulesPath != "" {
		cat, err = registry.LoadFile(*rulesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "symflow: %v\n", err)
			return 2
		}
	}
	cat = cat.ForLanguage(*lang)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	tr := taint.New(g, cat, taint.Config{DecayFactor: *decay, ConfidenceFloor: *floor})
	tr.Track(ctx)

	fl := tr.Flows()
	gaps := tr.Gaps()

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Flows []taint.Flow `json:"flows"`
			Gaps  []string     `json:"gaps,omitempty"`
		}{fl, gaps}); err != nil {
			fmt.Fprintf(os.Stderr, "symflow: %v\n", err)
			return 2
		}
	} else {
		writeText(fl, gaps)
	}

	if len(fl) > 0 {
		return 1
	}
	return 0
}

func writeText(fl []taint.Flow, gaps []string) {
	if len(fl) == 0 {
		fmt.Println("No taint flows found.")
	}
	for _, f := range fl {
		fmt.Printf("%s [%s] %s -> %s  level=%s confidence=%.2f  in %s\n",
			f.Kind, f.Severity, f.Source.Loc, f.Sink.Loc, f.Level, f.Confidence, f.Function)
		for _, s := range f.Path {
			fmt.Printf("    %s  %s\n", s.Loc, s.Note)
		}
		for _, san := range f.Sanitizers {
			fmt.Printf("    sanitized by %s at %s\n", san.Name, san.Loc)
		}
	}
	if len(gaps) > 0 {
		fmt.Println("\nCoverage gaps:")
		for _, gap := range gaps {
			fmt.Printf("    %s\n", gap)
		}
	}
}
