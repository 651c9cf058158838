// Package analyze implements the top-level analysis subcommand: load IR,
// run the full pipeline, render findings.
package analyze

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dkarev/symflow/internal/analyzer"
	"github.com/dkarev/symflow/internal/engine"
	"github.com/dkarev/symflow/internal/irload"
	"github.com/dkarev/symflow/internal/registry"
	"github.com/dkarev/symflow/internal/report"
	"github.com/dkarev/symflow/internal/taint"
)

// Run executes the subcommand and returns the process exit code: 0 for a
// clean run, 1 when findings exist, 2 on usage or input errors.
func Run(args []string) int {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "emit JSON instead of text")
	sarifOut := fs.Bool("sarif", false, "emit SARIF 2.1.0")
	rulesPath := fs.String("rules", "", "YAML source/sink rules (default: built-in catalog)")
	lang := fs.String("lang", "", "restrict rules to one language (e.g. python, js); empty applies all")
	fuel := fs.Int("fuel", 0, "loop/recursion unrolling budget per exploration")
	depth := fs.Int("depth", 0, "maximum call depth")
	timeout := fs.Duration("timeout", 30*time.Second, "deadline for the whole run")
	fnTimeout := fs.Duration("fn-timeout", 5*time.Second, "deadline per function exploration")
	workers := fs.Int("workers", 0, "parallel explorations (default: GOMAXPROCS)")
	decay := fs.Float64("decay", 0, "confidence decay per cross-function hop")
	floor := fs.Float64("floor", 0, "confidence floor for retained flows")
	useCache := fs.Bool("cache", false, "persist function summaries across runs")
	cacheDir := fs.String("cache-dir", "", "summary cache directory (default: $SYMFLOW_CACHE_DIR or ~/.cache/symflow/summaries)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: symflow analyze [flags] <ir.json|src.go|dir>")
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

	tcfg := taint.Config{DecayFactor: *decay, ConfidenceFloor: *floor}
	if *useCache {
		tcfg.Cache = taint.NewCache(*cacheDir)
	}

	rep, err := analyzer.Analyze(ctx, g, cat, analyzer.Options{
		Limits:          engine.Limits{Fuel: *fuel, MaxCallDepth: *depth},
		Taint:           tcfg,
		Workers:         *workers,
		FunctionTimeout: *fnTimeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "symflow: %v\n", err)
		return 2
	}

	switch {
	case *sarifOut:
		if err := report.WriteSARIF(os.Stdout, rep); err != nil {
			fmt.Fprintf(os.Stderr, "symflow: %v\n", err)
			return 2
		}
	case *jsonOut:
		if err := report.WriteJSON(os.Stdout, rep); err != nil {
			fmt.Fprintf(os.Stderr, "symflow: %v\n", err)
			return 2
		}
	default:
		report.WriteText(os.Stdout, rep)
	}

	if len(rep.Findings) > 0 {
		return 1
	}
	return 0
}
