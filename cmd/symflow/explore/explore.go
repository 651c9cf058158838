// Package explore implements the per-function exploration subcommand. It
// dumps the terminal symbolic states of one function, which is mostly useful
// for debugging rules and frontends.
package explore

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dkarev/symflow/internal/engine"
	"github.com/dkarev/symflow/internal/irload"
	"github.com/dkarev/symflow/internal/solver"
	"github.com/dkarev/symflow/internal/symbolic"
)

type stateDump struct {
	ID         int               `json:"id"`
	Status     string            `json:"status"`
	PathLen    int               `json:"pathLen"`
	Confidence float64           `json:"confidence"`
	Return     string            `json:"return,omitempty"`
	Model      map[string]string `json:"model,omitempty"`
	Gaps       []string          `json:"gaps,omitempty"`
}

// Run executes the subcommand and returns the process exit code.
func Run(args []string) int {
	fs := flag.NewFlagSet("explore", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "emit JSON instead of text")
	fuel := fs.Int("fuel", 0, "loop/recursion unrolling budget")
	depth := fs.Int("depth", 0, "maximum call depth")
	timeout := fs.Duration("timeout", 10*time.Second, "exploration deadline")
	solverTimeout := fs.Duration("solver-timeout", 0, "per-query solver deadline")
	fs.Parse(args)

	if fs.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "usage: symflow explore [flags] <ir.json|src.go|dir> <function>")
		return 2
	}

	g, err := irload.Auto(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "symflow: %v\n", err)
		return 2
	}

	name := fs.Arg(1)
	fn, ok := g.Func(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "symflow: unknown function %q; known functions:\n", name)
		known := make([]string, 0, len(g.Funcs))
		for n := range g.Funcs {
			known = append(known, n)
		}
		sort.Strings(known)
		for _, n := range known {
			fmt.Fprintf(os.Stderr, "  %s\n", n)
		}
		return 2
	}

	ad := solver.NewAdapter(solver.NewIntervalBackend(), *solverTimeout)
	eng := engine.New(g, ad, engine.Limits{Fuel: *fuel, MaxCallDepth: *depth})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	x, err := eng.Explore(ctx, fn, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "symflow: %v\n", err)
		return 2
	}
	states := x.All()

	if *jsonOut {
		dumps := make([]stateDump, 0, len(states))
		for _, st := range states {
			d := stateDump{
				ID:         st.ID,
				Status:     st.Status.String(),
				PathLen:    st.Path.Len(),
				Confidence: st.Confidence,
				Gaps:       st.Gaps,
			}
			if len(st.Model) > 0 {
				d.Model = make(map[string]string, len(st.Model))
				for v, val := range st.Model {
					d.Model[v] = val.String()
				}
			}
			if st.Ret != nil {
				d.Return = st.Ret.String()
			}
			dumps = append(dumps, d)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(dumps); err != nil {
			fmt.Fprintf(os.Stderr, "symflow: %v\n", err)
			return 2
		}
		return 0
	}

	fmt.Printf("%s: %d terminal states (%d created, %d pruned)\n\n",
		name, len(states), x.StatesCreated(), len(x.PrunedStates()))
	for _, st := range states {
		fmt.Printf("state %d  %-10s path=%d  confidence=%.2f\n",
			st.ID, st.Status, st.Path.Len(), st.Confidence)
		for _, c := range st.Path.Conjuncts() {
			fmt.Printf("    assume %s\n", c)
		}
		if st.Ret != nil {
			fmt.Printf("    return %s\n", st.Ret)
		}
		if len(st.Model) > 0 {
			vars := make([]string, 0, len(st.Model))
			for v := range st.Model {
				vars = append(vars, v)
			}
			sort.Strings(vars)
			for _, v := range vars {
				fmt.Printf("    model  %s = %s\n", v, st.Model[v])
			}
		}
		for _, gap := range st.Gaps {
			fmt.Printf("    gap    %s\n", gap)
		}
	}

	if exhausted(states) {
		fmt.Println("\nwarning: exploration hit a resource limit; coverage is partial")
	}
	return 0
}

func exhausted(states []*symbolic.State) bool {
	for _, st := range states {
		if st.Status == symbolic.Exhausted {
			return true
		}
	}
	return false
}
