// Package analyzer composes symbolic exploration, taint tracking, and the
// source/sink registry into findings. It mutates nothing: IR and taint state
// are read, findings are appended to an immutable result set.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dkarev/symflow/internal/engine"
	"github.com/dkarev/symflow/internal/ir"
	"github.com/dkarev/symflow/internal/solver"
	"github.com/dkarev/symflow/internal/taint"
	"github.com/dkarev/symflow/internal/worker"
)

// Finding is one vulnerability candidate. Immutable once emitted; the ID is
// derived from the dedup key so identical runs yield identical findings.
type Finding struct {
	ID         string              `json:"id"`
	Kind       string              `json:"kind"`
	CWE        string              `json:"cwe,omitempty"`
	Severity   string              `json:"severity"`
	Source     ir.Location         `json:"source"`
	Sink       ir.Location         `json:"sink"`
	Function   string              `json:"function"`
	Level      taint.Level         `json:"level"`
	Flow       []taint.Step        `json:"flow,omitempty"`
	Sanitizers []taint.SanitizerUse `json:"sanitizers,omitempty"`
	Confidence float64             `json:"confidence"`
	Message    string              `json:"message"`
}

// key is the dedup identity: (source location, sink location, kind).
func (f Finding) key() string {
	return f.Source.String() + "|" + f.Sink.String() + "|" + f.Kind
}

// Options tunes one analysis run. Zero values select defaults.
type Options struct {
	Limits          engine.Limits
	Taint           taint.Config
	Workers         int
	FunctionTimeout time.Duration
	SolverTimeout   time.Duration
}

// Report is the result of one run: findings plus coverage accounting.
type Report struct {
	Findings  []Finding     `json:"findings"`
	Functions int           `json:"functions"`
	States    int           `json:"states"`
	Pruned    int           `json:"pruned"`
	Gaps      []string      `json:"gaps,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// mismatchPenalty halves confidence when a sanitizer of a different taint
// category than the sink's was seen along the path; a type-mismatched
// sanitizer does not clear the relevant risk.
const mismatchPenalty = 0.5

// Analyze is the top-level entry point: explore every function symbolically,
// track taint across the module graph, and classify the resulting flows. The
// deadline on ctx bounds the whole run; expiry yields partial results, not
// an error.
func Analyze(ctx context.Context, g *ir.Graph, rules taint.Classifier, opts Options) (*Report, error) {
	start := time.Now()
	report := &Report{Functions: len(g.Funcs)}

	adapter := solver.NewAdapter(solver.NewIntervalBackend(), opts.SolverTimeout)
	eng := engine.New(g, adapter, opts.Limits)
	pool := worker.NewPool(eng, opts.Workers, opts.FunctionTimeout)
	explorations := pool.ExploreAll(ctx, worker.FuncFilter(g, nil))

	tracker := taint.New(g, rules, opts.Taint)
	tracker.Track(ctx)

	var findings []Finding
	for _, flow := range tracker.Flows() {
		findings = append(findings, classify(flow, explorations))
	}
	report.Findings = dedup(findings)

	report.Gaps = tracker.Gaps()
	names := make([]string, 0, len(explorations))
	for name := range explorations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := explorations[name]
		report.States += len(r.States)
		report.Pruned += r.Pruned
		if r.Err != nil {
			report.Gaps = append(report.Gaps, name+": "+r.Err.Error())
		}
		for _, gap := range r.Gaps {
			report.Gaps = append(report.Gaps, name+": "+gap)
		}
	}

	report.Duration = time.Since(start)
	infof("analyzed %d functions: %d findings, %d states, %d gaps",
		report.Functions, len(report.Findings), report.States, len(report.Gaps))
	return report, nil
}

// classify turns one taint flow into a finding, folding in the sanitizer
// mismatch penalty and the coverage confidence of the sink's function.
func classify(flow taint.Flow, explorations map[string]*worker.Result) Finding {
	conf := flow.Confidence
	for _, s := range flow.Sanitizers {
		if !clears(s.Clears, flow.Category) {
			conf *= mismatchPenalty
			break
		}
	}
	if r, ok := explorations[flow.Function]; ok && r.Err == nil && r.Confidence < 1 {
		conf *= r.Confidence
	}
	if conf > 1 {
		conf = 1
	}

	f := Finding{
		Kind:       flow.Kind,
		CWE:        flow.CWE,
		Severity:   flow.Severity,
		Source:     flow.Source.Loc,
		Sink:       flow.Sink.Loc,
		Function:   flow.Function,
		Level:      flow.Level,
		Flow:       flow.Path,
		Sanitizers: flow.Sanitizers,
		Confidence: conf,
		Message: fmt.Sprintf("%s-tainted data from %s reaches %s sink at %s",
			flow.Level, flow.Source.Loc, flow.Kind, flow.Sink.Loc),
	}
	f.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(f.key())).String()
	return f
}

func clears(categories []string, category string) bool {
	for _, c := range categories {
		if c == category || c == "*" {
			return true
		}
	}
	return false
}

var severityRank = map[string]int{
	"critical": 3,
	"high":     2,
	"medium":   1,
	"low":      0,
}

// dedup keeps the highest-confidence finding per (source, sink, kind) and
// orders the result by severity, confidence, then sink location.
func dedup(findings []Finding) []Finding {
	best := make(map[string]Finding, len(findings))
	for _, f := range findings {
		if prev, ok := best[f.key()]; !ok || f.Confidence > prev.Confidence {
			best[f.key()] = f
		}
	}
	out := make([]Finding, 0, len(best))
	for _, f := range best {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if severityRank[out[i].Severity] != severityRank[out[j].Severity] {
			return severityRank[out[i].Severity] > severityRank[out[j].Severity]
		}
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Sink.String() < out[j].Sink.String()
	})
	return out
}
