// Package taint computes the taint label reaching every IR value: first
// intra-procedurally over each function body, then inter-procedurally via
// cached function summaries, then across module boundaries in reverse
// topological order over the call graph with a worklist fixed point for
// import cycles.
//
// Labels form a join-semilattice ordered Untainted < Low < Medium < High <
// Critical. Merging two flows into one value takes the maximum level and
// concatenates provenance; sanitizers cap the level seen by matching sink
// categories but never erase history.
package taint

import (
	"fmt"

	"github.com/dkarev/symflow/internal/ir"
)

// Level is the ordered taint level of a value.
type Level uint8

const (
	Untainted Level = iota
	Low
	Medium
	High
	Critical
)

var levelNames = map[Level]string{
	Untainted: "untainted",
	Low:       "low",
	Medium:    "medium",
	High:      "high",
	Critical:  "critical",
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// LevelFromString parses a level name; unknown names map to Untainted.
func LevelFromString(s string) Level {
	for l, name := range levelNames {
		if name == s {
			return l
		}
	}
	return Untainted
}

// JoinLevel is the lattice join: associative, commutative, idempotent.
func JoinLevel(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}

// Step is one hop of a provenance chain: where a value acquired or carried
// its label, and the level it held there.
type Step struct {
	Loc   ir.Location `json:"loc"`
	Level Level       `json:"level"`
	Note  string      `json:"note,omitempty"`
}

// SanitizerUse records a sanitizer encountered on a path. The use is kept in
// the trace whether or not its categories match the eventual sink; a
// mismatched sanitizer does not clear the relevant risk and only lowers
// confidence downstream.
type SanitizerUse struct {
	Name   string      `json:"name"`
	Loc    ir.Location `json:"loc"`
	Clears []string    `json:"clears,omitempty"`
}

// maxProvenance bounds provenance growth on long join chains. The earliest
// steps are the source anchors and must survive truncation.
const maxProvenance = 32

// Label is the taint state of one value: its lattice level, the category of
// its dominant source, the sink categories sanitizers have neutralized on
// this path, and the full provenance history.
type Label struct {
	Level      Level
	Category   string
	Cleared    []string
	Hops       int
	Provenance []Step
	Sanitizers []SanitizerUse
}

// Tainted reports whether the label carries any taint at all.
func (l Label) Tainted() bool { return l.Level > Untainted }

// LevelFor returns the level as seen by a sink of the given category:
// Untainted when a sanitizer on this path clears that category, the raw
// level otherwise.
func (l Label) LevelFor(category string) Level {
	for _, c := range l.Cleared {
		if c == category || c == "*" {
			return Untainted
		}
	}
	return l.Level
}

// Join merges two labels flowing into one value. The maximum level wins and
// provenance is concatenated; cleared categories are intersected since a
// sanitizer on only one incoming flow does not protect the merged value.
func Join(a, b Label) Label {
	if !a.Tainted() && len(a.Provenance) == 0 {
		return b
	}
	if !b.Tainted() && len(b.Provenance) == 0 {
		return a
	}

	out := Label{Level: JoinLevel(a.Level, b.Level)}
	out.Category = a.Category
	if b.Level > a.Level || out.Category == "" {
		out.Category = b.Category
	}
	out.Cleared = intersect(a.Cleared, b.Cleared)
	out.Hops = a.Hops
	if b.Hops > out.Hops {
		out.Hops = b.Hops
	}
	out.Provenance = concatSteps(a.Provenance, b.Provenance)
	out.Sanitizers = append(append([]SanitizerUse(nil), a.Sanitizers...), b.Sanitizers...)
	return out
}

func intersect(a, b []string) []string {
	var out []string
	for _, x := range a {
		for _, y := range b {
			if x == y {
				out = append(out, x)
				break
			}
		}
	}
	return out
}

func concatSteps(a, b []Step) []Step {
	out := make([]Step, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	if len(out) > maxProvenance {
		// Keep the head: the source anchor lives there.
		out = out[:maxProvenance]
	}
	return out
}

// withStep returns a copy of l with one provenance step appended.
func (l Label) withStep(s Step) Label {
	out := l
	out.Provenance = concatSteps(l.Provenance, []Step{s})
	return out
}
