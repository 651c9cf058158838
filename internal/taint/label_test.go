package taint

import (
	"testing"

	"github.com/dkarev/symflow/internal/ir"
)

func TestJoinLevelLatticeLaws(t *testing.T) {
	levels := []Level{Untainted, Low, Medium, High, Critical}

	for _, a := range levels {
		for _, b := range levels {
			// Commutative.
			if JoinLevel(a, b) != JoinLevel(b, a) {
				t.Errorf("join(%s,%s) not commutative", a, b)
			}
			// Monotone: a <= b implies join(a,b) == b.
			if a <= b && JoinLevel(a, b) != b {
				t.Errorf("join(%s,%s) = %s, want %s", a, b, JoinLevel(a, b), b)
			}
			for _, c := range levels {
				if JoinLevel(JoinLevel(a, b), c) != JoinLevel(a, JoinLevel(b, c)) {
					t.Errorf("join not associative at (%s,%s,%s)", a, b, c)
				}
			}
		}
		// Idempotent.
		if JoinLevel(a, a) != a {
			t.Errorf("join(%s,%s) != %s", a, a, a)
		}
	}
}

func TestJoinTakesMaxAndConcatenatesProvenance(t *testing.T) {
	a := Label{
		Level:      Low,
		Category:   "untrusted",
		Provenance: []Step{{Loc: ir.Location{File: "a.py", Line: 1}, Level: Low}},
	}
	b := Label{
		Level:      High,
		Category:   "untrusted",
		Provenance: []Step{{Loc: ir.Location{File: "b.py", Line: 2}, Level: High}},
	}

	j := Join(a, b)
	if j.Level != High {
		t.Errorf("joined level = %s, want high", j.Level)
	}
	if len(j.Provenance) != 2 {
		t.Fatalf("provenance length = %d, want 2", len(j.Provenance))
	}
	if j.Provenance[0].Loc.File != "a.py" || j.Provenance[1].Loc.File != "b.py" {
		t.Errorf("provenance order wrong: %+v", j.Provenance)
	}
}

func TestJoinIntersectsClearedCategories(t *testing.T) {
	a := Label{Level: High, Cleared: []string{"sql", "xss"},
		Provenance: []Step{{Level: High}}}
	b := Label{Level: Medium, Cleared: []string{"sql"},
		Provenance: []Step{{Level: Medium}}}

	j := Join(a, b)
	if j.LevelFor("sql") != Untainted {
		t.Error("sql cleared on both flows should survive the join")
	}
	if j.LevelFor("xss") != High {
		t.Error("xss cleared on only one flow must not protect the merged value")
	}
}

func TestSanitizedLabelKeepsHistory(t *testing.T) {
	l := Label{
		Level:      High,
		Category:   "untrusted",
		Cleared:    []string{"sql"},
		Provenance: []Step{{Level: High, Note: "source input"}, {Level: High, Note: "sanitized by sanitize_int"}},
	}

	if l.LevelFor("sql") != Untainted {
		t.Error("matching category should read as untainted")
	}
	if l.LevelFor("command") != High {
		t.Error("non-matching category keeps the raw level")
	}
	if len(l.Provenance) != 2 {
		t.Error("sanitization must not erase provenance")
	}
}

func TestProvenanceTruncationKeepsHead(t *testing.T) {
	long := make([]Step, maxProvenance)
	for i := range long {
		long[i] = Step{Loc: ir.Location{Line: i + 1}, Level: Low}
	}
	got := concatSteps(long, []Step{{Loc: ir.Location{Line: 999}}})
	if len(got) != maxProvenance {
		t.Fatalf("length = %d, want %d", len(got), maxProvenance)
	}
	if got[0].Loc.Line != 1 {
		t.Error("source anchor at the head must survive truncation")
	}
}

func TestParamTaintDominates(t *testing.T) {
	hi := ParamTaint{{Level: High, Category: "untrusted"}}
	lo := ParamTaint{{Level: Low}}

	if !hi.Dominates(lo) {
		t.Error("high vector should dominate low vector with open category")
	}
	if lo.Dominates(hi) {
		t.Error("low vector must not dominate high vector")
	}
	if hi.Dominates(ParamTaint{{Level: Low}, {Level: Low}}) {
		t.Error("vectors of different arity are incomparable")
	}
}
