package taint

import (
	"strings"
)

// ParamTaint is the taint shape of a call's actual arguments: one entry per
// formal parameter, with only Level and Category significant. Summaries are
// keyed by this shape rather than by concrete values so one analysis of a
// callee serves every call site with an equal or lower input vector.
type ParamTaint []Label

// Key renders the shape canonically for cache lookup.
func (p ParamTaint) Key() string {
	if len(p) == 0 {
		return "()"
	}
	var sb strings.Builder
	for i, l := range p {
		if i > 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(l.Level.String())
		sb.WriteByte('/')
		sb.WriteString(l.Category)
	}
	return sb.String()
}

// AllUntainted reports whether no entry carries taint.
func (p ParamTaint) AllUntainted() bool {
	for _, l := range p {
		if l.Tainted() {
			return false
		}
	}
	return true
}

// Dominates reports whether every entry of p is at least as tainted as the
// corresponding entry of q, with compatible categories. A summary computed
// for a dominating vector is a sound (possibly over-tainted) answer for q.
func (p ParamTaint) Dominates(q ParamTaint) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i].Level < q[i].Level {
			return false
		}
		if q[i].Category != "" && p[i].Category != q[i].Category {
			return false
		}
	}
	return true
}

// Summary is the cached result of analyzing one function under one input
// taint shape: the label of its return value, the flows its body emits under
// that shape, and the analysis gaps hit along the way. Provenance steps
// inside refer to formal parameters via "param:N" notes; call sites
// substitute actual-argument provenance on application.
type Summary struct {
	Fn     string
	Input  ParamTaint
	Return Label
	Flows  []Flow
	Gaps   []string
}

func summaryKey(fn string, vec ParamTaint) string {
	return fn + "#" + vec.Key()
}

// summaryEqual compares the observable content of two summaries; the
// fixpoint driver uses it to detect convergence.
func summaryEqual(a, b *Summary) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Return.Level != b.Return.Level || a.Return.Category != b.Return.Category {
		return false
	}
	if len(a.Flows) != len(b.Flows) || len(a.Gaps) != len(b.Gaps) {
		return false
	}
	for i := range a.Flows {
		if a.Flows[i].Key() != b.Flows[i].Key() || a.Flows[i].Level != b.Flows[i].Level {
			return false
		}
	}
	return true
}
