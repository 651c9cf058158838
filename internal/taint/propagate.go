package taint

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dkarev/symflow/internal/ir"
)

// ErrUnresolvedCallTarget marks a call the tracker cannot bind to a summary.
// It is consumed internally: the call is treated as taint-preserving and the
// gap is logged, never surfaced as an error.
var ErrUnresolvedCallTarget = errors.New("unresolved call target")

// walker performs the intra-procedural propagation pass over one function
// body. Bindings are strong updates in straight-line code and weak (joining)
// updates inside branches and loops, where either arm may or may not run.
type walker struct {
	t      *Tracker
	fn     string
	vars   map[string]Label
	cond   int
	ret    Label
	flows  []Flow
	gaps   []string
	record bool
}

func paramNote(i int) string { return "param:" + strconv.Itoa(i) }

func paramIndex(note string) (int, bool) {
	if !strings.HasPrefix(note, "param:") {
		return 0, false
	}
	i, err := strconv.Atoi(note[len("param:"):])
	if err != nil {
		return 0, false
	}
	return i, true
}

func (w *walker) gap(g string) {
	w.gaps = append(w.gaps, g)
	debugf("[%s] gap: %s", w.fn, g)
}

func (w *walker) walkStmt(id ir.NodeID) {
	g := w.t.graph
	n := g.Node(id)
	if n == nil {
		return
	}

	switch n.Kind {
	case ir.KindBlock:
		for _, c := range n.Children {
			w.walkStmt(c)
		}

	case ir.KindAssign:
		if len(n.Children) != 2 {
			return
		}
		lbl := w.labelOf(n.Children[1])
		w.bindTarget(n.Children[0], lbl)

	case ir.KindReturn:
		if len(n.Children) == 1 {
			w.ret = Join(w.ret, w.labelOf(n.Children[0]))
		}

	case ir.KindIf:
		if len(n.Children) < 2 {
			return
		}
		w.labelOf(n.Children[0])
		w.cond++
		w.walkStmt(n.Children[1])
		if len(n.Children) == 3 {
			w.walkStmt(n.Children[2])
		}
		w.cond--

	case ir.KindLoop:
		if len(n.Children) != 2 {
			return
		}
		w.labelOf(n.Children[0])
		w.cond++
		// Two passes propagate loop-carried taint one iteration back.
		w.walkStmt(n.Children[1])
		w.walkStmt(n.Children[1])
		w.cond--

	case ir.KindFunctionDef, ir.KindClassDef, ir.KindImport, ir.KindParam:
		// Nested definitions are separate call graph vertices.

	default:
		// Expression statement: evaluate for source/sink effects.
		w.labelOf(id)
	}
}

// bindTarget writes lbl into the slot named by target. Subscript targets
// join into the container binding since other elements keep their taint.
func (w *walker) bindTarget(target ir.NodeID, lbl Label) {
	g := w.t.graph
	n := g.Node(target)
	if n == nil {
		return
	}

	name := g.DottedName(target)
	weak := w.cond > 0
	if name == "" && n.Kind == ir.KindSubscript && len(n.Children) == 2 {
		name = g.DottedName(n.Children[0])
		weak = true
	}
	if name == "" {
		return
	}

	if weak {
		lbl = Join(w.vars[name], lbl)
	}
	w.vars[name] = lbl
	if w.record && lbl.Tainted() {
		w.t.recordLabel(target, lbl)
	}
}

// labelOf computes the taint label of an expression, seeding sources,
// emitting sink flows, and applying sanitizers and callee summaries on the
// way.
func (w *walker) labelOf(id ir.NodeID) Label {
	lbl := w.labelOfExpr(id)
	if w.record && lbl.Tainted() {
		w.t.recordLabel(id, lbl)
	}
	return lbl
}

func (w *walker) labelOfExpr(id ir.NodeID) Label {
	g := w.t.graph
	n := g.Node(id)
	if n == nil {
		return Label{}
	}

	switch n.Kind {
	case ir.KindLiteral:
		return Label{}

	case ir.KindIdentifier, ir.KindAttribute:
		name := g.DottedName(id)
		if name == "" {
			return Label{}
		}
		// Attribute-shaped sources (request.args and friends) seed at
		// the point of read, overriding any prior binding.
		if src, ok := w.t.rules.Source(name); ok {
			return w.seedSource(src, name, g.Loc(id))
		}
		return w.vars[name]

	case ir.KindSubscript:
		var lbl Label
		for _, c := range n.Children {
			lbl = Join(lbl, w.labelOf(c))
		}
		return lbl

	case ir.KindBinaryOp:
		if len(n.Children) != 2 {
			return Label{}
		}
		return Join(w.labelOf(n.Children[0]), w.labelOf(n.Children[1]))

	case ir.KindUnaryOp:
		if len(n.Children) != 1 {
			return Label{}
		}
		return w.labelOf(n.Children[0])

	case ir.KindCall:
		return w.call(id)
	}

	// Unrecognized expression shape: join children, assume taint flows
	// through rather than silently dropping it.
	var lbl Label
	for _, c := range n.Children {
		lbl = Join(lbl, w.labelOf(c))
	}
	return lbl
}

func (w *walker) seedSource(src SourceSpec, name string, loc ir.Location) Label {
	debugf("[%s] source %s seeds %s at %s", w.fn, name, src.Level, loc)
	return Label{
		Level:      src.Level,
		Category:   src.Category,
		Provenance: []Step{{Loc: loc, Level: src.Level, Note: "source " + name}},
	}
}

// call handles the four callee classes in precedence order: sanitizer, sink,
// source, summarized in-graph function. Anything else is an external or
// dynamic target handled conservatively.
func (w *walker) call(id ir.NodeID) Label {
	g := w.t.graph
	loc := g.Loc(id)
	args := g.Args(id)

	argLabels := make([]Label, len(args))
	joined := Label{}
	for i, a := range args {
		argLabels[i] = w.labelOf(a)
		joined = Join(joined, argLabels[i])
	}

	name := g.CalleeName(id)
	if name == "" {
		return w.unresolved(joined, fmt.Sprintf("dynamic callee at %s", loc))
	}

	if san, ok := w.t.rules.Sanitizer(name); ok {
		if !joined.Tainted() {
			return Label{}
		}
		out := joined
		out.Cleared = unionStrings(out.Cleared, san.Clears)
		out.Sanitizers = append(append([]SanitizerUse(nil), out.Sanitizers...),
			SanitizerUse{Name: name, Loc: loc, Clears: san.Clears})
		return out.withStep(Step{Loc: loc, Level: out.Level, Note: "sanitized by " + name})
	}

	if sink, ok := w.t.rules.Sink(name); ok {
		for _, al := range argLabels {
			w.checkSink(sink, name, loc, al)
		}
		// A sink call's result is taint-preserving over its inputs.
		return joined
	}

	if src, ok := w.t.rules.Source(name); ok {
		return w.seedSource(src, name, loc)
	}

	if fnID, ok := g.ResolveCallee(id); ok {
		return w.applySummary(fnID, argLabels, loc)
	}

	if !joined.Tainted() {
		return Label{}
	}
	return w.unresolved(joined, fmt.Sprintf("%v %s at %s", ErrUnresolvedCallTarget, name, loc))
}

// unresolved is the conservative treatment of a call the tracker cannot
// bind: the result is at least as tainted as the most tainted argument, with
// an extra hop charged and the gap logged.
func (w *walker) unresolved(joined Label, gap string) Label {
	if !joined.Tainted() {
		return Label{}
	}
	w.gap(gap)
	out := joined
	out.Hops++
	return out
}

// applySummary substitutes actual-argument labels for the callee summary's
// formal-parameter placeholders: the return label inherits argument
// provenance, and flows the callee emits under this input shape surface in
// the caller with one hop of confidence decay.
func (w *walker) applySummary(fnID ir.NodeID, argLabels []Label, loc ir.Location) Label {
	g := w.t.graph
	callee := g.FuncName(fnID)

	vec := make(ParamTaint, len(g.Params(fnID)))
	for i := range vec {
		if i < len(argLabels) {
			vec[i] = Label{Level: argLabels[i].Level, Category: argLabels[i].Category}
		}
	}
	sum := w.t.SummaryFor(callee, vec)

	for _, f := range sum.Flows {
		imported := f
		imported.Path = substituteSteps(f.Path, argLabels)
		if idx, ok := paramIndex(f.Source.Note); ok && idx < len(argLabels) && len(argLabels[idx].Provenance) > 0 {
			imported.Source = argLabels[idx].Provenance[0]
			imported.Sanitizers = append(append([]SanitizerUse(nil), imported.Sanitizers...),
				argLabels[idx].Sanitizers...)
		}
		imported.Confidence = w.t.decay(f.Confidence)
		w.flows = append(w.flows, imported)
	}
	w.gaps = append(w.gaps, sum.Gaps...)

	out := sum.Return
	out.Provenance = substituteSteps(out.Provenance, argLabels)
	out.Hops++
	for _, al := range argLabels {
		if al.Hops+1 > out.Hops {
			out.Hops = al.Hops + 1
		}
	}
	if out.Tainted() {
		out = out.withStep(Step{Loc: loc, Level: out.Level, Note: "returned from " + callee})
	}
	return out
}

// substituteSteps replaces formal-parameter placeholder steps with the
// provenance of the corresponding actual argument.
func substituteSteps(steps []Step, argLabels []Label) []Step {
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		if idx, ok := paramIndex(s.Note); ok && idx < len(argLabels) && len(argLabels[idx].Provenance) > 0 {
			out = append(out, argLabels[idx].Provenance...)
			continue
		}
		out = append(out, s)
	}
	if len(out) > maxProvenance {
		out = out[:maxProvenance]
	}
	return out
}

func (w *walker) checkSink(sink SinkSpec, name string, loc ir.Location, lbl Label) {
	eff := lbl.LevelFor(sink.Category)
	if eff == Untainted {
		return
	}

	src := Step{Loc: loc, Level: lbl.Level, Note: "unknown source"}
	if len(lbl.Provenance) > 0 {
		src = lbl.Provenance[0]
	}
	sinkStep := Step{Loc: loc, Level: eff, Note: "sink " + name}

	flow := Flow{
		Source:     src,
		Sink:       sinkStep,
		Kind:       sink.Kind,
		Category:   sink.Category,
		CWE:        sink.CWE,
		Severity:   sink.Severity,
		Function:   w.fn,
		Level:      eff,
		Path:       concatSteps(lbl.Provenance, []Step{sinkStep}),
		Sanitizers: lbl.Sanitizers,
		Confidence: w.t.confidence(lbl),
	}
	w.flows = append(w.flows, flow)
	infof("[%s] %s flow %s -> %s (confidence %.2f)", w.fn, flow.Kind, src.Loc, loc, flow.Confidence)
}

func unionStrings(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, x := range b {
		found := false
		for _, y := range out {
			if x == y {
				found = true
				break
			}
		}
		if !found {
			out = append(out, x)
		}
	}
	return out
}
