package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkarev/symflow/internal/ir"
	"github.com/dkarev/symflow/internal/registry"
)

func sinkCall(b *ir.Builder, arg ir.NodeID, line int) ir.NodeID {
	return b.Call(b.Attr(b.Ident("cursor", line), "execute", line), line, arg)
}

// user = input(); cursor.execute("SELECT * FROM t WHERE id=" + user)
func sqlInjectionGraph() *ir.Graph {
	b := ir.NewBuilder()
	b.SetFile("app.py")
	f := b.Function("handler", 1, nil,
		b.Assign(b.Ident("user", 2), b.CallNamed("input", 2), 2),
		sinkCall(b, b.BinOp("+", b.Str("SELECT * FROM t WHERE id=", 3), b.Ident("user", 3), 3), 3),
	)
	b.Module("app", f)
	return b.Graph()
}

func TestSQLInjectionDetected(t *testing.T) {
	report, err := Analyze(context.Background(), sqlInjectionGraph(), registry.Default(), Options{})
	require.NoError(t, err)

	require.Len(t, report.Findings, 1, "exactly one finding expected")
	f := report.Findings[0]
	assert.Equal(t, "sql-injection", f.Kind)
	assert.Equal(t, "CWE-89", f.CWE)
	assert.Greater(t, f.Confidence, 0.8)
	assert.Equal(t, 2, f.Source.Line)
	assert.Equal(t, 3, f.Sink.Line)
	assert.NotEmpty(t, f.ID)
	assert.NotEmpty(t, f.Message)
}

func TestSanitizedInputYieldsNoFindings(t *testing.T) {
	b := ir.NewBuilder()
	b.SetFile("app.py")
	f := b.Function("handler", 1, nil,
		b.Assign(b.Ident("user", 2),
			b.CallNamed("sanitize_int", 2, b.CallNamed("input", 2)), 2),
		sinkCall(b, b.Ident("user", 3), 3),
	)
	b.Module("app", f)

	report, err := Analyze(context.Background(), b.Graph(), registry.Default(), Options{})
	require.NoError(t, err)
	assert.Empty(t, report.Findings, "sanitize_int clears sql taint at that sink")
}

func TestMismatchedSanitizerHalvesConfidence(t *testing.T) {
	b := ir.NewBuilder()
	b.SetFile("app.py")
	f := b.Function("handler", 1, nil,
		b.Assign(b.Ident("user", 2),
			b.CallNamed("html.escape", 2, b.CallNamed("input", 2)), 2),
		sinkCall(b, b.Ident("user", 3), 3),
	)
	b.Module("app", f)

	report, err := Analyze(context.Background(), b.Graph(), registry.Default(), Options{})
	require.NoError(t, err)

	require.Len(t, report.Findings, 1, "xss sanitizer does not clear sql risk")
	assert.InDelta(t, 0.475, report.Findings[0].Confidence, 0.001, "0.95 base halved")
}

func TestAnalyzeIdempotent(t *testing.T) {
	first, err := Analyze(context.Background(), sqlInjectionGraph(), registry.Default(), Options{})
	require.NoError(t, err)
	second, err := Analyze(context.Background(), sqlInjectionGraph(), registry.Default(), Options{})
	require.NoError(t, err)

	require.Equal(t, len(first.Findings), len(second.Findings))
	for i := range first.Findings {
		assert.Equal(t, first.Findings[i].ID, second.Findings[i].ID)
		assert.Equal(t, first.Findings[i].Confidence, second.Findings[i].Confidence)
		assert.Equal(t, first.Findings[i].Kind, second.Findings[i].Kind)
	}
}

func TestDuplicateCallSitesDeduplicated(t *testing.T) {
	b := ir.NewBuilder()
	b.SetFile("app.py")
	run := b.Function("run", 1, []string{"q"},
		sinkCall(b, b.Ident("q", 2), 2),
	)
	main := b.Function("main", 4, nil,
		b.Assign(b.Ident("user", 5), b.CallNamed("input", 5), 5),
		b.CallNamed("run", 6, b.Ident("user", 6)),
		b.CallNamed("run", 7, b.Ident("user", 7)),
	)
	b.Module("app", run, main)

	report, err := Analyze(context.Background(), b.Graph(), registry.Default(), Options{})
	require.NoError(t, err)

	require.Len(t, report.Findings, 1,
		"same (source, sink, kind) from two call sites collapses to one finding")
	assert.Less(t, report.Findings[0].Confidence, 0.95, "cross-function hop decays")
}

func TestSeverityOrdering(t *testing.T) {
	b := ir.NewBuilder()
	b.SetFile("app.py")
	f := b.Function("handler", 1, nil,
		b.Assign(b.Ident("user", 2), b.CallNamed("input", 2), 2),
		sinkCall(b, b.Ident("user", 3), 3),
		b.Call(b.Attr(b.Ident("os", 4), "system", 4), 4, b.Ident("user", 4)),
	)
	b.Module("app", f)

	report, err := Analyze(context.Background(), b.Graph(), registry.Default(), Options{})
	require.NoError(t, err)

	require.Len(t, report.Findings, 2)
	assert.Equal(t, "command-injection", report.Findings[0].Kind, "critical sorts first")
	assert.Equal(t, "sql-injection", report.Findings[1].Kind)
}

func TestGapsSurfaceInReport(t *testing.T) {
	b := ir.NewBuilder()
	b.SetFile("app.py")
	f := b.Function("handler", 1, nil,
		b.Assign(b.Ident("user", 2), b.CallNamed("input", 2), 2),
		b.Assign(b.Ident("x", 3), b.CallNamed("mystery", 3, b.Ident("user", 3)), 3),
		sinkCall(b, b.Ident("x", 4), 4),
	)
	b.Module("app", f)

	report, err := Analyze(context.Background(), b.Graph(), registry.Default(), Options{})
	require.NoError(t, err)

	require.Len(t, report.Findings, 1, "unknown callee preserves taint")
	assert.NotEmpty(t, report.Gaps, "unresolved target is a reported gap")
}
