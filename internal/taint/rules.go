package taint

// SourceSpec marks a call or attribute read that introduces untrusted data.
type SourceSpec struct {
	Pattern  string
	Level    Level
	Category string
}

// SinkSpec marks a call that consumes data dangerously. Category ties the
// sink to the sanitizers that neutralize it; Kind/CWE/Severity feed findings.
type SinkSpec struct {
	Pattern  string
	Kind     string
	Category string
	CWE      string
	Severity string
}

// SanitizerSpec marks a call that strips taint for the listed sink
// categories. "*" clears every category.
type SanitizerSpec struct {
	Pattern string
	Clears  []string
}

// Classifier resolves textual callee names and attribute paths against the
// active source/sink registry. Implementations are immutable during a run.
type Classifier interface {
	Source(name string) (SourceSpec, bool)
	Sink(name string) (SinkSpec, bool)
	Sanitizer(name string) (SanitizerSpec, bool)
}

// Flow is one candidate source-to-sink taint path, the raw material for a
// finding. Confidence already reflects cross-function hop decay; the
// mismatched-sanitizer penalty is applied by the analyzer.
type Flow struct {
	Source     Step           `json:"source"`
	Sink       Step           `json:"sink"`
	Kind       string         `json:"kind"`
	Category   string         `json:"category"`
	CWE        string         `json:"cwe,omitempty"`
	Severity   string         `json:"severity,omitempty"`
	Function   string         `json:"function"`
	Level      Level          `json:"level"`
	Path       []Step         `json:"path,omitempty"`
	Sanitizers []SanitizerUse `json:"sanitizers,omitempty"`
	Confidence float64        `json:"confidence"`
}

// Key is the deduplication identity of a flow.
func (f Flow) Key() string {
	return f.Source.Loc.String() + "|" + f.Sink.Loc.String() + "|" + f.Kind
}
