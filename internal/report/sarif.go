package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/dkarev/symflow/internal/analyzer"
)

type sarifOutput struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string      `json:"name"`
	Version        string      `json:"version"`
	InformationURI string      `json:"informationUri"`
	Rules          []sarifRule `json:"rules"`
}

type sarifRule struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	ShortDescription sarifMessage      `json:"shortDescription"`
	Properties       map[string]string `json:"properties,omitempty"`
}

type sarifResult struct {
	RuleID    string             `json:"ruleId"`
	Level     string             `json:"level"`
	Message   sarifMessage       `json:"message"`
	Locations []sarifLocation    `json:"locations,omitempty"`
	Props     map[string]float64 `json:"properties,omitempty"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

func sarifLevel(severity string) string {
	switch severity {
	case "critical", "high":
		return "error"
	case "medium":
		return "warning"
	default:
		return "note"
	}
}

// WriteSARIF emits findings in SARIF 2.1.0, one rule per vulnerability kind.
func WriteSARIF(w io.Writer, r *analyzer.Report) error {
	ruleSet := make(map[string]analyzer.Finding)
	for _, f := range r.Findings {
		if _, ok := ruleSet[f.Kind]; !ok {
			ruleSet[f.Kind] = f
		}
	}
	kinds := make([]string, 0, len(ruleSet))
	for kind := range ruleSet {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	rules := make([]sarifRule, 0, len(kinds))
	for _, kind := range kinds {
		f := ruleSet[kind]
		props := map[string]string{"severity": f.Severity}
		if f.CWE != "" {
			props["cwe"] = f.CWE
		}
		rules = append(rules, sarifRule{
			ID:               kind,
			Name:             kind,
			ShortDescription: sarifMessage{Text: fmt.Sprintf("Tainted data reaches a %s sink", kind)},
			Properties:       props,
		})
	}

	results := make([]sarifResult, 0, len(r.Findings))
	for _, f := range r.Findings {
		results = append(results, sarifResult{
			RuleID:  f.Kind,
			Level:   sarifLevel(f.Severity),
			Message: sarifMessage{Text: f.Message},
			Locations: []sarifLocation{{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: f.Sink.File},
					Region:           &sarifRegion{StartLine: f.Sink.Line, StartColumn: f.Sink.Col},
				},
			}},
			Props: map[string]float64{"confidence": f.Confidence},
		})
	}

	out := sarifOutput{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Runs: []sarifRun{
			{
				Tool: sarifTool{
					Driver: sarifDriver{
						Name:           "symflow",
						Version:        "0.1.0",
						InformationURI: "https://github.com/dkarev/symflow",
						Rules:          rules,
					},
				},
				Results: results,
			},
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
