// Package registry holds the source/sink/sanitizer catalog the analysis
// matches call shapes against. Catalogs are loaded from YAML or compiled in,
// are hot-swappable between runs, and immutable during one run.
package registry

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dkarev/symflow/internal/taint"
)

// Rule is one catalog entry. Pattern is a dotted call or attribute shape;
// it matches a callee exactly or as a trailing path segment, so
// "cursor.execute" also matches "db.cursor.execute". Language scopes the
// rule to one frontend language via ForLanguage; empty means every language.
type Rule struct {
	Language string   `yaml:"language,omitempty"`
	Pattern  string   `yaml:"pattern"`
	Role     string   `yaml:"role"`
	Label    string   `yaml:"label,omitempty"`
	Kind     string   `yaml:"kind,omitempty"`
	Category string   `yaml:"category,omitempty"`
	CWE      string   `yaml:"cwe,omitempty"`
	Severity string   `yaml:"severity,omitempty"`
	Clears   []string `yaml:"clears,omitempty"`
}

const (
	RoleSource    = "source"
	RoleSink      = "sink"
	RoleSanitizer = "sanitizer"
)

// sourceRule, sinkRule, and sanitizerRule pair a compiled spec with the
// language it applies to; an empty language is language-neutral.
type sourceRule struct {
	lang string
	spec taint.SourceSpec
}

type sinkRule struct {
	lang string
	spec taint.SinkSpec
}

type sanitizerRule struct {
	lang string
	spec taint.SanitizerSpec
}

// Catalog is a compiled rule set. It implements taint.Classifier.
type Catalog struct {
	sources    []sourceRule
	sinks      []sinkRule
	sanitizers []sanitizerRule
}

// Compile validates rules and builds a catalog.
func Compile(rules []Rule) (*Catalog, error) {
	c := &Catalog{}
	for i, r := range rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("rule %d: empty pattern", i)
		}
		lang := strings.ToLower(r.Language)
		switch r.Role {
		case RoleSource:
			level := taint.LevelFromString(r.Label)
			if level == taint.Untainted {
				level = taint.High
			}
			c.sources = append(c.sources, sourceRule{lang: lang, spec: taint.SourceSpec{
				Pattern:  r.Pattern,
				Level:    level,
				Category: r.Category,
			}})
		case RoleSink:
			if r.Kind == "" {
				return nil, fmt.Errorf("rule %d (%s): sink without kind", i, r.Pattern)
			}
			c.sinks = append(c.sinks, sinkRule{lang: lang, spec: taint.SinkSpec{
				Pattern:  r.Pattern,
				Kind:     r.Kind,
				Category: r.Category,
				CWE:      r.CWE,
				Severity: r.Severity,
			}})
		case RoleSanitizer:
			if len(r.Clears) == 0 {
				return nil, fmt.Errorf("rule %d (%s): sanitizer clears nothing", i, r.Pattern)
			}
			c.sanitizers = append(c.sanitizers, sanitizerRule{lang: lang, spec: taint.SanitizerSpec{
				Pattern: r.Pattern,
				Clears:  r.Clears,
			}})
		default:
			return nil, fmt.Errorf("rule %d (%s): unknown role %q", i, r.Pattern, r.Role)
		}
	}
	return c, nil
}

// ForLanguage narrows the catalog to rules for lang plus language-neutral
// rules, so one language's sanitizers cannot suppress findings in another.
// An empty lang keeps the whole catalog.
func (c *Catalog) ForLanguage(lang string) *Catalog {
	if lang == "" {
		return c
	}
	lang = strings.ToLower(lang)
	out := &Catalog{}
	for _, r := range c.sources {
		if r.lang == "" || r.lang == lang {
			out.sources = append(out.sources, r)
		}
	}
	for _, r := range c.sinks {
		if r.lang == "" || r.lang == lang {
			out.sinks = append(out.sinks, r)
		}
	}
	for _, r := range c.sanitizers {
		if r.lang == "" || r.lang == lang {
			out.sanitizers = append(out.sanitizers, r)
		}
	}
	return out
}

// ruleFile is the YAML document shape.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Load reads a YAML rule document and compiles it.
func Load(r io.Reader) (*Catalog, error) {
	var doc ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	return Compile(doc.Rules)
}

// LoadFile loads a YAML rule file from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rules: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// matches reports whether pattern covers the dotted name: exact, or the
// name's trailing segments equal the pattern.
func matches(pattern, name string) bool {
	if pattern == name {
		return true
	}
	return strings.HasSuffix(name, "."+pattern)
}

// Source implements taint.Classifier.
func (c *Catalog) Source(name string) (taint.SourceSpec, bool) {
	for _, s := range c.sources {
		if matches(s.spec.Pattern, name) {
			return s.spec, true
		}
	}
	return taint.SourceSpec{}, false
}

// Sink implements taint.Classifier.
func (c *Catalog) Sink(name string) (taint.SinkSpec, bool) {
	for _, s := range c.sinks {
		if matches(s.spec.Pattern, name) {
			return s.spec, true
		}
	}
	return taint.SinkSpec{}, false
}

// Sanitizer implements taint.Classifier.
func (c *Catalog) Sanitizer(name string) (taint.SanitizerSpec, bool) {
	for _, s := range c.sanitizers {
		if matches(s.spec.Pattern, name) {
			return s.spec, true
		}
	}
	return taint.SanitizerSpec{}, false
}

// Counts reports catalog sizes for logging.
func (c *Catalog) Counts() (sources, sinks, sanitizers int) {
	return len(c.sources), len(c.sinks), len(c.sanitizers)
}

// Fingerprint identifies the compiled rule set for summary cache keying.
func (c *Catalog) Fingerprint() string {
	h := sha256.New()
	for _, s := range c.sources {
		fmt.Fprintf(h, "source|%s|%s|%d|%s\n", s.lang, s.spec.Pattern, s.spec.Level, s.spec.Category)
	}
	for _, s := range c.sinks {
		fmt.Fprintf(h, "sink|%s|%s|%s|%s|%s|%s\n", s.lang, s.spec.Pattern, s.spec.Kind, s.spec.Category, s.spec.CWE, s.spec.Severity)
	}
	for _, s := range c.sanitizers {
		fmt.Fprintf(h, "sanitizer|%s|%s|%s\n", s.lang, s.spec.Pattern, strings.Join(s.spec.Clears, ","))
	}
	return fmt.Sprintf("%x", h.Sum(nil)[:8])
}
