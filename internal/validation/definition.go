// internal/validation/definition.go
//
// YAML rule-file loader.
//
// Context
// -------
// Components may declare their input rules in YAML instead of code.  A rule
// file names a set, then lists fields with their steps in order.  Each step
// is either a rule (with a message) or a sanitizer.  Parse validates the
// structure up front so a typo fails at boot, not on the first request.
//
// Example
// -------
//
//	id: apiv1/users
//	fields:
//	  - name: email
//	    steps:
//	      - rule: not_empty
//	        message: Email is required
//	      - rule: email
//	        message: Must be a valid email address
//	  - name: username
//	    steps:
//	      - rule: not_empty
//	        message: Username is required
//	      - sanitize: trim
//	      - sanitize: escape
//
// Notes
// -----
// • Oxford commas, two spaces after periods.

package validation

import (
	"fmt"
	"io/fs"
	"regexp"

	"gopkg.in/yaml.v3"
)

// RuleSetDef mirrors one rule file.
type RuleSetDef struct {
	ID     string     `yaml:"id"`
	Fields []FieldDef `yaml:"fields"`
}

// FieldDef describes one chain.
type FieldDef struct {
	Name     string    `yaml:"name"`
	In       string    `yaml:"in"` // body (default) or query
	Optional bool      `yaml:"optional"`
	Steps    []StepDef `yaml:"steps"`
}

// StepDef is one rule or sanitizer.  Exactly one of Rule or Sanitize is set.
type StepDef struct {
	Rule     string   `yaml:"rule"`     // exists, not_empty, email, length, matches, one_of, numeric, int, bail
	Sanitize string   `yaml:"sanitize"` // trim, escape, lowercase, to_int
	Message  string   `yaml:"message"`
	Min      int      `yaml:"min"`
	Max      int      `yaml:"max"`
	Pattern  string   `yaml:"pattern"`
	Values   []string `yaml:"values"`
}

// RuleSet is a parsed, ready-to-run rule file.
type RuleSet struct {
	ID    string
	Rules Rules
}

// Parse builds a RuleSet from YAML bytes.  name is used in error messages.
func Parse(name string, raw []byte) (*RuleSet, error) {
	var def RuleSetDef
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse rule file %s: %w", name, err)
	}
	if def.ID == "" {
		return nil, fmt.Errorf("rule file %s: missing required 'id'", name)
	}
	if len(def.Fields) == 0 {
		return nil, fmt.Errorf("rule file %s: no fields", name)
	}

	rs := &RuleSet{ID: def.ID}
	seen := map[string]bool{}
	for i, f := range def.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("rule file %s: field %d has no name", name, i)
		}
		key := f.In + "." + f.Name
		if seen[key] {
			return nil, fmt.Errorf("rule file %s: duplicate field %q", name, f.Name)
		}
		seen[key] = true

		c, err := buildChain(f)
		if err != nil {
			return nil, fmt.Errorf("rule file %s: field %q: %w", name, f.Name, err)
		}
		rs.Rules = append(rs.Rules, c)
	}
	return rs, nil
}

// LoadFS reads and parses one rule file from fsys.
func LoadFS(fsys fs.FS, path string) (*RuleSet, error) {
	raw, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("read rule file %s: %w", path, err)
	}
	return Parse(path, raw)
}

// MustLoadFS is LoadFS for embedded files that ship with the binary.
func MustLoadFS(fsys fs.FS, path string) *RuleSet {
	rs, err := LoadFS(fsys, path)
	if err != nil {
		panic(err)
	}
	return rs
}

func buildChain(f FieldDef) (*Chain, error) {
	var c *Chain
	switch f.In {
	case "", InBody:
		c = Field(f.Name)
	case InQuery:
		c = Query(f.Name)
	default:
		return nil, fmt.Errorf("unknown location %q", f.In)
	}
	if f.Optional {
		c.Optional()
	}

	for i, s := range f.Steps {
		switch {
		case s.Rule != "" && s.Sanitize != "":
			return nil, fmt.Errorf("step %d sets both rule and sanitize", i)
		case s.Sanitize != "":
			if err := addSanitizer(c, s.Sanitize); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
		case s.Rule != "":
			if err := addRule(c, s); err != nil {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("step %d is empty", i)
		}
	}
	return c, nil
}

func addSanitizer(c *Chain, name string) error {
	switch name {
	case "trim":
		c.Trim()
	case "escape":
		c.Escape()
	case "lowercase":
		c.Lowercase()
	case "to_int":
		c.ToInt()
	default:
		return fmt.Errorf("unknown sanitizer %q", name)
	}
	return nil
}

func addRule(c *Chain, s StepDef) error {
	if s.Rule != "bail" && s.Message == "" {
		return fmt.Errorf("rule %q needs a message", s.Rule)
	}
	switch s.Rule {
	case "bail":
		c.Bail()
	case "exists":
		c.Exists(s.Message)
	case "not_empty":
		c.NotEmpty(s.Message)
	case "email":
		c.IsEmail(s.Message)
	case "length":
		if s.Min < 0 || (s.Max > 0 && s.Max < s.Min) {
			return fmt.Errorf("length bounds %d..%d are invalid", s.Min, s.Max)
		}
		c.Length(s.Min, s.Max, s.Message)
	case "matches":
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return fmt.Errorf("bad pattern: %w", err)
		}
		c.Matches(s.Pattern, s.Message)
	case "one_of":
		if len(s.Values) == 0 {
			return fmt.Errorf("one_of needs values")
		}
		c.OneOf(s.Values, s.Message)
	case "numeric":
		c.IsNumeric(s.Message)
	case "int":
		max := int64(s.Max)
		if s.Max == 0 {
			max = 1<<63 - 1
		}
		c.IsInt(int64(s.Min), max, s.Message)
	default:
		return fmt.Errorf("unknown rule %q", s.Rule)
	}
	return nil
}
