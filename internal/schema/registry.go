package schema

import (
	"fmt"
	"slices"
	"strings"
)

// fillerName is the display name of ranks the rule table does not document.
const fillerName = "Champ non-défini %d"

// Definition is an unresolved rule table: a dialect plus the explicitly
// documented rules. New turns it into a gap-free Registry.
type Definition struct {
	Key     string
	Label   string
	Dialect Dialect
	Rules   []FieldRule
}

// Registry is the resolved, immutable rule table of one schema version.
// It always holds exactly Dialect.FieldCount rules with ranks 1..N.
type Registry struct {
	key     string
	label   string
	dialect Dialect
	rules   []FieldRule
	columns []string
	known   []bool
}

// New builds a Registry from def, filling every undocumented rank with an
// optional free-text rule.
func New(def Definition) (*Registry, error) {
	d := def.Dialect
	if d.FieldCount <= 0 {
		return nil, &SchemaError{Schema: def.Key, Reason: "field count must be positive"}
	}
	if d.KeyRank < 1 || d.KeyRank > d.FieldCount {
		return nil, &SchemaError{Schema: def.Key, Reason: fmt.Sprintf("key rank %d outside 1..%d", d.KeyRank, d.FieldCount)}
	}
	if d.Delimiter == "" {
		return nil, &SchemaError{Schema: def.Key, Reason: "delimiter is empty"}
	}
	if d.DateLayout == "" {
		return nil, &SchemaError{Schema: def.Key, Reason: "date layout is empty"}
	}

	rules := make([]FieldRule, d.FieldCount)
	seen := make([]bool, d.FieldCount)
	for _, r := range def.Rules {
		if r.Rank < 1 || r.Rank > d.FieldCount {
			return nil, &SchemaError{Schema: def.Key, Reason: fmt.Sprintf("rank %d outside 1..%d", r.Rank, d.FieldCount)}
		}
		if seen[r.Rank-1] {
			return nil, &SchemaError{Schema: def.Key, Reason: fmt.Sprintf("rank %d defined twice", r.Rank)}
		}
		if r.Type == TypeEnum && len(r.AllowedValues) == 0 {
			return nil, &SchemaError{Schema: def.Key, Reason: fmt.Sprintf("rank %d is an enum without allowed values", r.Rank)}
		}
		if r.Type == TypeText && len(r.AllowedValues) > 0 {
			r.Type = TypeEnum
		}
		if strings.TrimSpace(r.Name) == "" {
			r.Name = fmt.Sprintf(fillerName, r.Rank)
		}
		r.AllowedValues = append([]string(nil), r.AllowedValues...)
		rules[r.Rank-1] = r
		seen[r.Rank-1] = true
	}
	for i := range rules {
		if !seen[i] {
			rules[i] = FieldRule{Rank: i + 1, Name: fmt.Sprintf(fillerName, i+1), Type: TypeText}
		}
	}

	columns := make([]string, len(rules))
	for i, r := range rules {
		columns[i] = r.Name
	}

	d.Encodings = append([]string(nil), d.Encodings...)
	return &Registry{
		key:     def.Key,
		label:   def.Label,
		dialect: d,
		rules:   rules,
		columns: columns,
		known:   seen,
	}, nil
}

// Key returns the catalog key of this schema version.
func (r *Registry) Key() string { return r.key }

// Label returns the human-readable schema name.
func (r *Registry) Label() string { return r.label }

// Dialect returns the line-format parameters.
func (r *Registry) Dialect() Dialect { return r.dialect }

// Len returns N, the expected field count.
func (r *Registry) Len() int { return len(r.rules) }

// RuleAt returns the rule at a 0-based position.
func (r *Registry) RuleAt(pos int) (FieldRule, error) {
	if pos < 0 || pos >= len(r.rules) {
		return FieldRule{}, &SchemaError{Schema: r.key, Reason: fmt.Sprintf("position %d outside [0, %d)", pos, len(r.rules))}
	}
	return r.rules[pos], nil
}

// KeyRule returns the rule of the business key field.
func (r *Registry) KeyRule() FieldRule {
	return r.rules[r.dialect.KeyRank-1]
}

// Rules returns a copy of all rules in rank order.
func (r *Registry) Rules() []FieldRule {
	out := make([]FieldRule, len(r.rules))
	copy(out, r.rules)
	return out
}

// Documented returns the rules that are not auto-generated fillers.
func (r *Registry) Documented() []FieldRule {
	var out []FieldRule
	for i, rule := range r.rules {
		if r.known[i] {
			out = append(out, rule)
		}
	}
	return out
}

// Columns returns the N column display names in rank order.
func (r *Registry) Columns() []string {
	out := make([]string, len(r.columns))
	copy(out, r.columns)
	return out
}

// WithHeader returns a copy of r whose display names come from an external
// header resource. The header must name exactly N columns.
func (r *Registry) WithHeader(names []string) (*Registry, error) {
	if len(names) != len(r.rules) {
		return nil, &SchemaError{Schema: r.key, Reason: fmt.Sprintf("header has %d names, expected %d", len(names), len(r.rules))}
	}
	var blank []string
	for i, n := range names {
		if strings.TrimSpace(n) == "" {
			blank = append(blank, fmt.Sprint(i+1))
		}
	}
	if len(blank) > 0 {
		return nil, &SchemaError{Schema: r.key, Reason: "header has empty names at ranks " + strings.Join(blank, ", ")}
	}

	cp := *r
	cp.rules = r.Rules()
	cp.columns = make([]string, len(names))
	for i, n := range names {
		n = strings.TrimSpace(n)
		cp.rules[i].Name = n
		cp.columns[i] = n
	}
	return &cp, nil
}

// Summary is a serializable description of a schema version.
type Summary struct {
	Key        string     `json:"key"`
	Label      string     `json:"label"`
	FieldCount int        `json:"field_count"`
	KeyRank    int        `json:"key_rank"`
	Delimiter  string     `json:"delimiter"`
	DateLayout string     `json:"date_layout"`
	Encodings  []string   `json:"encodings"`
	Rules      []RuleView `json:"rules,omitempty"`
}

// RuleView is the JSON shape of a documented rule.
type RuleView struct {
	Rank          int      `json:"rank"`
	Name          string   `json:"name"`
	Type          string   `json:"type"`
	Mandatory     bool     `json:"mandatory"`
	AllowedValues []string `json:"allowed_values,omitempty"`
	MaxLength     int      `json:"max_length,omitempty"`
}

// Summarize describes r; documented rules are included when withRules is set.
func (r *Registry) Summarize(withRules bool) Summary {
	s := Summary{
		Key:        r.key,
		Label:      r.label,
		FieldCount: r.dialect.FieldCount,
		KeyRank:    r.dialect.KeyRank,
		Delimiter:  r.dialect.Delimiter,
		DateLayout: r.dialect.DateLayout,
		Encodings:  slices.Clone(r.dialect.Encodings),
	}
	if withRules {
		for _, rule := range r.Documented() {
			s.Rules = append(s.Rules, RuleView{
				Rank:          rule.Rank,
				Name:          rule.Name,
				Type:          rule.TypeName(),
				Mandatory:     rule.Mandatory,
				AllowedValues: slices.Clone(rule.AllowedValues),
				MaxLength:     rule.MaxLength,
			})
		}
	}
	return s
}
