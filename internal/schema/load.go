package schema

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// fileDef is the YAML layout of a rule table.
type fileDef struct {
	Key     string      `yaml:"key"`
	Label   string      `yaml:"label"`
	Dialect fileDialect `yaml:"dialect"`
	Header  []string    `yaml:"header,omitempty"`
	Rules   []fileRule  `yaml:"rules"`
}

type fileDialect struct {
	FieldCount        int      `yaml:"field_count"`
	KeyRank           int      `yaml:"key_rank"`
	Delimiter         string   `yaml:"delimiter"`
	Quote             string   `yaml:"quote"`
	QuoteRequired     bool     `yaml:"quote_required"`
	DropTrailingEmpty bool     `yaml:"drop_trailing_empty"`
	DateLayout        string   `yaml:"date_layout"`
	Encodings         []string `yaml:"encodings"`
}

type fileRule struct {
	Rank      int      `yaml:"rank"`
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Mandatory bool     `yaml:"mandatory"`
	Values    []string `yaml:"values,omitempty"`
	MaxLength int      `yaml:"max_length,omitempty"`
}

// Parse decodes a YAML rule table and resolves it into a Registry.
// When the table carries a header list it must name exactly N columns.
func Parse(data []byte) (*Registry, error) {
	var fd fileDef
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fd); err != nil {
		return nil, &SchemaError{Reason: fmt.Sprintf("parse rule table: %v", err)}
	}
	if fd.Key == "" {
		return nil, &SchemaError{Reason: "rule table has no key"}
	}

	quote := fd.Dialect.Quote
	if quote == "" {
		quote = `"`
	}
	if len(quote) != 1 {
		return nil, &SchemaError{Schema: fd.Key, Reason: fmt.Sprintf("quote %q must be a single byte", quote)}
	}

	def := Definition{
		Key:   fd.Key,
		Label: fd.Label,
		Dialect: Dialect{
			FieldCount:        fd.Dialect.FieldCount,
			KeyRank:           fd.Dialect.KeyRank,
			Delimiter:         fd.Dialect.Delimiter,
			Quote:             quote[0],
			QuoteRequired:     fd.Dialect.QuoteRequired,
			DropTrailingEmpty: fd.Dialect.DropTrailingEmpty,
			DateLayout:        fd.Dialect.DateLayout,
			Encodings:         fd.Dialect.Encodings,
		},
	}
	if def.Label == "" {
		def.Label = def.Key
	}

	for _, fr := range fd.Rules {
		vt, err := ParseValueType(fr.Type)
		if err != nil {
			return nil, &SchemaError{Schema: fd.Key, Reason: fmt.Sprintf("rank %d: %v", fr.Rank, err)}
		}
		def.Rules = append(def.Rules, FieldRule{
			Rank:          fr.Rank,
			Name:          fr.Name,
			Type:          vt,
			Mandatory:     fr.Mandatory,
			AllowedValues: fr.Values,
			MaxLength:     fr.MaxLength,
		})
	}

	reg, err := New(def)
	if err != nil {
		return nil, err
	}
	if len(fd.Header) > 0 {
		return reg.WithHeader(fd.Header)
	}
	return reg, nil
}

// LoadFile reads and parses a rule table from disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule table: %w", err)
	}
	return Parse(data)
}

// ParseHeader reads a header resource: the first non-blank line, cut with
// the dialect's delimiter, with quotes and surrounding spaces removed.
func ParseHeader(data []byte, d Dialect) ([]string, error) {
	if !utf8.Valid(data) {
		return nil, &SchemaError{Reason: "header resource is not valid UTF-8"}
	}
	text := strings.TrimPrefix(string(data), "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var line string
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}
	if line == "" {
		return nil, &SchemaError{Reason: "header resource is empty"}
	}

	parts := strings.Split(line, d.Delimiter)
	if d.DropTrailingEmpty && len(parts) == d.FieldCount+1 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}
	q := string(d.Quote)
	names := make([]string, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		p = strings.TrimPrefix(p, q)
		p = strings.TrimSuffix(p, q)
		names[i] = strings.TrimSpace(p)
	}
	return names, nil
}

// LoadHeaderFile reads a header resource from disk and applies it to reg.
func LoadHeaderFile(reg *Registry, path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read header resource: %w", err)
	}
	names, err := ParseHeader(data, reg.Dialect())
	if err != nil {
		return nil, err
	}
	return reg.WithHeader(names)
}
