// Package schema holds the versioned positional rule tables that listing
// files are validated against.
//
// A rule table is pure data: one FieldRule per rank plus the Dialect that
// fixes how a line is cut into fields. Tables are loaded from YAML, either
// embedded (see versions/) or from disk, and registered in a process-wide
// catalog that is read-only once the server is running.
package schema

import (
	"fmt"
	"strings"
)

// ValueType is the expected type of a field value.
type ValueType int

const (
	TypeText ValueType = iota
	TypeEnum
	TypeInteger
	TypeDecimal
	TypeDate
	TypePostalCode
)

// String returns the name used in rule tables.
func (t ValueType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeEnum:
		return "enum"
	case TypeInteger:
		return "integer"
	case TypeDecimal:
		return "decimal"
	case TypeDate:
		return "date"
	case TypePostalCode:
		return "postal_code"
	default:
		return "unknown"
	}
}

// ParseValueType converts a rule table type name to a ValueType.
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return TypeText, nil
	case "enum":
		return TypeEnum, nil
	case "integer":
		return TypeInteger, nil
	case "decimal":
		return TypeDecimal, nil
	case "date":
		return TypeDate, nil
	case "postal_code":
		return TypePostalCode, nil
	default:
		return TypeText, fmt.Errorf("unknown value type %q", s)
	}
}

// IsNumeric reports whether values of this type are made of digits.
func (t ValueType) IsNumeric() bool {
	return t == TypeInteger || t == TypeDecimal || t == TypePostalCode
}

// FieldRule describes one ranked field. Rules are immutable once a Registry
// is built.
type FieldRule struct {
	Rank          int       `json:"rank"`
	Name          string    `json:"name"`
	Type          ValueType `json:"-"`
	Mandatory     bool      `json:"mandatory"`
	AllowedValues []string  `json:"allowed_values,omitempty"`
	MaxLength     int       `json:"max_length,omitempty"` // 0 means unbounded
}

// TypeName returns the rule's type name for display.
func (r FieldRule) TypeName() string {
	return r.Type.String()
}

// Dialect holds the parameters that define a schema version's line format.
// Changing any of them is a schema-version change, not a runtime option.
type Dialect struct {
	FieldCount        int      `json:"field_count"`
	KeyRank           int      `json:"key_rank"`
	Delimiter         string   `json:"delimiter"`
	Quote             byte     `json:"-"`
	QuoteRequired     bool     `json:"quote_required"`
	DropTrailingEmpty bool     `json:"drop_trailing_empty"`
	DateLayout        string   `json:"date_layout"`
	Encodings         []string `json:"encodings"`
}

// SchemaError reports an invalid rule table or an out-of-range rule lookup.
type SchemaError struct {
	Schema string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Schema == "" {
		return "schema error: " + e.Reason
	}
	return fmt.Sprintf("schema error (%s): %s", e.Schema, e.Reason)
}
