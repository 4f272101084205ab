package core

// validation.go provides the per-field check pipeline.
//
// Checks run in a fixed order and stop at the first failure for a field:
//  1. Presence: a mandatory field must not be empty
//  2. Empty optional fields are accepted without further checks
//  3. Type: integer, decimal, date, enumeration, postal code, text length
//
// When the type check fails, the plausibility policy may add an advisory
// finding pointing at a likely column misalignment.

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/annonces/internal/schema"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Issue is a field-level problem before it is placed on a line.
type Issue struct {
	Code     string
	Severity Severity
	Message  string
}

// FieldValidator checks single values against their FieldRule.
// It is safe for concurrent use.
type FieldValidator struct {
	dateLayout  string
	dateDisplay string
	policy      Plausibility
	enums       map[int]map[string]struct{}
}

// NewFieldValidator creates a validator for the rules of reg.
func NewFieldValidator(reg *schema.Registry, policy Plausibility) *FieldValidator {
	layout := reg.Dialect().DateLayout
	v := &FieldValidator{
		dateLayout:  layout,
		dateDisplay: displayLayout(layout),
		policy:      policy,
		enums:       make(map[int]map[string]struct{}),
	}
	for _, rule := range reg.Rules() {
		if rule.Type == schema.TypeEnum {
			v.enums[rule.Rank] = enumSet(rule.AllowedValues)
		}
	}
	return v
}

// Check runs the pipeline for one cleaned value.
func (v *FieldValidator) Check(rule schema.FieldRule, value string) []Issue {
	if value == "" {
		if rule.Mandatory {
			return []Issue{{Code: CodeMandatoryEmpty, Severity: SeverityError, Message: "Mandatory field is empty."}}
		}
		return nil
	}

	typeIssue, ok := v.checkType(rule, value)
	if ok {
		return nil
	}

	if advisory, misaligned := v.policy.check(rule, value); misaligned {
		if v.policy.ReplaceTypeFinding {
			return []Issue{advisory}
		}
		return []Issue{advisory, typeIssue}
	}
	return []Issue{typeIssue}
}

// checkType applies the type-specific check. ok is false when value does
// not satisfy the rule.
func (v *FieldValidator) checkType(rule schema.FieldRule, value string) (Issue, bool) {
	switch rule.Type {
	case schema.TypeInteger:
		if !isDigits(value) {
			return typeError(CodeNotInteger, "Must be an integer."), false
		}

	case schema.TypeDecimal:
		// parse success, not the parsed value, decides validity: "0" is valid
		if _, err := decimal.NewFromString(strings.ReplaceAll(value, ",", ".")); err != nil {
			return typeError(CodeNotNumber, "Must be a number."), false
		}

	case schema.TypeDate:
		if _, err := time.Parse(v.dateLayout, value); err != nil {
			return typeError(CodeInvalidDate, fmt.Sprintf("Invalid date format (expected %s): '%s'.", v.dateDisplay, value)), false
		}

	case schema.TypeEnum:
		set, ok := v.enums[rule.Rank]
		if !ok {
			set = enumSet(rule.AllowedValues)
		}
		if _, found := set[foldEnum(value)]; !found {
			return typeError(CodeNotAllowed, fmt.Sprintf("Value not allowed. Expected one of: %s.", quoteList(rule.AllowedValues))), false
		}

	case schema.TypePostalCode:
		if len(value) != 5 || !isDigits(value) {
			return typeError(CodeInvalidPostalCode, "Must be a 5-digit postal code."), false
		}
	}

	if rule.MaxLength > 0 && utf8.RuneCountInString(value) > rule.MaxLength {
		return typeError(CodeTooLong, fmt.Sprintf("Exceeds the maximum length of %d characters.", rule.MaxLength)), false
	}
	return Issue{}, true
}

func typeError(code, msg string) Issue {
	return Issue{Code: code, Severity: SeverityError, Message: msg}
}

// isDigits reports whether s is non-empty and made only of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// foldEnum normalizes an enumeration value: case folded, hyphens as spaces.
func foldEnum(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "-", " ")
	return cases.Fold().String(s)
}

func enumSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[foldEnum(v)] = struct{}{}
	}
	return set
}

// quoteValue formats a value for display in a finding.
func quoteValue(s string) string {
	return "'" + s + "'"
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteValue(v)
	}
	return strings.Join(quoted, ", ")
}

// displayLayout renders a Go time layout as DD/MM/YYYY style text.
func displayLayout(layout string) string {
	return strings.NewReplacer(
		"2006", "YYYY",
		"01", "MM",
		"02", "DD",
		"1", "MM",
		"2", "DD",
	).Replace(layout)
}
