package core

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JonMunkholm/annonces/internal/schema"
)

// Plausibility is the policy for the column-misalignment advisory.
//
// A row whose columns are shifted by one keeps the right field count, so the
// structure pre-pass cannot see it. The symptoms show up per field instead:
// words in numeric fields, dates without digits, numbers where a word list
// is expected. The thresholds are policy, not fact, and are configurable.
type Plausibility struct {
	Enabled bool

	// MaxDateLength is the longest value still considered a date attempt.
	// Zero disables the length signal.
	MaxDateLength int

	// ReplaceTypeFinding reports only the advisory instead of the advisory
	// plus the ordinary type finding.
	ReplaceTypeFinding bool
}

// DefaultPlausibility is the policy used when none is configured.
func DefaultPlausibility() Plausibility {
	return Plausibility{Enabled: true, MaxDateLength: 10}
}

// check returns the advisory for a value that already failed its type check.
func (p Plausibility) check(rule schema.FieldRule, value string) (Issue, bool) {
	if !p.Enabled {
		return Issue{}, false
	}

	var reason string
	switch {
	case rule.Type.IsNumeric() && strings.IndexFunc(value, unicode.IsLetter) >= 0:
		reason = "letters in a numeric field"
	case rule.Type == schema.TypeDate && strings.IndexFunc(value, unicode.IsDigit) < 0:
		reason = "no digits in a date field"
	case rule.Type == schema.TypeDate && p.MaxDateLength > 0 && utf8.RuneCountInString(value) > p.MaxDateLength:
		reason = fmt.Sprintf("value longer than %d characters in a date field", p.MaxDateLength)
	case rule.Type == schema.TypeEnum && isDigits(value) && !anyHasDigit(rule.AllowedValues):
		reason = "a number where a word is expected"
	default:
		return Issue{}, false
	}

	return Issue{
		Code:     CodeMisalignment,
		Severity: SeverityWarning,
		Message:  fmt.Sprintf("Likely column misalignment (%s). Check that the preceding fields are not shifted.", reason),
	}, true
}

func anyHasDigit(values []string) bool {
	for _, v := range values {
		if strings.IndexFunc(v, unicode.IsDigit) >= 0 {
			return true
		}
	}
	return false
}
