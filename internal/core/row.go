package core

import (
	"fmt"

	"github.com/JonMunkholm/annonces/internal/schema"
)

// RowResult is the outcome of validating one line.
type RowResult struct {
	Row      NormalizedRow
	Findings []Finding
}

// RowValidator validates one line using the facts gathered by the file
// pre-passes. It is safe for concurrent use.
type RowValidator struct {
	dialect schema.Dialect
	rules   []schema.FieldRule
	keyRule schema.FieldRule
	fields  *FieldValidator
}

// NewRowValidator creates a row validator for reg.
func NewRowValidator(reg *schema.Registry, fields *FieldValidator) *RowValidator {
	return &RowValidator{
		dialect: reg.Dialect(),
		rules:   reg.Rules(),
		keyRule: reg.KeyRule(),
		fields:  fields,
	}
}

// ValidateRow runs, in order: the structural verdict, the quoting check,
// the duplicate check, normalization and the per-field checks.
//
// A line with its own wrong field count (STR002 or STR003) is normalized
// but skips the quoting and field checks: every later rank is suspect and
// would only bury the structural finding. Its duplicate check still runs.
// Under a uniform column shift no line gets a line finding, so every line
// keeps its quoting and field checks.
func (v *RowValidator) ValidateRow(line Line, shape Shape, dup DuplicateIndex) (res RowResult) {
	n := len(v.rules)
	d := v.dialect

	keyValue := ""
	if pos := d.KeyRank - 1; pos < len(line.Tokens) {
		keyValue = Normalize(line.Tokens[pos], d.Quote)
	}
	key := keyValue
	if key == "" {
		key = UnknownKey
	}

	res.Row = NormalizedRow{
		LineNumber: line.Number,
		Values:     NormalizeRow(line.Tokens, n, d.Quote),
		Malformed:  shape.Malformed(len(line.Tokens)),
	}

	defer func() {
		if r := recover(); r != nil {
			res.Findings = append(res.Findings, Finding{
				LineNumber:  line.Number,
				BusinessKey: key,
				Rank:        NoRank,
				Code:        CodeCheckFailed,
				Severity:    SeverityError,
				Message:     fmt.Sprintf("Line could not be checked: %v.", r),
			})
		}
	}()

	structural, malformed := shape.RowFinding(line.Number, len(line.Tokens), key)
	if malformed {
		res.Findings = append(res.Findings, structural)
	}

	if !malformed && d.QuoteRequired {
		for i := 0; i < n && i < len(line.Tokens); i++ {
			tok := line.Tokens[i]
			if IsWellQuoted(tok, d.Quote) {
				continue
			}
			res.Findings = append(res.Findings, Finding{
				LineNumber:  line.Number,
				BusinessKey: key,
				Rank:        v.rules[i].Rank,
				FieldName:   v.rules[i].Name,
				Code:        CodeNotQuoted,
				Severity:    SeverityError,
				Message:     fmt.Sprintf("Value must be enclosed in %c quotes.", d.Quote),
				RawValue:    quoteValue(tok),
			})
		}
	}

	res.Findings = append(res.Findings, dup.FindingsFor(keyValue, line.Number, v.keyRule)...)

	if malformed {
		return res
	}

	for i, value := range res.Row.Values {
		rule := v.rules[i]
		for _, is := range v.fields.Check(rule, value) {
			res.Findings = append(res.Findings, Finding{
				LineNumber:  line.Number,
				BusinessKey: key,
				Rank:        rule.Rank,
				FieldName:   rule.Name,
				Code:        is.Code,
				Severity:    is.Severity,
				Message:     is.Message,
				RawValue:    quoteValue(value),
			})
		}
	}
	return res
}
