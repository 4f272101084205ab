// Package core provides the validation engine for listing files.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"fmt"
	"time"
)

// Sentinels used by findings that are not tied to one line or one field.
const (
	FileScope  = 0         // LineNumber of whole-file findings
	NoRank     = 0         // Rank of structural findings
	UnknownKey = "unknown" // BusinessKey when the key field is empty or missing
)

// Severity distinguishes hard violations from advisory findings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Finding is one reported problem. Findings are values: they are created
// during validation and never mutated afterwards.
type Finding struct {
	LineNumber  int      `json:"line"`
	BusinessKey string   `json:"business_key"`
	Rank        int      `json:"rank"`
	FieldName   string   `json:"field_name"`
	Code        string   `json:"code"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	RawValue    string   `json:"raw_value"`
}

// Source returns the location prefix used in reports, e.g.
// "Line 4, Field 3 ('Type d'annonce')".
func (f Finding) Source() string {
	switch {
	case f.LineNumber == FileScope:
		return "File"
	case f.Rank == NoRank:
		return fmt.Sprintf("Line %d", f.LineNumber)
	default:
		return fmt.Sprintf("Line %d, Field %d ('%s')", f.LineNumber, f.Rank, f.FieldName)
	}
}

// String renders the finding as a single report line.
func (f Finding) String() string {
	if f.RawValue == "" {
		return f.Source() + ": " + f.Message
	}
	return fmt.Sprintf("%s: %s Value: %s.", f.Source(), f.Message, f.RawValue)
}

// Line is one non-blank physical line cut into raw tokens.
// Number is the 1-based physical line number in the decoded text.
type Line struct {
	Number int
	Text   string
	Tokens []string
}

// NormalizedRow holds exactly N cleaned values for one line.
// Malformed is set when the line's token count did not match N.
type NormalizedRow struct {
	LineNumber int      `json:"line"`
	Values     []string `json:"values"`
	Malformed  bool     `json:"malformed,omitempty"`
}

// Report is the complete outcome of validating one file.
type Report struct {
	SchemaKey     string          `json:"schema"`
	Encoding      string          `json:"encoding"`
	Columns       []string        `json:"columns"`
	Rows          []NormalizedRow `json:"rows,omitempty"`
	Findings      []Finding       `json:"findings"`
	Lines         int             `json:"lines"`
	Shape         Shape           `json:"shape"`
	DuplicateKeys int             `json:"duplicate_keys"` // keys used on more than one line
}

// Counts returns the number of error and warning findings.
func (r *Report) Counts() (errs, warnings int) {
	for _, f := range r.Findings {
		if f.Severity == SeverityWarning {
			warnings++
		} else {
			errs++
		}
	}
	return errs, warnings
}

// Valid reports whether the file produced no error findings.
func (r *Report) Valid() bool {
	errs, _ := r.Counts()
	return errs == 0
}

// RunStatus is the outcome of a validation run.
type RunStatus string

const (
	RunValid   RunStatus = "valid"
	RunInvalid RunStatus = "invalid"
)

// Run is a recorded validation of one uploaded file.
type Run struct {
	ID        string        `json:"id"`
	SchemaKey string        `json:"schema"`
	FileName  string        `json:"file_name"`
	Encoding  string        `json:"encoding"`
	ClientIP  string        `json:"client_ip,omitempty"`
	UserAgent string        `json:"user_agent,omitempty"`
	Lines     int           `json:"lines"`
	Errors    int           `json:"errors"`
	Warnings  int           `json:"warnings"`
	Status    RunStatus     `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration_ns"`
	Report    *Report       `json:"report,omitempty"`
}

// RunStore persists validation runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]*Run, error)
}
