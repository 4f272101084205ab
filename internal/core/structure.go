package core

// structure.go classifies a file's field counts before any row is validated.
//
// If every line has the same wrong count the whole file is shifted (wrong
// schema version, extra leading column...): that is reported once and rows
// are padded or truncated silently. Otherwise each offending line is
// reported on its own, since each likely has its own cause.

import "fmt"

// Regime is the structural classification of a file.
type Regime string

const (
	RegimeConforming   Regime = "conforming"
	RegimeUniformShift Regime = "uniform_shift"
	RegimeSporadic     Regime = "sporadic"
)

// Shape is the outcome of the structure pre-pass.
type Shape struct {
	Regime   Regime `json:"regime"`
	Expected int    `json:"expected"`
	Observed int    `json:"observed,omitempty"` // the common count under RegimeUniformShift
}

// AnalyzeStructure classifies per-line token counts against n.
func AnalyzeStructure(counts []int, n int) Shape {
	shape := Shape{Regime: RegimeConforming, Expected: n}
	if len(counts) == 0 {
		return shape
	}

	first := counts[0]
	uniform := true
	conforming := true
	for _, c := range counts {
		if c != first {
			uniform = false
		}
		if c != n {
			conforming = false
		}
	}

	switch {
	case conforming:
	case uniform:
		shape.Regime = RegimeUniformShift
		shape.Observed = first
	default:
		shape.Regime = RegimeSporadic
	}
	return shape
}

// FileFinding returns the single file-scope finding of a shifted file.
func (s Shape) FileFinding() (Finding, bool) {
	if s.Regime != RegimeUniformShift {
		return Finding{}, false
	}
	diff := s.Observed - s.Expected
	direction := "more"
	if diff < 0 {
		direction = "fewer"
		diff = -diff
	}
	return Finding{
		LineNumber:  FileScope,
		BusinessKey: UnknownKey,
		Rank:        NoRank,
		Code:        CodeColumnShift,
		Severity:    SeverityError,
		Message: fmt.Sprintf("Every line has %d columns instead of %d (%d %s). The file likely follows another schema version or carries an extra or missing leading or trailing field.",
			s.Observed, s.Expected, diff, direction),
	}, true
}

// RowFinding returns the per-line finding for a line with count tokens.
// Under the uniform-shift regime the file finding already covers it.
func (s Shape) RowFinding(line, count int, key string) (Finding, bool) {
	if s.Regime != RegimeSporadic || count == s.Expected {
		return Finding{}, false
	}
	f := Finding{
		LineNumber:  line,
		BusinessKey: key,
		Rank:        NoRank,
		Severity:    SeverityError,
	}
	if count < s.Expected {
		f.Code = CodeTooFewColumns
		f.Message = fmt.Sprintf("Too few columns. Expected: %d, found: %d.", s.Expected, count)
	} else {
		f.Code = CodeTooManyColumns
		f.Message = fmt.Sprintf("Too many columns. Expected: %d, found: %d.", s.Expected, count)
	}
	return f, true
}

// Malformed reports whether a line with count tokens needs padding or
// truncation.
func (s Shape) Malformed(count int) bool {
	return count != s.Expected
}
