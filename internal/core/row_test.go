package core

import (
	"reflect"
	"strings"
	"testing"
)

func newTestRowValidator(t *testing.T) *RowValidator {
	t.Helper()
	reg := testRegistry(t)
	return NewRowValidator(reg, NewFieldValidator(reg, DefaultPlausibility()))
}

func TestValidateRow_Valid(t *testing.T) {
	reg := testRegistry(t)
	v := newTestRowValidator(t)
	line := testLine(reg, 4, record(validValues("A-1")...))

	res := v.ValidateRow(line, AnalyzeStructure([]int{8}, 8), DuplicateIndex{})
	if len(res.Findings) != 0 {
		t.Errorf("findings = %v, want none", res.Findings)
	}
	if !reflect.DeepEqual(res.Row.Values, validValues("A-1")) {
		t.Errorf("values = %q", res.Row.Values)
	}
	if res.Row.LineNumber != 4 || res.Row.Malformed {
		t.Errorf("row = %+v", res.Row)
	}
}

func TestValidateRow_Findings(t *testing.T) {
	reg := testRegistry(t)
	v := newTestRowValidator(t)
	conforming := AnalyzeStructure([]int{8, 8}, 8)

	tests := []struct {
		name      string
		text      string
		wantCodes []string
		wantKey   string
	}{
		{
			name:      "unquoted value",
			text:      strings.Replace(record(validValues("A-1")...), `"250000,50"`, `250000,50`, 1),
			wantCodes: []string{CodeNotQuoted},
			wantKey:   "A-1",
		},
		{
			name:      "quoting then field check",
			text:      strings.Replace(record(validValues("A-1")...), `"1234"`, `12x4`, 1),
			wantCodes: []string{CodeNotQuoted, CodeMisalignment, CodeNotInteger},
			wantKey:   "A-1",
		},
		{
			name:      "empty key",
			text:      record(validValues("")...),
			wantCodes: []string{CodeMandatoryEmpty},
			wantKey:   UnknownKey,
		},
		{
			name:      "several fields",
			text:      record(with(with(validValues("A-2"), 2, "Bail"), 4, "750")...),
			wantCodes: []string{CodeNotAllowed, CodeInvalidPostalCode},
			wantKey:   "A-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.ValidateRow(testLine(reg, 2, tt.text), conforming, DuplicateIndex{})
			if got := codes(res.Findings); !reflect.DeepEqual(got, tt.wantCodes) {
				t.Errorf("codes = %v, want %v", got, tt.wantCodes)
			}
			for _, f := range res.Findings {
				if f.BusinessKey != tt.wantKey || f.LineNumber != 2 {
					t.Errorf("finding location = %+v", f)
				}
			}
		})
	}
}

func TestValidateRow_UnquotedRawValue(t *testing.T) {
	reg := testRegistry(t)
	v := newTestRowValidator(t)
	text := strings.Replace(record(validValues("A-1")...), `"75011"`, `75011`, 1)

	res := v.ValidateRow(testLine(reg, 1, text), AnalyzeStructure([]int{8}, 8), DuplicateIndex{})
	if len(res.Findings) != 1 {
		t.Fatalf("findings = %v, want one", res.Findings)
	}
	f := res.Findings[0]
	if f.Rank != 5 || f.FieldName != "CP" || f.RawValue != "'75011'" {
		t.Errorf("finding = %+v", f)
	}
	if f.Message != `Value must be enclosed in " quotes.` {
		t.Errorf("message = %q", f.Message)
	}
	if got := f.String(); got != `Line 1, Field 5 ('CP'): Value must be enclosed in " quotes. Value: '75011'.` {
		t.Errorf("String() = %q", got)
	}
	// the normalized value is still usable
	if res.Row.Values[4] != "75011" {
		t.Errorf("value = %q", res.Row.Values[4])
	}
}

func TestValidateRow_SporadicLineSkipsFieldChecks(t *testing.T) {
	reg := testRegistry(t)
	v := newTestRowValidator(t)
	shape := AnalyzeStructure([]int{8, 3}, 8)

	// short line with an invalid integer: only the structural finding
	line := testLine(reg, 2, record("x", "A-1", "Vente"))
	res := v.ValidateRow(line, shape, DuplicateIndex{})

	if got := codes(res.Findings); !reflect.DeepEqual(got, []string{CodeTooFewColumns}) {
		t.Errorf("codes = %v", got)
	}
	if !res.Row.Malformed || len(res.Row.Values) != 8 {
		t.Errorf("row = %+v", res.Row)
	}
	if res.Findings[0].BusinessKey != "A-1" {
		t.Errorf("business key = %q", res.Findings[0].BusinessKey)
	}
}

func TestValidateRow_SporadicLineKeepsDuplicates(t *testing.T) {
	reg := testRegistry(t)
	v := newTestRowValidator(t)
	lines := []Line{
		testLine(reg, 1, record(validValues("D")...)),
		testLine(reg, 2, record("1", "D")),
	}
	shape := AnalyzeStructure([]int{8, 2}, 8)
	dup := BuildDuplicateIndex(lines, reg.Dialect())

	res := v.ValidateRow(lines[1], shape, dup)
	want := []string{CodeTooFewColumns, CodeDuplicateKey}
	if got := codes(res.Findings); !reflect.DeepEqual(got, want) {
		t.Errorf("codes = %v, want %v", got, want)
	}
}

func TestValidateRow_UniformShiftStillChecksFields(t *testing.T) {
	reg := testRegistry(t)
	v := newTestRowValidator(t)
	shape := AnalyzeStructure([]int{7, 7}, 8)

	values := with(validValues("A-1"), 0, "abc")[:7]
	res := v.ValidateRow(testLine(reg, 1, record(values...)), shape, DuplicateIndex{})

	want := []string{CodeMisalignment, CodeNotInteger}
	if got := codes(res.Findings); !reflect.DeepEqual(got, want) {
		t.Errorf("codes = %v, want %v", got, want)
	}
	if !res.Row.Malformed {
		t.Error("padded row should be marked malformed")
	}
}

func TestValidateRow_RecoversFromPanic(t *testing.T) {
	reg := testRegistry(t)
	v := NewRowValidator(reg, nil)

	res := v.ValidateRow(testLine(reg, 3, record(validValues("A-1")...)), AnalyzeStructure([]int{8}, 8), DuplicateIndex{})
	if got := codes(res.Findings); !reflect.DeepEqual(got, []string{CodeCheckFailed}) {
		t.Fatalf("codes = %v, want [%s]", got, CodeCheckFailed)
	}
	if res.Findings[0].LineNumber != 3 || res.Row.LineNumber != 3 {
		t.Errorf("finding = %+v", res.Findings[0])
	}
}
