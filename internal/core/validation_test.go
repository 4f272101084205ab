package core

import (
	"reflect"
	"testing"

	"github.com/JonMunkholm/annonces/internal/schema"
)

func TestFieldValidator_Check(t *testing.T) {
	reg := testRegistry(t)
	v := NewFieldValidator(reg, DefaultPlausibility())
	rule := func(rank int) schema.FieldRule {
		r, err := reg.RuleAt(rank - 1)
		if err != nil {
			t.Fatalf("RuleAt(%d) error = %v", rank-1, err)
		}
		return r
	}

	tests := []struct {
		name      string
		rank      int
		value     string
		wantCodes []string
	}{
		// presence
		{"mandatory empty", 1, "", []string{CodeMandatoryEmpty}},
		{"optional empty", 6, "", nil},

		// integer
		{"integer ok", 1, "1234", nil},
		{"integer with sign", 1, "-5", []string{CodeNotInteger}},
		{"integer with letters", 1, "12a", []string{CodeMisalignment, CodeNotInteger}},

		// decimal
		{"decimal comma", 4, "250000,50", nil},
		{"decimal point", 4, "250000.50", nil},
		{"decimal zero", 4, "0", nil},
		{"decimal two points", 4, "1.2.3", []string{CodeNotNumber}},
		{"decimal word", 4, "Paris", []string{CodeMisalignment, CodeNotNumber}},

		// postal code
		{"postal ok", 5, "75011", nil},
		{"postal leading zero", 5, "01000", nil},
		{"postal short", 5, "7501", []string{CodeInvalidPostalCode}},
		{"postal word", 5, "Lyon", []string{CodeMisalignment, CodeInvalidPostalCode}},

		// date
		{"date ok", 6, "15/09/2024", nil},
		{"date unpadded", 6, "1/9/2024", nil},
		{"date impossible day", 6, "31/02/2024", []string{CodeInvalidDate}},
		{"date iso", 6, "2024-09-15", []string{CodeInvalidDate}},
		{"date without digits", 6, "Appartement", []string{CodeMisalignment, CodeInvalidDate}},
		{"date too long", 6, "15/09/2024 10h", []string{CodeMisalignment, CodeInvalidDate}},

		// enumeration
		{"enum exact", 3, "Vente", nil},
		{"enum case folded", 3, "VENTE", nil},
		{"enum hyphen as space", 3, "cession-de-bail", nil},
		{"enum unknown word", 3, "Vendre", []string{CodeNotAllowed}},
		{"enum number", 3, "3", []string{CodeMisalignment, CodeNotAllowed}},

		// length
		{"length ok", 8, "Studio", nil},
		{"length exceeded", 8, "Grand appartement", []string{CodeTooLong}},
		{"length counts runes", 8, "Pièce éclé", nil},
		{"enum with length ok", 7, "non", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := v.Check(rule(tt.rank), tt.value)
			var got []string
			for _, is := range issues {
				got = append(got, is.Code)
			}
			if !reflect.DeepEqual(got, tt.wantCodes) {
				t.Errorf("Check(%q) codes = %v, want %v", tt.value, got, tt.wantCodes)
			}
		})
	}
}

func TestFieldValidator_Messages(t *testing.T) {
	reg := testRegistry(t)
	v := NewFieldValidator(reg, Plausibility{})

	tests := []struct {
		rank  int
		value string
		want  string
	}{
		{1, "", "Mandatory field is empty."},
		{1, "x", "Must be an integer."},
		{4, "x", "Must be a number."},
		{5, "x", "Must be a 5-digit postal code."},
		{6, "32/01/2024", "Invalid date format (expected DD/MM/YYYY): '32/01/2024'."},
		{3, "Bail", "Value not allowed. Expected one of: 'Vente', 'Location', 'Viager', 'Cession de bail'."},
		{8, "Grand appartement", "Exceeds the maximum length of 10 characters."},
	}

	for _, tt := range tests {
		r, _ := reg.RuleAt(tt.rank - 1)
		issues := v.Check(r, tt.value)
		if len(issues) != 1 {
			t.Errorf("Check(%d, %q) = %v, want one issue", tt.rank, tt.value, issues)
			continue
		}
		if issues[0].Message != tt.want {
			t.Errorf("Check(%d, %q) message = %q, want %q", tt.rank, tt.value, issues[0].Message, tt.want)
		}
		if issues[0].Severity != SeverityError {
			t.Errorf("Check(%d, %q) severity = %s", tt.rank, tt.value, issues[0].Severity)
		}
	}
}

func TestPlausibility_Policies(t *testing.T) {
	reg := testRegistry(t)
	priceRule, _ := reg.RuleAt(3)

	tests := []struct {
		name   string
		policy Plausibility
		want   []string
	}{
		{"default adds advisory", DefaultPlausibility(), []string{CodeMisalignment, CodeNotNumber}},
		{"replace type finding", Plausibility{Enabled: true, ReplaceTypeFinding: true}, []string{CodeMisalignment}},
		{"disabled", Plausibility{}, []string{CodeNotNumber}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := NewFieldValidator(reg, tt.policy).Check(priceRule, "Appartement")
			var got []string
			for _, is := range issues {
				got = append(got, is.Code)
				if is.Code == CodeMisalignment && is.Severity != SeverityWarning {
					t.Errorf("advisory severity = %s, want warning", is.Severity)
				}
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("codes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlausibility_DateLength(t *testing.T) {
	reg := testRegistry(t)
	dateRule, _ := reg.RuleAt(5)

	// the length signal is off with MaxDateLength 0
	issues := NewFieldValidator(reg, Plausibility{Enabled: true}).Check(dateRule, "15/09/2024 10h")
	if len(issues) != 1 || issues[0].Code != CodeInvalidDate {
		t.Errorf("issues = %v, want only %s", issues, CodeInvalidDate)
	}
}

func TestDisplayLayout(t *testing.T) {
	tests := map[string]string{
		"2/1/2006":   "DD/MM/YYYY",
		"02/01/2006": "DD/MM/YYYY",
		"2006-01-02": "YYYY-MM-DD",
	}
	for in, want := range tests {
		if got := displayLayout(in); got != want {
			t.Errorf("displayLayout(%q) = %q, want %q", in, got, want)
		}
	}
}
