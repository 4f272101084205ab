package core

import (
	"strings"
	"testing"
)

func TestAnalyzeStructure(t *testing.T) {
	tests := []struct {
		name         string
		counts       []int
		wantRegime   Regime
		wantObserved int
	}{
		{"no lines", nil, RegimeConforming, 0},
		{"all conforming", []int{5, 5, 5}, RegimeConforming, 0},
		{"all one short", []int{4, 4, 4}, RegimeUniformShift, 4},
		{"all one long", []int{6, 6}, RegimeUniformShift, 6},
		{"single wrong line", []int{4}, RegimeUniformShift, 4},
		{"mixed", []int{5, 4, 5}, RegimeSporadic, 0},
		{"varied wrong counts", []int{4, 6}, RegimeSporadic, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shape := AnalyzeStructure(tt.counts, 5)
			if shape.Regime != tt.wantRegime {
				t.Errorf("Regime = %s, want %s", shape.Regime, tt.wantRegime)
			}
			if shape.Observed != tt.wantObserved {
				t.Errorf("Observed = %d, want %d", shape.Observed, tt.wantObserved)
			}
			if shape.Expected != 5 {
				t.Errorf("Expected = %d, want 5", shape.Expected)
			}
		})
	}
}

func TestShape_FileFinding(t *testing.T) {
	if _, ok := AnalyzeStructure([]int{5, 4}, 5).FileFinding(); ok {
		t.Error("sporadic shape should not produce a file finding")
	}

	f, ok := AnalyzeStructure([]int{4, 4}, 5).FileFinding()
	if !ok {
		t.Fatal("uniform shift should produce a file finding")
	}
	if f.Code != CodeColumnShift || f.LineNumber != FileScope || f.BusinessKey != UnknownKey {
		t.Errorf("finding = %+v", f)
	}
	if !strings.Contains(f.Message, "4 columns instead of 5 (1 fewer)") {
		t.Errorf("message = %q", f.Message)
	}
	if f.Source() != "File" {
		t.Errorf("Source() = %q, want File", f.Source())
	}
}

func TestShape_RowFinding(t *testing.T) {
	sporadic := AnalyzeStructure([]int{5, 4, 7}, 5)
	uniform := AnalyzeStructure([]int{4, 4}, 5)

	tests := []struct {
		name     string
		shape    Shape
		count    int
		wantOK   bool
		wantCode string
		wantMsg  string
	}{
		{"conforming line", sporadic, 5, false, "", ""},
		{"too few", sporadic, 4, true, CodeTooFewColumns, "Too few columns. Expected: 5, found: 4."},
		{"too many", sporadic, 7, true, CodeTooManyColumns, "Too many columns. Expected: 5, found: 7."},
		{"uniform shift is silent", uniform, 4, false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := tt.shape.RowFinding(9, tt.count, "REF")
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if f.Code != tt.wantCode || f.Message != tt.wantMsg {
				t.Errorf("finding = %s %q, want %s %q", f.Code, f.Message, tt.wantCode, tt.wantMsg)
			}
			if f.LineNumber != 9 || f.BusinessKey != "REF" || f.Rank != NoRank {
				t.Errorf("finding location = %+v", f)
			}
			if f.Source() != "Line 9" {
				t.Errorf("Source() = %q", f.Source())
			}
		})
	}
}
