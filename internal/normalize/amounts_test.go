package normalize

import (
	"regexp"
	"testing"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  string
		found bool
	}{
		{"plain", "50.00", "50", true},
		{"currency symbol", "$1,234.56", "1234.56", true},
		{"euro symbol", "€99.90", "99.9", true},
		{"accounting parens", "(42.00)", "-42", true},
		{"trailing minus", "17.25-", "-17.25", true},
		{"leading minus", "-3.50", "-3.5", true},
		{"internal spaces", "1 234.00", "1234", true},
		{"empty", "", "0", false},
		{"whitespace only", "   ", "0", false},
		{"not a number", "pending", "0", false},
		{"lone minus", "-", "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := ParseAmount(tt.raw, nil)
			if found != tt.found {
				t.Fatalf("ParseAmount(%q) found = %v, want %v", tt.raw, found, tt.found)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseAmountWithPattern(t *testing.T) {
	pattern := regexp.MustCompile(`USD\s+([\d.]+)`)

	got, found := ParseAmount("USD 12.50 pending", pattern)
	if !found || got.String() != "12.5" {
		t.Errorf("pattern extraction = (%s, %v), want (12.5, true)", got, found)
	}

	if _, found := ParseAmount("EUR 12.50", pattern); found {
		t.Error("pattern mismatch still produced a value")
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		raw   string
		want  string
		found bool
	}{
		{"43", "43", true},
		{"43%", "43", true},
		{" 43.5 % ", "43.5", true},
		{"", "0", false},
		{"half", "0", false},
	}
	for _, tt := range tests {
		got, found := ParsePercent(tt.raw)
		if found != tt.found || got.String() != tt.want {
			t.Errorf("ParsePercent(%q) = (%s, %v), want (%s, %v)", tt.raw, got, found, tt.want, tt.found)
		}
	}
}

func TestParseTriState(t *testing.T) {
	tests := []struct {
		raw  string
		want TriState
	}{
		{"true", FlagTrue},
		{"Yes", FlagTrue},
		{"x", FlagTrue},
		{"shared", FlagTrue},
		{"false", FlagFalse},
		{"No", FlagFalse},
		{"personal", FlagFalse},
		{"", FlagUnknown},
		{"maybe", FlagUnknown},
	}
	for _, tt := range tests {
		if got := ParseTriState(tt.raw); got != tt.want {
			t.Errorf("ParseTriState(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
