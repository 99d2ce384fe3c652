package amount

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		// Plain numbers
		{"0", "0", true},
		{"42", "42", true},
		{"900", "900", true},

		// Single comma as decimal marker
		{"5600,17", "5600.17", true},
		{"0,50", "0.5", true},
		{"1,5", "1.5", true},

		// Single dot as decimal marker
		{"5600.17", "5600.17", true},
		{"0.5", "0.5", true},

		// Three-digit grouping
		{"900.000", "900000", true},
		{"171.000", "171000", true},
		{"1.071.000", "1071000", true},
		{"12,345", "12345", true},
		{"1,234,567", "1234567", true},

		// Both separators present
		{"1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"1.234.567,89", "1234567.89", true},
		{"1,234,567.89", "1234567.89", true},

		// Currency symbols, codes and whitespace
		{"$ 1.071.000", "1071000", true},
		{"$1,234.56", "1234.56", true},
		{"  500.000  ", "500000", true},
		{"COP 900.000", "900000", true},

		// Signs
		{"-3.50", "-3.5", true},
		{"+3.50", "3.5", true},

		// Dangling separators
		{"1234,", "1234", true},
		{".50", "50", true},

		// Not a number
		{"", "", false},
		{"abc", "", false},
		{"$", "", false},
		{"--", "", false},
	}

	for _, tc := range cases {
		got, ok := Parse(tc.in)
		if ok != tc.ok {
			t.Errorf("Parse(%q): ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if !ok {
			continue
		}
		want, err := decimal.NewFromString(tc.want)
		if err != nil {
			t.Fatalf("bad expectation %q: %v", tc.want, err)
		}
		if !got.Equal(want) {
			t.Errorf("Parse(%q) = %s, want %s", tc.in, got, want)
		}
	}
}

func TestParseExactness(t *testing.T) {
	// Values a float64 path would mangle must stay exact.
	got, ok := Parse("999999999999999,99")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if got.String() != "999999999999999.99" {
		t.Errorf("lost precision: got %s", got)
	}
}

func TestParsePtr(t *testing.T) {
	if ParsePtr("no digits") != nil {
		t.Error("expected nil for unparseable input")
	}
	d := ParsePtr("171.000")
	if d == nil || !d.Equal(decimal.NewFromInt(171000)) {
		t.Errorf("ParsePtr(171.000) = %v", d)
	}
}
