package textnorm

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapses spaces", "a    b\tc", "a b c"},
		{"trims line edges", "   hello   ", "hello"},
		{"crlf", "a\r\nb\rc", "a\nb\nc"},
		{"drops edge blank lines", "\n\n  \nfirst\nlast\n\n", "first\nlast"},
		{"keeps interior blank lines", "items\n\nsummary", "items\n\nsummary"},
		{"non-breaking space", "Total: 100", "Total: 100"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	in := "  Invoice   No: 123  \r\n\r\n  Total:\t500  "
	once := Normalize(in)
	if twice := Normalize(once); twice != once {
		t.Errorf("not idempotent: %q vs %q", once, twice)
	}
}

func TestLines(t *testing.T) {
	if got := Lines(""); got != nil {
		t.Errorf("Lines(\"\") = %v, want nil", got)
	}
	got := Lines("a\nb")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Lines = %v", got)
	}
}
