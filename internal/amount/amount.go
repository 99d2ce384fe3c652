// Package amount converts locale-ambiguous numeric strings from OCR text
// into exact decimal values. The same digits can mean very different
// amounts depending on whether "." or "," is the decimal marker
// ("1.234,56" vs "1,234.56"), so the parser classifies separators before
// handing the cleaned string to shopspring/decimal.
package amount

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var thousandsDots = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)
var thousandsCommas = regexp.MustCompile(`^\d{1,3}(,\d{3})+$`)

// Parse converts a numeric-looking string to a decimal. The boolean is
// false when the string carries no parseable number; callers treat that
// as absence, never as an error.
//
// Separator heuristic:
//   - both "," and "." present: the rightmost separator is the decimal
//     marker when followed by exactly two digits, otherwise both are
//     grouping noise;
//   - a single separator followed by exactly two digits is a decimal
//     marker ("5600,17" -> 5600.17);
//   - a separator splitting pure three-digit groups is a thousands
//     separator ("1.071.000" -> 1071000, "900.000" -> 900000);
//   - anything else keeps the separator as a decimal marker ("0.5").
func Parse(s string) (decimal.Decimal, bool) {
	cleaned := stripNonNumeric(s)
	if !strings.ContainsAny(cleaned, "0123456789") {
		return decimal.Zero, false
	}

	neg := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimLeft(cleaned, "+-")

	lastComma := strings.LastIndexByte(cleaned, ',')
	lastDot := strings.LastIndexByte(cleaned, '.')

	switch {
	case lastComma >= 0 && lastDot >= 0:
		decSep, thouSep := byte('.'), byte(',')
		if lastComma > lastDot {
			decSep, thouSep = ',', '.'
		}
		cleaned = strings.ReplaceAll(cleaned, string(thouSep), "")
		idx := strings.LastIndexByte(cleaned, decSep)
		if len(cleaned)-idx-1 == 2 {
			cleaned = cleaned[:idx] + "." + cleaned[idx+1:]
		} else {
			cleaned = strings.ReplaceAll(cleaned, string(decSep), "")
		}

	case lastComma >= 0:
		cleaned = resolveSingleSeparator(cleaned, ',', thousandsCommas)

	case lastDot >= 0:
		cleaned = resolveSingleSeparator(cleaned, '.', thousandsDots)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// ParsePtr is Parse for nullable fields.
func ParsePtr(s string) *decimal.Decimal {
	d, ok := Parse(s)
	if !ok {
		return nil
	}
	return &d
}

func resolveSingleSeparator(s string, sep byte, grouping *regexp.Regexp) string {
	if strings.Count(s, string(sep)) == 1 {
		idx := strings.LastIndexByte(s, sep)
		if len(s)-idx-1 == 2 {
			return s[:idx] + "." + s[idx+1:]
		}
	}
	if grouping.MatchString(s) {
		return strings.ReplaceAll(s, string(sep), "")
	}
	if strings.Count(s, string(sep)) > 1 {
		// Repeated separators that are not clean grouping: drop them all,
		// OCR tends to sprinkle spurious punctuation into digit runs.
		return strings.ReplaceAll(s, string(sep), "")
	}
	if sep == ',' {
		return strings.Replace(s, ",", ".", 1)
	}
	return s
}

// stripNonNumeric removes currency symbols, currency codes and embedded
// whitespace, keeping digits, separators and a leading sign.
func stripNonNumeric(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ',' || r == '.':
			b.WriteRune(r)
		case (r == '-' || r == '+') && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), ",.")
}
