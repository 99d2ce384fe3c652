package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/verifactura/invoice-extract-service/internal/amount"
)

// Plausibility filters. A matcher finding text that looks labeled right
// is not enough: OCR noise produces label-shaped garbage, so every
// candidate is checked for field-specific shape before it is accepted.

var (
	hasDigit    = regexp.MustCompile(`\d`)
	hasLetter   = regexp.MustCompile(`[A-Za-zÁÉÍÓÚÑáéíóúñ]`)
	taxIDShape  = regexp.MustCompile(`^\d{3}-\d{2}-\d{4}$`)
	hexOnly     = regexp.MustCompile(`^[a-fA-F0-9]+$`)
	nonDigit    = regexp.MustCompile(`\D`)
	percentMark = regexp.MustCompile(`%\s*$`)
)

func plausibleInvoiceNumber(raw string) (string, bool) {
	v := strings.TrimRight(strings.TrimSpace(raw), ".,;")
	if len(v) < 3 || !hasDigit.MatchString(v) {
		return "", false
	}
	return v, true
}

func plausibleSupplierName(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if len(v) < 4 || !hasLetter.MatchString(v) {
		return "", false
	}
	// A name candidate that is mostly digits is a misfired tax id or
	// amount line.
	digits := len(v) - len(nonDigit.ReplaceAllString(v, ""))
	if digits > len(v)/2 {
		return "", false
	}
	if len(v) > 80 {
		v = v[:80]
	}
	return v, true
}

func plausibleTaxID(raw string) (string, bool) {
	digits := nonDigit.ReplaceAllString(raw, "")
	if len(digits) < 8 || len(digits) > 15 {
		return "", false
	}
	return digits, true
}

func plausibleAddress(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if len(v) < 5 || !hasDigit.MatchString(v) || !hasLetter.MatchString(v) {
		return "", false
	}
	return v, true
}

func plausibleCurrency(raw string) (string, bool) {
	v := strings.ToUpper(strings.TrimSpace(raw))
	switch v {
	case "USD", "COP", "EUR":
		return v, true
	}
	return "", false
}

func plausibleAmount(raw string) (string, bool) {
	d, ok := amount.Parse(raw)
	if !ok || d.IsNegative() {
		return "", false
	}
	return strings.TrimSpace(raw), true
}

func plausibleCUFE(raw string) (string, bool) {
	v := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	if !hexOnly.MatchString(v) || len(v) < 40 {
		return "", false
	}
	return v, true
}

func plausibleActivityCode(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if len(v) < 3 || len(v) > 6 || nonDigit.MatchString(v) {
		return "", false
	}
	return v, true
}

func plausibleWithholding(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	d, ok := amount.Parse(v)
	if !ok || d.IsNegative() {
		return "", false
	}
	return v, true
}

// plausibleIssueDate parses the candidate, rejects tax-id digit groups
// that look like dates, and rejects dates in the future beyond a small
// clock-skew allowance.
func (e *Engine) plausibleIssueDate(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if taxIDShape.MatchString(v) {
		return "", false
	}
	t, ok := ParseDate(v)
	if !ok {
		return "", false
	}
	if t.After(e.now().Add(72 * time.Hour)) {
		return "", false
	}
	if t.Year() < 1990 {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// plausibleDueDate accepts future dates; a due date in the distant past
// is still reported so the payment-term rule can flag it.
func (e *Engine) plausibleDueDate(raw string) (string, bool) {
	t, ok := ParseDate(strings.TrimSpace(raw))
	if !ok || t.Year() < 1990 {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"2-1-2006",
}

// ParseDate tries the supported layouts in order. Day-first layouts come
// before month-first because the target documents are Latin American.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
