// Package extract recovers semantically-typed invoice fields from
// normalized OCR text. Each field is served by an ordered cascade of
// labeled matchers (most reliable first); the first match that survives
// the field's plausibility filter wins and the rest are skipped. A field
// with no plausible match stays empty, which is data absence, not an
// error. New invoice layouts are supported by adding cascade entries,
// not new code paths.
package extract

import (
	"regexp"
	"strings"
	"time"
)

// Fields holds the raw per-field extraction results. Amount-bearing
// fields stay as strings here; the aggregator runs them through the
// amount parser so that every numeric value goes through one code path.
type Fields struct {
	InvoiceNumber   string
	IssueDate       string // canonical YYYY-MM-DD
	SupplierName    string
	SupplierTaxID   string // digits only
	SupplierAddress string
	Currency        string

	SubtotalRaw    string
	TaxRaw         string
	TotalRaw       string
	CUFE           string // hex, cleaned
	ActivityCode   string
	WithholdingRaw string
	DueDate        string // canonical YYYY-MM-DD
}

// matchFunc inspects the document and returns a candidate value. Most
// matchers are plain regexes; a few are positional (value on the line
// after a label), which regexes over joined text cannot express.
type matchFunc func(text string, lines []string) (string, bool)

type matcher struct {
	label string
	match matchFunc
}

// plausibleFunc filters a candidate and returns its normalized form.
type plausibleFunc func(raw string) (string, bool)

type cascade struct {
	field     string
	matchers  []matcher
	plausible plausibleFunc
}

// Engine runs the per-field cascades. It is stateless apart from the
// clock, which is injectable so date plausibility is testable.
type Engine struct {
	now      func() time.Time
	cascades []cascade
}

func NewEngine(now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	e := &Engine{now: now}
	e.cascades = buildCascades(e)
	return e
}

// Extract runs every cascade against the normalized text. Pure function
// of its input: no extraction depends on another field's result.
func (e *Engine) Extract(text string) Fields {
	lines := strings.Split(text, "\n")
	values := map[string]string{}

	for _, c := range e.cascades {
		for _, m := range c.matchers {
			raw, ok := m.match(text, lines)
			if !ok {
				continue
			}
			normalized, ok := c.plausible(raw)
			if !ok {
				continue
			}
			values[c.field] = normalized
			break
		}
	}

	return Fields{
		InvoiceNumber:   values["invoice_number"],
		IssueDate:       values["issue_date"],
		SupplierName:    values["supplier_name"],
		SupplierTaxID:   values["supplier_tax_id"],
		SupplierAddress: values["supplier_address"],
		Currency:        values["currency"],
		SubtotalRaw:     values["subtotal"],
		TaxRaw:          values["tax_amount"],
		TotalRaw:        values["total"],
		CUFE:            values["cufe"],
		ActivityCode:    values["economic_activity_code"],
		WithholdingRaw:  values["withholding"],
		DueDate:         values["due_date"],
	}
}

// SurrogatePrefix marks invoice numbers derived from a banking reference
// instead of a printed number, so identity joins stay possible while the
// value remains distinguishable from a genuinely extracted one.
const SurrogatePrefix = "REF-"

func buildCascades(e *Engine) []cascade {
	return []cascade{
		{
			field: "invoice_number",
			matchers: []matcher{
				regexMatcher("invoice-label", `(?i)invoice\s*(?:no\.?|number|#)?[:\s]+([A-Z0-9][A-Z0-9\-/]{2,})`),
				regexMatcher("factura-label", `(?i)factura\s*(?:no\.?|nro\.?|nº|#)?[:\s]+([A-Z0-9][A-Z0-9\-/]{2,})`),
				regexMatcher("inv-token", `\b(INV-?\d{4,8})\b`),
				regexMatcher("bill-loose", `(?i)\b(?:factura|invoice|bill)\b[^\d\n]{0,12}(\d{3,})`),
				{label: "iban-surrogate", match: ibanSurrogate},
			},
			plausible: plausibleInvoiceNumber,
		},
		{
			field: "issue_date",
			matchers: []matcher{
				headerMatcher("date-label-iso", `(?i)(?:date|fecha)(?:\s+de\s+emisi[oó]n)?[:\s]+(\d{4}[-/]\d{2}[-/]\d{2})`),
				headerMatcher("date-label-dmy", `(?i)(?:date|fecha)(?:\s+de\s+emisi[oó]n)?[:\s]+(\d{2}[-/]\d{2}[-/]\d{4})`),
				headerMatcher("bare-iso", `\b(\d{4}[-/]\d{2}[-/]\d{2})\b`),
				headerMatcher("bare-dmy", `\b(\d{2}[-/]\d{2}[-/]\d{4})\b`),
			},
			plausible: e.plausibleIssueDate,
		},
		{
			field: "supplier_name",
			matchers: []matcher{
				{label: "seller-next-line", match: lineAfterLabel(`(?i)^seller:`, 10)},
				regexMatcher("provider-label", `(?i)(?:proveedor|empresa|fabricante|shipper)[:\s]+([^\n]{4,60})`),
			},
			plausible: plausibleSupplierName,
		},
		{
			field: "supplier_tax_id",
			matchers: []matcher{
				regexMatcher("nit-label", `(?i)\bNIT[:.\- ]+(\d[\d.\- ]{7,})`),
				{label: "seller-tax-id", match: sectionTaxID(`(?i)^seller:`)},
				regexMatcher("tax-id-label", `(?i)tax\s*id[:\s]+([0-9\-]{8,})`),
			},
			plausible: plausibleTaxID,
		},
		{
			field: "supplier_address",
			matchers: []matcher{
				regexMatcher("address-label", `(?i)(?:direcci[oó]n|address)[.:\s]+([^\n]{5,80})`),
				{label: "seller-address-line", match: addressAfterLabel(`(?i)^seller:`, 10)},
			},
			plausible: plausibleAddress,
		},
		{
			field: "currency",
			matchers: []matcher{
				regexMatcher("code-usd", `\b(USD)\b`),
				regexMatcher("code-cop", `\b(COP)\b`),
				regexMatcher("code-eur", `\b(EUR)\b`),
				{label: "euro-symbol", match: literalValue("€", "EUR")},
				{label: "dollar-us-format", match: dollarFormat(`\d{1,3},\d{3}\.\d{2}`, "USD")},
				{label: "dollar-co-format", match: dollarFormat(`\d{1,3}(?:\.\d{3})+(?:,\d{2})?`, "COP")},
			},
			plausible: plausibleCurrency,
		},
		{
			field: "subtotal",
			matchers: []matcher{
				regexMatcher("subtotal-label", `(?im)^\s*sub[\-\s]?total[:\s]*\$?\s*([\d.,]+)`),
				regexMatcher("net-worth-label", `(?i)net\s*worth[:\s]+\$?\s*([\d.,]+)`),
				regexMatcher("base-label", `(?i)(?:base\s+imponible|monto\s+gravado)[:\s]*\$?\s*([\d.,]+)`),
			},
			plausible: plausibleAmount,
		},
		{
			field: "tax_amount",
			matchers: []matcher{
				regexMatcher("iva-label", `(?im)^\s*I\.?V\.?A\.?\s*(?:\(\s*\d+(?:[.,]\d+)?\s*%\s*\))?[:\s]*\$?\s*([\d.,]+)`),
				regexMatcher("vat-label", `(?i)\bVAT\b[:\s]*\$?\s*([\d.,]+)`),
				regexMatcher("tax-label", `(?im)^\s*impuestos?[:\s]*\$?\s*([\d.,]+)`),
			},
			plausible: plausibleAmount,
		},
		{
			field: "total",
			matchers: []matcher{
				regexMatcher("total-label", `(?im)^\s*total(?:\s+a\s+pagar)?[:\s]*\$?\s*([\d.,]+)\s*$`),
				regexMatcher("gross-worth-label", `(?i)gross\s*worth[:\s]+\$?\s*([\d.,]+)`),
				{label: "last-summary-amount", match: lastSummaryAmount},
			},
			plausible: plausibleAmount,
		},
		{
			field: "cufe",
			matchers: []matcher{
				regexMatcher("cufe-label", `(?i)\bCUFE[:\s]+([a-fA-F0-9\s]{40,})`),
			},
			plausible: plausibleCUFE,
		},
		{
			field: "economic_activity_code",
			matchers: []matcher{
				regexMatcher("actividad-label", `(?i)actividad\s+econ[oó]mica[:\s]*(\d{3,6})`),
				regexMatcher("ciiu-label", `(?i)c[oó]digo\s+CIIU[:\s]*(\d{3,6})`),
			},
			plausible: plausibleActivityCode,
		},
		{
			field: "withholding",
			matchers: []matcher{
				regexMatcher("retencion-label", `(?i)retenci[oó]n(?:\s+en\s+la\s+fuente)?[^\d\n]{0,15}([\d.,]+\s*%?)`),
			},
			plausible: plausibleWithholding,
		},
		{
			field: "due_date",
			matchers: []matcher{
				regexMatcher("due-label", `(?i)(?:fecha\s+(?:l[ií]mite(?:\s+de\s+pago)?|de\s+vencimiento)|vencimiento|due\s*date)[:\s]+(\d{2,4}[-/]\d{1,2}[-/]\d{2,4})`),
			},
			plausible: e.plausibleDueDate,
		},
	}
}

// --- matchers ---

func regexMatcher(label, pattern string) matcher {
	re := regexp.MustCompile(pattern)
	return matcher{label: label, match: func(text string, _ []string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return strings.TrimSpace(m[1]), true
	}}
}

// headerMatcher restricts a regex to the first 15 lines; issue dates live
// in the document header, while the body is full of other date-shaped
// noise (due dates, delivery dates, tax-id digit groups).
func headerMatcher(label, pattern string) matcher {
	re := regexp.MustCompile(pattern)
	return matcher{label: label, match: func(_ string, lines []string) (string, bool) {
		header := lines
		if len(header) > 15 {
			header = header[:15]
		}
		m := re.FindStringSubmatch(strings.Join(header, "\n"))
		if m == nil {
			return "", false
		}
		return strings.TrimSpace(m[1]), true
	}}
}

// lineAfterLabel returns the first non-empty line following a label line,
// scanning at most maxLines from the top.
func lineAfterLabel(labelPattern string, maxLines int) matchFunc {
	re := regexp.MustCompile(labelPattern)
	return func(_ string, lines []string) (string, bool) {
		limit := len(lines)
		if limit > maxLines {
			limit = maxLines
		}
		for i := 0; i < limit; i++ {
			if !re.MatchString(lines[i]) {
				continue
			}
			for j := i + 1; j < len(lines) && j <= i+2; j++ {
				if v := strings.TrimSpace(lines[j]); v != "" {
					return v, true
				}
			}
		}
		return "", false
	}
}

// addressAfterLabel picks the first digit-bearing line in the short block
// following a label line; street addresses carry a number.
func addressAfterLabel(labelPattern string, maxLines int) matchFunc {
	re := regexp.MustCompile(labelPattern)
	digit := regexp.MustCompile(`\d`)
	return func(_ string, lines []string) (string, bool) {
		limit := len(lines)
		if limit > maxLines {
			limit = maxLines
		}
		for i := 0; i < limit; i++ {
			if !re.MatchString(lines[i]) {
				continue
			}
			for j := i + 2; j < len(lines) && j <= i+4; j++ {
				v := strings.TrimSpace(lines[j])
				if v != "" && digit.MatchString(v) {
					return v, true
				}
			}
		}
		return "", false
	}
}

// sectionTaxID finds a Tax Id declared inside the block opened by the
// given label (the seller block ends where the client block starts).
func sectionTaxID(labelPattern string) matchFunc {
	start := regexp.MustCompile(labelPattern)
	end := regexp.MustCompile(`(?i)^(?:client|cliente|buyer):`)
	taxID := regexp.MustCompile(`(?i)tax\s*id[:\s]+([0-9\-]+)`)
	return func(_ string, lines []string) (string, bool) {
		inSection := false
		for _, line := range lines {
			if start.MatchString(line) {
				inSection = true
				continue
			}
			if !inSection {
				continue
			}
			if end.MatchString(line) {
				return "", false
			}
			if m := taxID.FindStringSubmatch(line); m != nil {
				return m[1], true
			}
		}
		return "", false
	}
}

func ibanSurrogate(text string, _ []string) (string, bool) {
	m := regexp.MustCompile(`(?i)IBAN[:\s]+([A-Z0-9]{12,})`).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	ref := m[1]
	if len(ref) > 8 {
		ref = ref[len(ref)-8:]
	}
	return SurrogatePrefix + strings.ToUpper(ref), true
}

func literalValue(needle, value string) matchFunc {
	return func(text string, _ []string) (string, bool) {
		if strings.Contains(text, needle) {
			return value, true
		}
		return "", false
	}
}

// dollarFormat reports a currency when "$" appears together with amounts
// in the given grouping style.
func dollarFormat(amountPattern, currency string) matchFunc {
	re := regexp.MustCompile(amountPattern)
	return func(text string, _ []string) (string, bool) {
		if strings.Contains(text, "$") && re.MatchString(text) {
			return currency, true
		}
		return "", false
	}
}

// lastSummaryAmount falls back to the last dollar amount in the closing
// lines of the document, which is the grand total on most layouts.
func lastSummaryAmount(_ string, lines []string) (string, bool) {
	tail := lines
	if len(tail) > 10 {
		tail = tail[len(tail)-10:]
	}
	re := regexp.MustCompile(`\$\s*([\d.,]+\d)`)
	matches := re.FindAllStringSubmatch(strings.Join(tail, "\n"), -1)
	if len(matches) == 0 {
		return "", false
	}
	return matches[len(matches)-1][1], true
}
