package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/verifactura/invoice-extract-service/internal/amount"
	"github.com/verifactura/invoice-extract-service/internal/models"
)

// ItemParser recovers line items from the table region of the invoice.
// OCR flattens tables into text where one logical row spans several
// physical lines, so the parser works with a start marker, an end marker
// and per-row heuristics instead of column positions.
type ItemParser struct {
	cfg models.ItemsConfig
}

func NewItemParser(cfg models.ItemsConfig) *ItemParser {
	if cfg.MaxDescriptionLines == 0 {
		cfg.MaxDescriptionLines = 5
	}
	if cfg.NumberWindowLines == 0 {
		cfg.NumberWindowLines = 8
	}
	return &ItemParser{cfg: cfg}
}

var (
	tableStart = regexp.MustCompile(`(?i)^\s*(?:items?\b|detalles?\b|no\.?\s*[-—]?\s*descr|descripci[oó]n\b|description\s+(?:qty|quantity)|cant\.?\s+descr)`)
	tableEnd   = regexp.MustCompile(`(?i)^\s*(?:sub[\-\s]?total|summary|resumen|total\b|i\.?v\.?a\.?\b|vat\b|impuestos?\b|retenci[oó]n)`)

	// Vocabulary that disqualifies a candidate description: these are
	// summary rows that drifted into the table region.
	summaryVocab = regexp.MustCompile(`(?i)\b(?:subtotal|summary|resumen|iva|vat|impuesto|descuento|discount|anticipo|saldo)\b`)

	ordinalRow  = regexp.MustCompile(`^(\d{1,3})[.\)]\s+(.+)$`)
	labeledRow  = regexp.MustCompile(`(?i)cant(?:idad)?\.?[:\s]+([\d.,]+).*?(?:precio|price|vlr?\.?\s*unit)[.:\s]+\$?\s*([\d.,]+).*?total[:\s]+\$?\s*([\d.,]+)`)
	trailingAmt = regexp.MustCompile(`^(.{3,}?)\s+\$?\s*(\d[\d.,]*\d|\d)\s*$`)
	numberToken = regexp.MustCompile(`\$?\s*(\d[\d.,]*)`)
	qtyToken    = regexp.MustCompile(`(?i)\b(\d{1,4}(?:[.,]\d{1,2})?)\s*(?:each|und?s?|uds|pcs|x)\b`)
	decimalAmt  = regexp.MustCompile(`\d[.,]\d{2}\b`)
)

// Parse scans normalized lines for the item table and returns its rows.
// No table or no parseable rows yields an empty slice, never an error.
func (p *ItemParser) Parse(lines []string) []models.LineItem {
	start := -1
	for i, line := range lines {
		if tableStart.MatchString(line) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		if tableEnd.MatchString(lines[i]) {
			end = i
			break
		}
	}

	var items []models.LineItem
	i := start
	for i < end {
		line := strings.TrimSpace(lines[i])
		if line == "" || summaryVocab.MatchString(line) {
			i++
			continue
		}

		if item, consumed, ok := p.parseRow(lines[i:end]); ok {
			items = append(items, item)
			i += consumed
			continue
		}
		i++
	}
	return items
}

// parseRow tries to read one logical item row starting at rows[0] and
// reports how many physical lines it consumed.
func (p *ItemParser) parseRow(rows []string) (models.LineItem, int, bool) {
	first := strings.TrimSpace(rows[0])

	// Inline labeled format: "1. Producto A - Cant: 10 - Precio: $50.000
	// - Total: $500.000" carries everything on one line.
	if m := labeledRow.FindStringSubmatch(first); m != nil {
		desc := first
		if om := ordinalRow.FindStringSubmatch(first); om != nil {
			desc = om[2]
		}
		if cut := strings.Index(strings.ToLower(desc), "cant"); cut > 0 {
			desc = desc[:cut]
		}
		desc = cleanDescription(desc)
		if desc == "" {
			return models.LineItem{}, 0, false
		}
		return models.LineItem{
			Description: desc,
			Quantity:    amount.ParsePtr(m[1]),
			UnitPrice:   amount.ParsePtr(m[2]),
			LineTotal:   amount.ParsePtr(m[3]),
		}, 1, true
	}

	// Ordinal format: "1. Description" possibly continued over a few
	// lines, with the numbers in a window below.
	if m := ordinalRow.FindStringSubmatch(first); m != nil {
		desc := m[2]
		consumed := 1
		for consumed < len(rows) && consumed < p.cfg.MaxDescriptionLines {
			next := strings.TrimSpace(rows[consumed])
			if next == "" || decimalAmt.MatchString(next) || ordinalRow.MatchString(next) || summaryVocab.MatchString(next) {
				break
			}
			desc += " " + next
			consumed++
		}
		desc = cleanDescription(desc)
		if desc == "" {
			return models.LineItem{}, 0, false
		}

		item := models.LineItem{Description: desc}
		window := rows[consumed:]
		if len(window) > p.cfg.NumberWindowLines {
			window = window[:p.cfg.NumberWindowLines]
		}
		used := p.assignNumbers(&item, window)
		return item, consumed + used, true
	}

	// Plain format: description and line total share one line.
	if m := trailingAmt.FindStringSubmatch(first); m != nil {
		desc := cleanDescription(m[1])
		if desc == "" || summaryVocab.MatchString(desc) {
			return models.LineItem{}, 0, false
		}
		return models.LineItem{
			Description: desc,
			LineTotal:   amount.ParsePtr(m[2]),
		}, 1, true
	}

	return models.LineItem{}, 0, false
}

// assignNumbers collects the numeric tokens in the window below a
// description and assigns them positionally: a single number is the line
// total; three or more put the unit price first and the line total last,
// with the quantity taken from a quantity-shaped token when one exists.
// It reports how many window lines held numbers.
func (p *ItemParser) assignNumbers(item *models.LineItem, window []string) int {
	var numbers []decimal.Decimal
	used := 0
	for i, line := range window {
		if ordinalRow.MatchString(strings.TrimSpace(line)) || summaryVocab.MatchString(line) {
			break
		}
		// A quantity-shaped token ("2,00 each") names the quantity
		// directly and stays out of the positional price list.
		if qm := qtyToken.FindStringSubmatch(line); qm != nil {
			if item.Quantity == nil {
				item.Quantity = amount.ParsePtr(qm[1])
			}
			used = i + 1
			continue
		}
		found := false
		for _, m := range numberToken.FindAllStringSubmatch(line, -1) {
			if d, ok := amount.Parse(m[1]); ok {
				numbers = append(numbers, d)
				found = true
			}
		}
		if found {
			used = i + 1
		}
	}

	switch {
	case len(numbers) == 0:
	case len(numbers) == 1:
		item.LineTotal = &numbers[0]
	case len(numbers) == 2:
		// Two numbers with no quantity token: a small whole number is a
		// quantity, anything else is a unit price.
		last := numbers[1]
		item.LineTotal = &last
		first := numbers[0]
		if item.Quantity == nil && first.IsInteger() && first.LessThan(decimal.NewFromInt(10000)) {
			item.Quantity = &first
		} else {
			item.UnitPrice = &first
		}
	default:
		first := numbers[0]
		last := numbers[len(numbers)-1]
		item.UnitPrice = &first
		item.LineTotal = &last
	}
	return used
}

func cleanDescription(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "-–—:|")
	s = strings.TrimSpace(s)
	if len(s) > 100 {
		s = s[:100]
	}
	if !hasLetter.MatchString(s) {
		return ""
	}
	return s
}
