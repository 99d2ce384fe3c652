package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/verifactura/invoice-extract-service/internal/amount"
	"github.com/verifactura/invoice-extract-service/internal/extract"
	"github.com/verifactura/invoice-extract-service/internal/models"
)

// Completer asks a provider to fill the fields pattern extraction could
// not recover. It only ever writes nil fields, and only with values that
// pass the same kind of shape checks the extractors apply, so a
// hallucinated answer cannot corrupt the record.
type Completer struct {
	provider Provider
}

func NewCompleter(p Provider) *Completer {
	if p == nil {
		return nil
	}
	return &Completer{provider: p}
}

const promptTemplate = `You are reading OCR text from an invoice. Extract ONLY the following fields and answer with a single JSON object using exactly these keys: %s.
Use null for anything not present in the text. Dates as YYYY-MM-DD, amounts as plain numbers without currency symbols or thousands separators.

Invoice text:
%s`

type completion struct {
	InvoiceNumber *string `json:"invoice_number"`
	IssueDate     *string `json:"issue_date"`
	SupplierName  *string `json:"supplier_name"`
	SupplierTaxID *string `json:"supplier_tax_id"`
	Subtotal      *string `json:"subtotal"`
	TaxAmount     *string `json:"tax_amount"`
	Total         *string `json:"total"`
}

// Fill completes missing fields of rec in place and returns the names of
// the fields it filled. Any provider or parse failure returns an error
// and leaves the record untouched.
func (c *Completer) Fill(ctx context.Context, rec *models.InvoiceRecord, rawText string) ([]string, error) {
	missing := missingFields(rec)
	if len(missing) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(promptTemplate, strings.Join(missing, ", "), truncate(rawText, 6000))
	answer, err := c.provider.Complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var comp completion
	if err := json.Unmarshal([]byte(extractJSON(answer)), &comp); err != nil {
		return nil, fmt.Errorf("parsing %s answer: %w", c.provider.Name(), err)
	}

	return apply(rec, &comp, missing), nil
}

func missingFields(rec *models.InvoiceRecord) []string {
	var missing []string
	if rec.InvoiceNumber == nil {
		missing = append(missing, "invoice_number")
	}
	if rec.IssueDate == nil {
		missing = append(missing, "issue_date")
	}
	if rec.SupplierName == nil {
		missing = append(missing, "supplier_name")
	}
	if rec.SupplierTaxID == nil {
		missing = append(missing, "supplier_tax_id")
	}
	if rec.Subtotal == nil {
		missing = append(missing, "subtotal")
	}
	if rec.TaxAmount == nil {
		missing = append(missing, "tax_amount")
	}
	if rec.Total == nil {
		missing = append(missing, "total")
	}
	return missing
}

var nonDigits = regexp.MustCompile(`\D`)

func apply(rec *models.InvoiceRecord, comp *completion, missing []string) []string {
	wanted := map[string]bool{}
	for _, f := range missing {
		wanted[f] = true
	}
	var filled []string

	if wanted["invoice_number"] && comp.InvoiceNumber != nil {
		if v := strings.TrimSpace(*comp.InvoiceNumber); len(v) >= 3 {
			rec.InvoiceNumber = &v
			filled = append(filled, "invoice_number")
		}
	}
	if wanted["issue_date"] && comp.IssueDate != nil {
		if t, ok := extract.ParseDate(strings.TrimSpace(*comp.IssueDate)); ok {
			rec.IssueDate = models.NewDate(t)
			filled = append(filled, "issue_date")
		}
	}
	if wanted["supplier_name"] && comp.SupplierName != nil {
		if v := strings.TrimSpace(*comp.SupplierName); len(v) >= 4 {
			rec.SupplierName = &v
			filled = append(filled, "supplier_name")
		}
	}
	if wanted["supplier_tax_id"] && comp.SupplierTaxID != nil {
		if v := nonDigits.ReplaceAllString(*comp.SupplierTaxID, ""); len(v) >= 8 && len(v) <= 15 {
			rec.SupplierTaxID = &v
			filled = append(filled, "supplier_tax_id")
		}
	}
	if wanted["subtotal"] && comp.Subtotal != nil {
		if d, ok := amount.Parse(*comp.Subtotal); ok && !d.IsNegative() {
			rec.Subtotal = &d
			filled = append(filled, "subtotal")
		}
	}
	if wanted["tax_amount"] && comp.TaxAmount != nil {
		if d, ok := amount.Parse(*comp.TaxAmount); ok && !d.IsNegative() {
			rec.TaxAmount = &d
			filled = append(filled, "tax_amount")
		}
	}
	if wanted["total"] && comp.Total != nil {
		if d, ok := amount.Parse(*comp.Total); ok && !d.IsNegative() {
			rec.Total = &d
			filled = append(filled, "total")
		}
	}
	return filled
}

// extractJSON pulls the first JSON object out of an answer that may be
// wrapped in markdown fences or prose.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
