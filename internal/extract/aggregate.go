package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/verifactura/invoice-extract-service/internal/amount"
	"github.com/verifactura/invoice-extract-service/internal/models"
)

// DefaultCurrency is assumed when no currency marker appears anywhere in
// the document.
const DefaultCurrency = "USD"

// Aggregate assembles the canonical record from the raw field values and
// the parsed item rows. All numeric strings go through the amount parser
// here, missing totals are derived when arithmetic allows, and every
// derivation is recorded as an assumption so the output never silently
// invents data.
func Aggregate(f Fields, items []models.LineItem, sourceID string, now time.Time) *models.InvoiceRecord {
	rec := &models.InvoiceRecord{
		InvoiceNumber:   optional(f.InvoiceNumber),
		SupplierName:    optional(f.SupplierName),
		SupplierTaxID:   optional(f.SupplierTaxID),
		SupplierAddress: optional(f.SupplierAddress),
		Currency:        f.Currency,
		Subtotal:        amount.ParsePtr(f.SubtotalRaw),
		TaxAmount:       amount.ParsePtr(f.TaxRaw),
		Total:           amount.ParsePtr(f.TotalRaw),
		Items:           items,
		CUFE:            optional(f.CUFE),
		SourceID:        sourceID,
		ProcessedAt:     now,
	}
	rec.EconomicActivityCode = optional(f.ActivityCode)
	rec.IssueDate = parseCanonicalDate(f.IssueDate)
	rec.DueDate = parseCanonicalDate(f.DueDate)
	rec.WithholdingAmount = parseWithholding(f.WithholdingRaw)

	if rec.Currency == "" {
		rec.Currency = DefaultCurrency
		rec.Assumptions = append(rec.Assumptions, "currency not found, assumed "+DefaultCurrency)
	}
	if rec.InvoiceNumber != nil && strings.HasPrefix(*rec.InvoiceNumber, SurrogatePrefix) {
		rec.Assumptions = append(rec.Assumptions, "invoice number derived from banking reference")
	}

	deriveMissingAmount(rec)
	return rec
}

// deriveMissingAmount fills exactly one absent value of the triple
// subtotal, tax, total from the other two. Negative results are
// discarded: a tax larger than the total means one of the extracted
// values is wrong, and guessing which would compound the error.
func deriveMissingAmount(rec *models.InvoiceRecord) {
	s, t, g := rec.Subtotal, rec.TaxAmount, rec.Total

	switch {
	case s != nil && t != nil && g == nil:
		d := s.Add(*t)
		rec.Total = &d
		rec.Assumptions = append(rec.Assumptions, "total derived as subtotal + tax")

	case s != nil && g != nil && t == nil:
		d := g.Sub(*s)
		if d.IsNegative() {
			return
		}
		rec.TaxAmount = &d
		rec.Assumptions = append(rec.Assumptions, "tax derived as total - subtotal")

	case t != nil && g != nil && s == nil:
		d := g.Sub(*t)
		if d.IsNegative() {
			return
		}
		rec.Subtotal = &d
		rec.Assumptions = append(rec.Assumptions, "subtotal derived as total - tax")
	}
}

// parseWithholding keeps the document's own convention: a value written
// with "%" is stored as a fraction, a plain value as an amount. The
// validator tells them apart by magnitude.
func parseWithholding(raw string) *decimal.Decimal {
	if raw == "" {
		return nil
	}
	d, ok := amount.Parse(raw)
	if !ok || d.IsNegative() {
		return nil
	}
	if percentMark.MatchString(raw) {
		d = d.Div(decimal.NewFromInt(100))
	}
	return &d
}

func parseCanonicalDate(s string) *models.Date {
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return models.NewDate(t)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Summary is a one-line human description of what was and was not
// recovered, used in logs.
func Summary(rec *models.InvoiceRecord) string {
	present := 0
	for _, p := range []bool{
		rec.InvoiceNumber != nil, rec.IssueDate != nil, rec.SupplierName != nil,
		rec.SupplierTaxID != nil, rec.Subtotal != nil, rec.TaxAmount != nil,
		rec.Total != nil,
	} {
		if p {
			present++
		}
	}
	return fmt.Sprintf("%d/7 core fields, %d items, %d assumptions",
		present, len(rec.Items), len(rec.Assumptions))
}
