package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Date is a calendar date that serializes as ISO 8601 (YYYY-MM-DD).
// Invoices carry dates, not timestamps.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func NewDate(t time.Time) *Date {
	d := Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
	return &d
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		return nil
	}
	t, err := time.Parse(`"`+dateLayout+`"`, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// InvoiceRecord is the canonical structured output of the extraction
// pipeline. Every field is optional: a nil pointer means the field could
// not be recovered from the OCR text, which is data absence, not an error.
// Records are built once by the aggregator and never mutated afterwards.
type InvoiceRecord struct {
	InvoiceNumber   *string          `json:"invoice_number"`
	IssueDate       *Date            `json:"issue_date"`
	SupplierName    *string          `json:"supplier_name"`
	SupplierTaxID   *string          `json:"supplier_tax_id"`
	SupplierAddress *string          `json:"supplier_address"`
	Currency        string           `json:"currency"`
	Subtotal        *decimal.Decimal `json:"subtotal"`
	TaxAmount       *decimal.Decimal `json:"tax_amount"`
	Total           *decimal.Decimal `json:"total"`
	Items           []LineItem       `json:"items"`

	// DIAN secondary fields
	CUFE                 *string          `json:"cufe,omitempty"`
	EconomicActivityCode *string          `json:"economic_activity_code,omitempty"`
	WithholdingAmount    *decimal.Decimal `json:"withholding_amount,omitempty"`
	DueDate              *Date            `json:"due_date,omitempty"`

	// Assumptions lists derivations the aggregator applied (e.g. a total
	// computed from subtotal + tax) so downstream consumers can see that
	// a value was not read off the document.
	Assumptions []string `json:"assumptions,omitempty"`

	SourceID    string    `json:"source_id,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// LineItem is one row of the invoice item table.
type LineItem struct {
	Description string           `json:"description"`
	Quantity    *decimal.Decimal `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
	LineTotal   *decimal.Decimal `json:"line_total"`
}

// Severity grades a validation finding.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ValidationFinding is the outcome of a single business rule.
type ValidationFinding struct {
	Field    string   `json:"field_name"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Recommendation categories, driven purely by error/warning presence.
const (
	RecommendationReady        = "ready"
	RecommendationWithWarnings = "ready_with_warnings"
	RecommendationNeedsReview  = "needs_review"
)

// ValidationReport aggregates all rule findings for one record.
type ValidationReport struct {
	OverallValid    bool                `json:"overall_valid"`
	ConfidenceScore float64             `json:"confidence_score"`
	Findings        []ValidationFinding `json:"findings"`
	Recommendation  string              `json:"recommendation"`
}

// Errors returns the messages of all error-severity findings.
func (r *ValidationReport) Errors() []string {
	var msgs []string
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			msgs = append(msgs, f.Message)
		}
	}
	return msgs
}

// Warnings returns the messages of all warning-severity findings.
func (r *ValidationReport) Warnings() []string {
	var msgs []string
	for _, f := range r.Findings {
		if f.Severity == SeverityWarning {
			msgs = append(msgs, f.Message)
		}
	}
	return msgs
}

// ProcessResult pairs a record with its validation report. This is what
// the API returns and what gets persisted per document.
type ProcessResult struct {
	Record     *InvoiceRecord    `json:"invoice"`
	Validation *ValidationReport `json:"validation"`
	SourceFile string            `json:"source_file,omitempty"`
	Duration   float64           `json:"duration_seconds"`
}
