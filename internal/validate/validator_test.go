package validate

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/verifactura/invoice-extract-service/internal/kb"
	"github.com/verifactura/invoice-extract-service/internal/models"
)

func fixedClock() time.Time {
	return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
}

func testConfig() models.ValidationConfig {
	var c models.Config
	c.ApplyDefaults()
	return c.Validation
}

func dec(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func str(s string) *string { return &s }

// goodRecord is internally consistent: valid NIT, exact totals, items
// reconciling with the subtotal.
func goodRecord() *models.InvoiceRecord {
	return &models.InvoiceRecord{
		InvoiceNumber: str("FE-4711"),
		IssueDate:     models.NewDate(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)),
		SupplierName:  str("Comercial Andina S.A.S."),
		SupplierTaxID: str("8001972684"),
		Currency:      "COP",
		Subtotal:      dec("900000"),
		TaxAmount:     dec("171000"),
		Total:         dec("1071000"),
		Items: []models.LineItem{
			{Description: "Producto A", Quantity: dec("10"), UnitPrice: dec("50000"), LineTotal: dec("500000")},
			{Description: "Producto B", Quantity: dec("8"), UnitPrice: dec("50000"), LineTotal: dec("400000")},
		},
	}
}

func findingFor(t *testing.T, report *models.ValidationReport, field string) models.ValidationFinding {
	t.Helper()
	for _, f := range report.Findings {
		if f.Field == field {
			return f
		}
	}
	t.Fatalf("no finding for field %q", field)
	return models.ValidationFinding{}
}

func TestValidateAlwaysTenFindings(t *testing.T) {
	e := NewEngine(testConfig(), nil, fixedClock)

	for name, rec := range map[string]*models.InvoiceRecord{
		"good":  goodRecord(),
		"empty": {},
	} {
		report := e.Validate(context.Background(), rec)
		if len(report.Findings) != 10 {
			t.Errorf("%s: got %d findings, want 10", name, len(report.Findings))
		}
	}
}

func TestValidateGoodRecord(t *testing.T) {
	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), goodRecord())

	if !report.OverallValid {
		t.Errorf("OverallValid = false; errors: %v", report.Errors())
	}
	for _, field := range []string{"issue_date", "supplier_tax_id", "total", "tax_amount", "items"} {
		if f := findingFor(t, report, field); !f.Passed {
			t.Errorf("%s: passed = false (%s)", field, f.Message)
		}
	}
	// Optional fields are absent, so the record is valid with warnings.
	if report.Recommendation != models.RecommendationWithWarnings {
		t.Errorf("Recommendation = %q", report.Recommendation)
	}
}

func TestValidateEmptyRecord(t *testing.T) {
	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), &models.InvoiceRecord{})

	if report.OverallValid {
		t.Error("OverallValid = true for empty record")
	}
	for _, field := range []string{"issue_date", "supplier_tax_id", "total"} {
		if f := findingFor(t, report, field); f.Severity != models.SeverityError {
			t.Errorf("%s: severity = %s, want error", field, f.Severity)
		}
	}
	if report.Recommendation != models.RecommendationNeedsReview {
		t.Errorf("Recommendation = %q", report.Recommendation)
	}
}

func TestValidateChecksumFlipIsWarning(t *testing.T) {
	rec := goodRecord()
	rec.SupplierTaxID = str("8001972685")

	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), rec)

	f := findingFor(t, report, "supplier_tax_id")
	if f.Severity != models.SeverityWarning {
		t.Errorf("severity = %s, want warning", f.Severity)
	}
	if !report.OverallValid {
		t.Error("checksum mismatch alone must not invalidate the record")
	}
}

func TestValidateTotalsMismatchIsError(t *testing.T) {
	rec := goodRecord()
	rec.Total = dec("1178100") // 10% off

	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), rec)

	if f := findingFor(t, report, "total"); f.Severity != models.SeverityError {
		t.Errorf("severity = %s, want error", f.Severity)
	}
	if report.OverallValid {
		t.Error("OverallValid = true despite totals mismatch")
	}
}

func TestValidateTotalsWithinTolerance(t *testing.T) {
	rec := goodRecord()
	rec.Total = dec("1075000") // ~0.4% off, inside the 1% tolerance

	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), rec)

	if f := findingFor(t, report, "total"); !f.Passed {
		t.Errorf("expected pass within tolerance: %s", f.Message)
	}
}

func TestValidateExcessiveTaxRateIsError(t *testing.T) {
	rec := goodRecord()
	rec.TaxAmount = dec("225000") // 25%
	rec.Total = dec("1125000")

	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), rec)

	if f := findingFor(t, report, "tax_amount"); f.Severity != models.SeverityError {
		t.Errorf("severity = %s, want error", f.Severity)
	}
}

func TestValidateNonStandardTaxRateIsWarning(t *testing.T) {
	rec := goodRecord()
	rec.TaxAmount = dec("90000") // 10%: under the ceiling, not standard
	rec.Total = dec("990000")

	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), rec)

	f := findingFor(t, report, "tax_amount")
	if f.Severity != models.SeverityWarning {
		t.Errorf("severity = %s, want warning", f.Severity)
	}
}

func TestValidateItemsMismatchIsWarning(t *testing.T) {
	rec := goodRecord()
	rec.Items[0].LineTotal = dec("100000")

	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), rec)

	f := findingFor(t, report, "items")
	if f.Severity != models.SeverityWarning {
		t.Errorf("severity = %s, want warning", f.Severity)
	}
	if !report.OverallValid {
		t.Error("item mismatch alone must not invalidate the record")
	}
}

func TestValidateDueDateBeforeIssueIsError(t *testing.T) {
	rec := goodRecord()
	rec.DueDate = models.NewDate(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), rec)

	if f := findingFor(t, report, "due_date"); f.Severity != models.SeverityError {
		t.Errorf("severity = %s, want error", f.Severity)
	}
}

func TestValidateLongPaymentTermIsWarning(t *testing.T) {
	rec := goodRecord()
	rec.DueDate = models.NewDate(time.Date(2027, 3, 15, 0, 0, 0, 0, time.UTC)) // 365 days

	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), rec)

	if f := findingFor(t, report, "due_date"); f.Severity != models.SeverityWarning {
		t.Errorf("severity = %s, want warning", f.Severity)
	}
}

func TestValidateOldInvoiceIsWarning(t *testing.T) {
	rec := goodRecord()
	rec.IssueDate = models.NewDate(time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC))

	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), rec)

	if f := findingFor(t, report, "issue_date"); f.Severity != models.SeverityWarning {
		t.Errorf("severity = %s, want warning", f.Severity)
	}
}

func TestValidateFutureIssueDateIsError(t *testing.T) {
	rec := goodRecord()
	rec.IssueDate = models.NewDate(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC))

	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), rec)

	if f := findingFor(t, report, "issue_date"); f.Severity != models.SeverityError {
		t.Errorf("severity = %s, want error", f.Severity)
	}
}

func TestValidateCUFE(t *testing.T) {
	e := NewEngine(testConfig(), nil, fixedClock)

	rec := goodRecord()
	rec.CUFE = str(repeatHex(96))
	if f := findingFor(t, e.Validate(context.Background(), rec), "cufe"); !f.Passed {
		t.Errorf("96-char CUFE rejected: %s", f.Message)
	}

	rec.CUFE = str(repeatHex(100))
	if f := findingFor(t, e.Validate(context.Background(), rec), "cufe"); f.Severity != models.SeverityWarning {
		t.Errorf("severity = %s, want warning for odd length", f.Severity)
	}
}

func TestValidateConfidenceScore(t *testing.T) {
	e := NewEngine(testConfig(), nil, fixedClock)
	report := e.Validate(context.Background(), goodRecord())

	passed := 0
	for _, f := range report.Findings {
		if f.Passed {
			passed++
		}
	}
	want := float64(passed) / 10
	if report.ConfidenceScore != want {
		t.Errorf("ConfidenceScore = %f, want %f", report.ConfidenceScore, want)
	}
}

type stubSearcher struct {
	snippets []kb.Snippet
	err      error
}

func (s *stubSearcher) Search(ctx context.Context, query string, k int) ([]kb.Snippet, error) {
	return s.snippets, s.err
}

func TestValidateActivityCodeKnowledgeBase(t *testing.T) {
	rec := goodRecord()
	rec.EconomicActivityCode = str("6201")

	found := &stubSearcher{snippets: []kb.Snippet{{Text: "6201 desarrollo de sistemas informaticos", Source: "ciiu.txt"}}}
	e := NewEngine(testConfig(), found, fixedClock)
	f := findingFor(t, e.Validate(context.Background(), rec), "economic_activity_code")
	if !f.Passed || !strings.Contains(f.Message, "confirmed") {
		t.Errorf("expected KB-confirmed pass, got %+v", f)
	}

	// Lookup failure degrades to the shape check, not to a warning.
	down := &stubSearcher{err: fmt.Errorf("connection refused")}
	e = NewEngine(testConfig(), down, fixedClock)
	f = findingFor(t, e.Validate(context.Background(), rec), "economic_activity_code")
	if !f.Passed || f.Severity != models.SeveritySuccess {
		t.Errorf("expected format fallback to pass, got %+v", f)
	}

	// A miss is not a failure either.
	empty := &stubSearcher{}
	e = NewEngine(testConfig(), empty, fixedClock)
	f = findingFor(t, e.Validate(context.Background(), rec), "economic_activity_code")
	if !f.Passed {
		t.Errorf("expected pass on empty lookup, got %+v", f)
	}
}

func TestValidateKnowledgeBase(t *testing.T) {
	rec := goodRecord()

	found := &stubSearcher{snippets: []kb.Snippet{{Text: "registro mercantil", Source: "rut.txt"}}}
	e := NewEngine(testConfig(), found, fixedClock)
	if f := findingFor(t, e.Validate(context.Background(), rec), "knowledge_base"); !f.Passed {
		t.Errorf("expected pass with snippets: %s", f.Message)
	}

	down := &stubSearcher{err: fmt.Errorf("connection refused")}
	e = NewEngine(testConfig(), down, fixedClock)
	f := findingFor(t, e.Validate(context.Background(), rec), "knowledge_base")
	if f.Severity != models.SeverityWarning {
		t.Errorf("severity = %s, want warning when unavailable", f.Severity)
	}
}

func repeatHex(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = "0123456789abcdef"[i%16]
	}
	return string(b)
}
