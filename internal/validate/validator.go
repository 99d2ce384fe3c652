// Package validate runs the DIAN business rules against an extracted
// invoice record. Rules are independent, run in a fixed order and each
// always produces exactly one finding, so a report carries the same
// number of findings no matter how little was extracted. Missing data
// degrades the grade of the relevant finding, it never aborts the run.
package validate

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"

	"github.com/verifactura/invoice-extract-service/internal/kb"
	"github.com/verifactura/invoice-extract-service/internal/models"
)

// Engine applies the rule set. Stateless between calls; safe for
// concurrent use.
type Engine struct {
	cfg      models.ValidationConfig
	searcher kb.Searcher // nil disables rule 10's lookup
	now      func() time.Time
}

func NewEngine(cfg models.ValidationConfig, searcher kb.Searcher, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{cfg: cfg, searcher: searcher, now: now}
}

type rule func(ctx context.Context, rec *models.InvoiceRecord) models.ValidationFinding

// Validate runs every rule and aggregates the findings.
func (e *Engine) Validate(ctx context.Context, rec *models.InvoiceRecord) *models.ValidationReport {
	rules := []rule{
		e.checkIssueDate,
		e.checkTaxID,
		e.checkFingerprint,
		e.checkTotals,
		e.checkTaxRate,
		e.checkItemsSum,
		e.checkActivityCode,
		e.checkWithholding,
		e.checkDueDate,
		e.checkKnowledgeBase,
	}

	report := &models.ValidationReport{}
	passed := 0
	hasError, hasWarning := false, false
	for _, r := range rules {
		f := r(ctx, rec)
		report.Findings = append(report.Findings, f)
		if f.Passed {
			passed++
		}
		switch f.Severity {
		case models.SeverityError:
			hasError = true
		case models.SeverityWarning:
			hasWarning = true
		}
	}

	report.OverallValid = !hasError
	report.ConfidenceScore = float64(passed) / float64(len(report.Findings))
	switch {
	case hasError:
		report.Recommendation = models.RecommendationNeedsReview
	case hasWarning:
		report.Recommendation = models.RecommendationWithWarnings
	default:
		report.Recommendation = models.RecommendationReady
	}
	return report
}

func pass(field, msg string) models.ValidationFinding {
	return models.ValidationFinding{Field: field, Passed: true, Severity: models.SeveritySuccess, Message: msg}
}

func warn(field, msg string) models.ValidationFinding {
	return models.ValidationFinding{Field: field, Passed: false, Severity: models.SeverityWarning, Message: msg}
}

func fail(field, msg string) models.ValidationFinding {
	return models.ValidationFinding{Field: field, Passed: false, Severity: models.SeverityError, Message: msg}
}

// Rule 1: issue date present, not in the future, not too old.
func (e *Engine) checkIssueDate(_ context.Context, rec *models.InvoiceRecord) models.ValidationFinding {
	const field = "issue_date"
	if rec.IssueDate == nil {
		return fail(field, "issue date not found")
	}
	now := e.now()
	d := rec.IssueDate.Time
	if d.After(now.Add(24 * time.Hour)) {
		return fail(field, fmt.Sprintf("issue date %s is in the future", d.Format("2006-01-02")))
	}
	if d.Before(now.AddDate(-e.cfg.MaxAgeYears, 0, 0)) {
		return warn(field, fmt.Sprintf("issue date %s is older than %d years", d.Format("2006-01-02"), e.cfg.MaxAgeYears))
	}
	return pass(field, "issue date is valid")
}

// Rule 2: NIT present with a matching check digit. A mismatch is only a
// warning: OCR misreads single digits routinely.
func (e *Engine) checkTaxID(_ context.Context, rec *models.InvoiceRecord) models.ValidationFinding {
	const field = "supplier_tax_id"
	if rec.SupplierTaxID == nil {
		return fail(field, "supplier tax id not found")
	}
	nit := *rec.SupplierTaxID
	if len(nit) < 2 {
		return fail(field, "supplier tax id too short")
	}
	if !VerifyNIT(nit) {
		return warn(field, fmt.Sprintf("NIT %s check digit does not match", nit))
	}
	return pass(field, "NIT check digit verified")
}

var cufeHex = regexp.MustCompile(`^[a-f0-9]+$`)

// Rule 3: CUFE, when the document carries one, must be hex of one of the
// two DIAN lengths (SHA-384 or SHA-512).
func (e *Engine) checkFingerprint(_ context.Context, rec *models.InvoiceRecord) models.ValidationFinding {
	const field = "cufe"
	if rec.CUFE == nil {
		return warn(field, "CUFE not present")
	}
	c := *rec.CUFE
	if !cufeHex.MatchString(c) || (len(c) != 96 && len(c) != 128) {
		return warn(field, fmt.Sprintf("CUFE has unexpected shape (length %d)", len(c)))
	}
	return pass(field, "CUFE format is valid")
}

// Rule 4: subtotal + tax must reproduce the total within tolerance.
func (e *Engine) checkTotals(_ context.Context, rec *models.InvoiceRecord) models.ValidationFinding {
	const field = "total"
	if rec.Total == nil || rec.Total.IsZero() {
		return fail(field, "total not found or zero")
	}
	if rec.Subtotal == nil || rec.TaxAmount == nil {
		return warn(field, "subtotal or tax missing, totals identity unverifiable")
	}
	expected := rec.Subtotal.Add(*rec.TaxAmount)
	diff := expected.Sub(*rec.Total).Abs()
	tolerance := rec.Total.Mul(decimal.NewFromFloat(e.cfg.TotalTolerance))
	if diff.GreaterThan(tolerance) {
		return fail(field, fmt.Sprintf("subtotal + tax = %s but total = %s", expected, rec.Total))
	}
	return pass(field, "totals are consistent")
}

// Rule 5: effective tax rate within the legal ceiling and near one of
// the standard IVA rates.
func (e *Engine) checkTaxRate(_ context.Context, rec *models.InvoiceRecord) models.ValidationFinding {
	const field = "tax_amount"
	if rec.Subtotal == nil || rec.Subtotal.IsZero() || rec.TaxAmount == nil {
		return warn(field, "tax rate unverifiable, subtotal or tax missing")
	}
	rate, _ := rec.TaxAmount.Div(*rec.Subtotal).Float64()
	if rate > e.cfg.TaxRateCeiling+e.cfg.TaxRateSlack {
		return fail(field, fmt.Sprintf("tax rate %.1f%% exceeds the %.1f%% ceiling", rate*100, e.cfg.TaxRateCeiling*100))
	}
	for _, std := range e.cfg.StandardTaxRates {
		if rate >= std-e.cfg.TaxRateSlack && rate <= std+e.cfg.TaxRateSlack {
			return pass(field, fmt.Sprintf("tax rate %.1f%% matches a standard rate", rate*100))
		}
	}
	return warn(field, fmt.Sprintf("tax rate %.1f%% is not a standard rate", rate*100))
}

// Rule 6: line items must reconcile with the subtotal. Only a warning:
// item parsing is the least reliable stage of extraction.
func (e *Engine) checkItemsSum(_ context.Context, rec *models.InvoiceRecord) models.ValidationFinding {
	const field = "items"
	if len(rec.Items) == 0 {
		return pass(field, "no line items to reconcile")
	}
	if rec.Subtotal == nil {
		return warn(field, "subtotal missing, item sum unverifiable")
	}
	sum := decimal.Zero
	counted := 0
	for _, it := range rec.Items {
		if it.LineTotal != nil {
			sum = sum.Add(*it.LineTotal)
			counted++
		}
	}
	if counted == 0 {
		return warn(field, "no item carries a line total")
	}
	margin := rec.Subtotal.Mul(decimal.NewFromFloat(e.cfg.ItemsTolerance))
	floor := decimal.NewFromFloat(e.cfg.ItemsMinMargin)
	if margin.LessThan(floor) {
		margin = floor
	}
	if sum.Sub(*rec.Subtotal).Abs().GreaterThan(margin) {
		return warn(field, fmt.Sprintf("items sum to %s but subtotal is %s", sum, rec.Subtotal))
	}
	return pass(field, fmt.Sprintf("%d items reconcile with the subtotal", counted))
}

// Rule 7: economic activity code. The knowledge base confirms known
// CIIU codes when available; a lookup failure or miss degrades to the
// shape check, never to a worse grade.
func (e *Engine) checkActivityCode(ctx context.Context, rec *models.InvoiceRecord) models.ValidationFinding {
	const field = "economic_activity_code"
	if rec.EconomicActivityCode == nil {
		return warn(field, "economic activity code not present")
	}
	c := *rec.EconomicActivityCode
	if len(c) < 3 || len(c) > 6 {
		return warn(field, fmt.Sprintf("activity code %q has unexpected length", c))
	}
	if e.searcher != nil {
		snippets, err := e.searcher.Search(ctx, "actividad economica CIIU "+c, 3)
		if err == nil && len(snippets) > 0 {
			return pass(field, fmt.Sprintf("activity code %s confirmed by %d references", c, len(snippets)))
		}
	}
	return pass(field, "economic activity code has a valid format")
}

// Rule 8: withholding. Values below 1 are rates, values at or above 1
// are amounts checked against the subtotal.
func (e *Engine) checkWithholding(_ context.Context, rec *models.InvoiceRecord) models.ValidationFinding {
	const field = "withholding_amount"
	if rec.WithholdingAmount == nil {
		return warn(field, "withholding not present")
	}
	w := *rec.WithholdingAmount
	maxRate := decimal.NewFromFloat(e.cfg.WithholdingMaxRate)
	if w.LessThan(decimal.NewFromInt(1)) {
		if w.GreaterThan(maxRate) {
			return warn(field, fmt.Sprintf("withholding rate %s exceeds %s", w, maxRate))
		}
		return pass(field, "withholding rate within bounds")
	}
	if rec.Subtotal == nil || rec.Subtotal.IsZero() {
		return warn(field, "withholding amount unverifiable without subtotal")
	}
	if w.Div(*rec.Subtotal).GreaterThan(maxRate) {
		return warn(field, fmt.Sprintf("withholding %s exceeds %s of subtotal", w, maxRate))
	}
	return pass(field, "withholding amount within bounds")
}

// Rule 9: due date ordering and payment term. A due date before the
// issue date is an error, an excessive term only a warning.
func (e *Engine) checkDueDate(_ context.Context, rec *models.InvoiceRecord) models.ValidationFinding {
	const field = "due_date"
	if rec.DueDate == nil {
		return warn(field, "due date not present")
	}
	if rec.IssueDate == nil {
		return warn(field, "due date present but issue date missing")
	}
	if rec.DueDate.Before(rec.IssueDate.Time) {
		return fail(field, "due date precedes issue date")
	}
	term := int(rec.DueDate.Sub(rec.IssueDate.Time).Hours() / 24)
	if term > e.cfg.MaxPaymentTermDays {
		return warn(field, fmt.Sprintf("payment term of %d days exceeds %d", term, e.cfg.MaxPaymentTermDays))
	}
	return pass(field, fmt.Sprintf("payment term of %d days", term))
}

// Rule 10: cross-reference the supplier against the knowledge base. The
// collaborator is optional; unavailable means unverifiable, not invalid.
func (e *Engine) checkKnowledgeBase(ctx context.Context, rec *models.InvoiceRecord) models.ValidationFinding {
	const field = "knowledge_base"
	if e.searcher == nil {
		return warn(field, "knowledge base not configured, record unverifiable")
	}
	if rec.SupplierName == nil && rec.SupplierTaxID == nil {
		return warn(field, "no supplier data to cross-reference")
	}
	query := ""
	if rec.SupplierName != nil {
		query = *rec.SupplierName
	}
	if rec.SupplierTaxID != nil {
		query += " NIT " + *rec.SupplierTaxID
	}
	snippets, err := e.searcher.Search(ctx, query, 3)
	if err != nil {
		return warn(field, "knowledge base unavailable, record unverifiable")
	}
	if len(snippets) == 0 {
		return warn(field, "no supporting references found for supplier")
	}
	return pass(field, fmt.Sprintf("%d supporting references found", len(snippets)))
}
