package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/verifactura/invoice-extract-service/internal/models"
)

// Record is one persisted extraction result. The full invoice and
// validation report are stored as JSON; the scalar columns exist for
// listing and aggregation without unpacking the documents.
type Record struct {
	ID             uuid.UUID  `json:"id"`
	SourceID       string     `json:"source_id"`
	InvoiceNumber  string     `json:"invoice_number"`
	SupplierName   string     `json:"supplier_name"`
	SupplierTaxID  string     `json:"supplier_tax_id"`
	IssueDate      *time.Time `json:"issue_date"`
	Subtotal       float64    `json:"subtotal"`
	TaxAmount      float64    `json:"tax_amount"`
	Total          float64    `json:"total"`
	Currency       string     `json:"currency"`
	Confidence     float64    `json:"confidence"`
	Recommendation string     `json:"recommendation"`
	ResultJSON     string     `json:"result_json,omitempty"`
	RawTextURL     string     `json:"raw_text_url,omitempty"`
	RawText        string     `json:"raw_text,omitempty"` // populated on demand from storage, never persisted
	UserID         uuid.UUID  `json:"user_id"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewRecord flattens a process result into its persisted form.
func NewRecord(res *models.ProcessResult, userID uuid.UUID) (*Record, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}

	rec := &Record{
		SourceID:       res.SourceFile,
		Currency:       res.Record.Currency,
		Confidence:     res.Validation.ConfidenceScore,
		Recommendation: res.Validation.Recommendation,
		ResultJSON:     string(payload),
		UserID:         userID,
	}
	if v := res.Record.InvoiceNumber; v != nil {
		rec.InvoiceNumber = *v
	}
	if v := res.Record.SupplierName; v != nil {
		rec.SupplierName = *v
	}
	if v := res.Record.SupplierTaxID; v != nil {
		rec.SupplierTaxID = *v
	}
	if v := res.Record.IssueDate; v != nil {
		t := v.Time
		rec.IssueDate = &t
	}
	if v := res.Record.Subtotal; v != nil {
		rec.Subtotal, _ = v.Float64()
	}
	if v := res.Record.TaxAmount; v != nil {
		rec.TaxAmount, _ = v.Float64()
	}
	if v := res.Record.Total; v != nil {
		rec.Total, _ = v.Float64()
	}
	return rec, nil
}

func SaveRecord(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO extracted_invoices (
			source_id, invoice_number, supplier_name, supplier_tax_id,
			issue_date, subtotal, tax_amount, total, currency,
			confidence, recommendation, result_json, raw_text_url, user_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, created_at
	`

	err := Pool.QueryRow(ctx, query,
		rec.SourceID, rec.InvoiceNumber, rec.SupplierName, rec.SupplierTaxID,
		rec.IssueDate, rec.Subtotal, rec.TaxAmount, rec.Total, rec.Currency,
		rec.Confidence, rec.Recommendation, rec.ResultJSON, rec.RawTextURL, rec.UserID,
	).Scan(&rec.ID, &rec.CreatedAt)

	return err
}

func GetRecords(ctx context.Context, userID uuid.UUID, limit int) ([]Record, error) {
	query := `
		SELECT id, COALESCE(source_id, ''), COALESCE(invoice_number, ''), COALESCE(supplier_name, ''),
		       COALESCE(supplier_tax_id, ''), issue_date, COALESCE(subtotal, 0), COALESCE(tax_amount, 0),
		       COALESCE(total, 0), COALESCE(currency, ''), COALESCE(confidence, 0),
		       COALESCE(recommendation, ''), created_at
		FROM extracted_invoices
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := Pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		err := rows.Scan(
			&rec.ID, &rec.SourceID, &rec.InvoiceNumber, &rec.SupplierName,
			&rec.SupplierTaxID, &rec.IssueDate, &rec.Subtotal, &rec.TaxAmount,
			&rec.Total, &rec.Currency, &rec.Confidence, &rec.Recommendation,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// GetRecordByID retrieves a single record with its full result document
func GetRecordByID(ctx context.Context, userID uuid.UUID, recordID string) (*Record, error) {
	query := `
		SELECT id, COALESCE(source_id, ''), COALESCE(invoice_number, ''), COALESCE(supplier_name, ''),
		       COALESCE(supplier_tax_id, ''), issue_date, COALESCE(subtotal, 0), COALESCE(tax_amount, 0),
		       COALESCE(total, 0), COALESCE(currency, ''), COALESCE(confidence, 0),
		       COALESCE(recommendation, ''), COALESCE(result_json::text, ''), COALESCE(raw_text_url, ''), created_at
		FROM extracted_invoices
		WHERE id = $1 AND user_id = $2
	`

	var rec Record
	err := Pool.QueryRow(ctx, query, recordID, userID).Scan(
		&rec.ID, &rec.SourceID, &rec.InvoiceNumber, &rec.SupplierName,
		&rec.SupplierTaxID, &rec.IssueDate, &rec.Subtotal, &rec.TaxAmount,
		&rec.Total, &rec.Currency, &rec.Confidence, &rec.Recommendation,
		&rec.ResultJSON, &rec.RawTextURL, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteRecord removes a record
func DeleteRecord(ctx context.Context, userID uuid.UUID, recordID string) error {
	query := `DELETE FROM extracted_invoices WHERE id = $1 AND user_id = $2`
	_, err := Pool.Exec(ctx, query, recordID, userID)
	return err
}

// MonthlyStats represents monthly statistics
type MonthlyStats struct {
	Month         string  `json:"month"`
	TotalRecords  int     `json:"total_records"`
	TotalSubtotal float64 `json:"total_subtotal"`
	TotalTax      float64 `json:"total_tax"`
	TotalAmount   float64 `json:"total_amount"`
	AvgConfidence float64 `json:"avg_confidence"`
	NeedsReview   int     `json:"needs_review"`
}

// GetMonthlyStats returns statistics for the current month
func GetMonthlyStats(ctx context.Context, userID uuid.UUID) (*MonthlyStats, error) {
	query := `
		SELECT
			COUNT(*) as total_records,
			COALESCE(SUM(subtotal), 0) as total_subtotal,
			COALESCE(SUM(tax_amount), 0) as total_tax,
			COALESCE(SUM(total), 0) as total_amount,
			COALESCE(AVG(confidence), 0) as avg_confidence,
			COUNT(*) FILTER (WHERE recommendation = 'needs_review') as needs_review
		FROM extracted_invoices
		WHERE user_id = $1
		  AND DATE_TRUNC('month', created_at) = DATE_TRUNC('month', CURRENT_DATE)
	`

	stats := &MonthlyStats{
		Month: time.Now().Format("2006-01"),
	}

	err := Pool.QueryRow(ctx, query, userID).Scan(
		&stats.TotalRecords,
		&stats.TotalSubtotal,
		&stats.TotalTax,
		&stats.TotalAmount,
		&stats.AvgConfidence,
		&stats.NeedsReview,
	)
	if err != nil {
		return nil, err
	}

	return stats, nil
}
