package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/verifactura/invoice-extract-service/internal/models"
	"github.com/verifactura/invoice-extract-service/internal/validate"
)

const sampleText = `FACTURA ELECTRONICA DE VENTA
Invoice No: FE-4711
Fecha: 2026-03-15
Seller:
Comercial Andina S.A.S.
Calle 45 No. 12-34, Bogota
NIT: 800.197.268-4

ITEMS:
1. Producto A - Cant: 10 - Precio: $50.000 - Total: $500.000
2. Producto B - Cant: 8 - Precio: $50.000 - Total: $400.000

Subtotal: $900.000
IVA (19%): $171.000
TOTAL: $1.071.000`

func newPipeline() *Pipeline {
	var cfg models.Config
	cfg.ApplyDefaults()
	validator := validate.NewEngine(cfg.Validation, nil, func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	})
	return New(&cfg, validator, nil)
}

func TestProcessCompleteDocument(t *testing.T) {
	res := newPipeline().Process(context.Background(), sampleText, "factura-001.txt")

	rec := res.Record
	if rec.InvoiceNumber == nil || *rec.InvoiceNumber != "FE-4711" {
		t.Errorf("InvoiceNumber = %v", rec.InvoiceNumber)
	}
	if rec.Subtotal == nil || rec.Subtotal.String() != "900000" {
		t.Errorf("Subtotal = %v", rec.Subtotal)
	}
	if rec.Total == nil || rec.Total.String() != "1071000" {
		t.Errorf("Total = %v", rec.Total)
	}
	if len(rec.Items) != 2 {
		t.Errorf("got %d items, want 2", len(rec.Items))
	}
	if res.SourceFile != "factura-001.txt" {
		t.Errorf("SourceFile = %q", res.SourceFile)
	}

	if !res.Validation.OverallValid {
		t.Errorf("OverallValid = false; errors: %v", res.Validation.Errors())
	}
	if len(res.Validation.Findings) != 10 {
		t.Errorf("got %d findings, want 10", len(res.Validation.Findings))
	}
}

func TestProcessEmptyInput(t *testing.T) {
	res := newPipeline().Process(context.Background(), "", "empty.txt")

	if res.Record == nil || res.Validation == nil {
		t.Fatal("expected a complete result for empty input")
	}
	if res.Validation.OverallValid {
		t.Error("OverallValid = true for empty input")
	}
	if len(res.Record.Items) != 0 {
		t.Errorf("Items = %v", res.Record.Items)
	}
}

func TestProcessIsDeterministic(t *testing.T) {
	p := newPipeline()
	a := p.Process(context.Background(), sampleText, "doc")
	b := p.Process(context.Background(), sampleText, "doc")

	ja, _ := json.Marshal(a.Record)
	jb, _ := json.Marshal(b.Record)
	// ProcessedAt differs between runs; compare everything else.
	var ma, mb map[string]interface{}
	json.Unmarshal(ja, &ma)
	json.Unmarshal(jb, &mb)
	delete(ma, "processed_at")
	delete(mb, "processed_at")
	sa, _ := json.Marshal(ma)
	sb, _ := json.Marshal(mb)
	if string(sa) != string(sb) {
		t.Errorf("records differ:\n%s\n%s", sa, sb)
	}
}

func TestProcessBatchOrderAndSummary(t *testing.T) {
	docs := make([]Document, 20)
	for i := range docs {
		docs[i] = Document{Text: sampleText, SourceID: fmt.Sprintf("doc-%02d", i)}
	}
	// A couple of unreadable documents mixed in.
	docs[3].Text = ""
	docs[11].Text = "not an invoice"

	results, summary := newPipeline().ProcessBatch(context.Background(), docs, 4)

	if len(results) != len(docs) {
		t.Fatalf("got %d results, want %d", len(results), len(docs))
	}
	for i, res := range results {
		if res == nil {
			t.Fatalf("result %d is nil", i)
		}
		if want := fmt.Sprintf("doc-%02d", i); res.SourceFile != want {
			t.Errorf("result %d: SourceFile = %q, want %q", i, res.SourceFile, want)
		}
	}

	if summary.Processed != len(docs) {
		t.Errorf("Processed = %d", summary.Processed)
	}
	if summary.NeedsReview < 2 {
		t.Errorf("NeedsReview = %d, want at least the 2 unreadable documents", summary.NeedsReview)
	}
	if summary.Valid+summary.WithWarnings+summary.NeedsReview != summary.Processed {
		t.Errorf("summary counts do not add up: %+v", summary)
	}
}

func TestProcessBatchSingleWorkerClamp(t *testing.T) {
	docs := []Document{{Text: sampleText, SourceID: "only"}}
	results, summary := newPipeline().ProcessBatch(context.Background(), docs, 16)
	if len(results) != 1 || results[0] == nil {
		t.Fatalf("results = %v", results)
	}
	if summary.Processed != 1 {
		t.Errorf("Processed = %d", summary.Processed)
	}
}
