package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/verifactura/invoice-extract-service/internal/models"
	"github.com/verifactura/invoice-extract-service/internal/pipeline"
	"github.com/verifactura/invoice-extract-service/internal/validate"
)

func testRouter() http.Handler {
	var cfg models.Config
	cfg.ApplyDefaults()
	validator := validate.NewEngine(cfg.Validation, nil, nil)
	h := NewHandler(&cfg, pipeline.New(&cfg, validator, nil))
	return h.SetupRoutes()
}

func TestHealthEndpoint(t *testing.T) {
	rr := httptest.NewRecorder()
	testRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Status != "ok" || resp.Version != Version {
		t.Errorf("response = %+v", resp)
	}
	if resp.Database.Available || resp.Storage.Available {
		t.Error("backends must report unavailable in tests")
	}
}

func TestExtractEndpoint(t *testing.T) {
	body, _ := json.Marshal(ExtractRequest{
		Text:     "Invoice No: FE-100\nFecha: 2026-03-15\nTotal: 119,00",
		SourceID: "doc-1",
	})

	rr := httptest.NewRecorder()
	testRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body)
	}
	var res models.ProcessResult
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if res.Record == nil || res.Validation == nil {
		t.Fatal("incomplete result")
	}
	if res.Record.InvoiceNumber == nil || *res.Record.InvoiceNumber != "FE-100" {
		t.Errorf("InvoiceNumber = %v", res.Record.InvoiceNumber)
	}
	if len(res.Validation.Findings) != 10 {
		t.Errorf("got %d findings, want 10", len(res.Validation.Findings))
	}
	if res.SourceFile != "doc-1" {
		t.Errorf("SourceFile = %q", res.SourceFile)
	}
}

func TestExtractRequiresText(t *testing.T) {
	body, _ := json.Marshal(ExtractRequest{SourceID: "doc-1"})
	rr := httptest.NewRecorder()
	testRouter().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/extract", bytes.NewReader(body)))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestRecordRoutesWithoutDatabase(t *testing.T) {
	router := testRouter()
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/records"},
		{http.MethodGet, "/api/record/some-id"},
		{http.MethodDelete, "/api/record/some-id"},
		{http.MethodGet, "/api/stats"},
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: status = %d, want 503", tc.method, tc.path, rr.Code)
		}
	}
}
