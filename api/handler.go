package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/verifactura/invoice-extract-service/internal/auth"
	"github.com/verifactura/invoice-extract-service/internal/db"
	"github.com/verifactura/invoice-extract-service/internal/models"
	"github.com/verifactura/invoice-extract-service/internal/pipeline"
	"github.com/verifactura/invoice-extract-service/internal/storage"
)

const (
	MaxTextSize = 1 * 1024 * 1024 // 1MB of OCR text
	Version     = "1.0.0"
)

// Handler handles HTTP requests for invoice extraction
type Handler struct {
	config   *models.Config
	pipeline *pipeline.Pipeline
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, p *pipeline.Pipeline) *Handler {
	return &Handler{
		config:   config,
		pipeline: p,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Main endpoints
	router.HandleFunc("/api/extract", h.ExtractInvoice).Methods("POST")
	router.HandleFunc("/api/records", h.GetRecords).Methods("GET")

	// Record CRUD
	router.HandleFunc("/api/record/{id}", h.GetRecord).Methods("GET")
	router.HandleFunc("/api/record/{id}", h.DeleteRecord).Methods("DELETE")

	// Statistics
	router.HandleFunc("/api/stats", h.GetStats).Methods("GET")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// ExtractRequest is the extraction request body: raw OCR text plus an
// optional source identifier for traceability
type ExtractRequest struct {
	Text     string `json:"text"`
	SourceID string `json:"source_id"`
}

// ExtractInvoice runs the extraction pipeline on submitted OCR text
func (h *Handler) ExtractInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	r.Body = http.MaxBytesReader(w, r.Body, MaxTextSize)

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
		return
	}
	if req.SourceID == "" {
		req.SourceID = uuid.NewString()
	}

	result := h.pipeline.Process(r.Context(), req.Text, req.SourceID)

	// Persistence is best-effort: extraction results are returned even
	// when the database or storage are down
	if db.Pool != nil {
		h.persist(r, req.Text, result)
	}

	json.NewEncoder(w).Encode(result)
}

func (h *Handler) persist(r *http.Request, rawText string, result *models.ProcessResult) {
	claims, ok := auth.GetClaimsFromContext(r.Context())
	if !ok {
		return
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return
	}

	rec, err := db.NewRecord(result, userID)
	if err != nil {
		log.Printf("Warning: failed to encode record for %s: %v", result.SourceFile, err)
		return
	}

	if storage.Client != nil {
		url, err := storage.UploadRawText(r.Context(), claims.UserID, result.SourceFile, rawText)
		if err != nil {
			log.Printf("Warning: failed to store raw text for %s: %v", result.SourceFile, err)
		} else {
			rec.RawTextURL = url
		}
		if payload, err := json.Marshal(result); err == nil {
			if _, err := storage.UploadResultJSON(r.Context(), claims.UserID, result.SourceFile, payload); err != nil {
				log.Printf("Warning: failed to store result for %s: %v", result.SourceFile, err)
			}
		}
	}

	if err := db.SaveRecord(r.Context(), rec); err != nil {
		log.Printf("Warning: failed to save record for %s: %v", result.SourceFile, err)
	}
}

// GetRecords returns the caller's recent extraction records
func (h *Handler) GetRecords(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	records, err := db.GetRecords(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, `{"error":"failed to fetch records"}`, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []db.Record{}
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// GetRecord returns one record including the full result document and a
// presigned link to the raw text when storage is available
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	rec, err := db.GetRecordByID(r.Context(), userID, id)
	if err != nil {
		http.Error(w, `{"error":"record not found"}`, http.StatusNotFound)
		return
	}

	if rec.RawTextURL != "" && storage.Client != nil {
		if r.URL.Query().Get("include_text") == "true" {
			if data, err := storage.ReadObject(r.Context(), rec.RawTextURL); err == nil {
				rec.RawText = string(data)
			} else {
				log.Printf("Warning: failed to read stored text for %s: %v", id, err)
			}
		}
		if url, err := storage.GetPresignedURL(r.Context(), rec.RawTextURL); err == nil {
			rec.RawTextURL = url
		}
	}

	json.NewEncoder(w).Encode(rec)
}

// DeleteRecord removes a record and its stored raw text
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]

	rec, err := db.GetRecordByID(r.Context(), userID, id)
	if err != nil {
		http.Error(w, `{"error":"record not found"}`, http.StatusNotFound)
		return
	}

	if rec.RawTextURL != "" && storage.Client != nil {
		if err := storage.DeleteObject(r.Context(), rec.RawTextURL); err != nil {
			log.Printf("Warning: failed to delete stored text for %s: %v", id, err)
		}
	}

	if err := db.DeleteRecord(r.Context(), userID, id); err != nil {
		http.Error(w, `{"error":"failed to delete record"}`, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "deleted", "id": id})
}

// GetStats returns the caller's statistics for the current month
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	stats, err := db.GetMonthlyStats(r.Context(), userID)
	if err != nil {
		http.Error(w, `{"error":"failed to fetch stats"}`, http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(stats)
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	if db.Pool == nil {
		http.Error(w, `{"error":"persistence not available"}`, http.StatusServiceUnavailable)
		return uuid.Nil, false
	}
	claims, ok := auth.GetClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Memory    MemoryStats   `json:"memory"`
	Database  ServiceStatus `json:"database"`
	Storage   ServiceStatus `json:"storage"`
	LLM       string        `json:"llm"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - enhanced for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	dbStatus := ServiceStatus{Available: db.Pool != nil}
	if db.Pool != nil {
		if err := db.Pool.Ping(r.Context()); err != nil {
			dbStatus.Available = false
			dbStatus.Error = err.Error()
		}
	}

	response := HealthResponse{
		Status:    "ok",
		Version:   Version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%d MB", m.Alloc/1024/1024),
			Total:     fmt.Sprintf("%d MB", m.TotalAlloc/1024/1024),
			System:    fmt.Sprintf("%d MB", m.Sys/1024/1024),
		},
		Database: dbStatus,
		Storage:  ServiceStatus{Available: storage.Client != nil},
		LLM:      h.config.LLM.DefaultProvider,
	}

	json.NewEncoder(w).Encode(response)
}
