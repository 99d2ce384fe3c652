package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verifactura/invoice-extract-service/api"
	"github.com/verifactura/invoice-extract-service/internal/auth"
	"github.com/verifactura/invoice-extract-service/internal/db"
	"github.com/verifactura/invoice-extract-service/internal/kb"
	"github.com/verifactura/invoice-extract-service/internal/llm"
	"github.com/verifactura/invoice-extract-service/internal/models"
	"github.com/verifactura/invoice-extract-service/internal/pipeline"
	"github.com/verifactura/invoice-extract-service/internal/storage"
	"github.com/verifactura/invoice-extract-service/internal/validate"
)

func main() {
	// Initialize JWT
	if err := auth.Init(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	log.Println("JWT authentication initialized")

	// Initialize database connection pool
	if err := db.Init(); err != nil {
		log.Printf("Warning: Database not available: %v", err)
		log.Println("Running in stateless mode (no persistence)")
	} else {
		defer db.Close()
	}

	// Initialize MinIO storage
	if err := storage.Init(); err != nil {
		log.Printf("Warning: MinIO storage not available: %v", err)
		log.Println("Raw text and results will not be archived")
	} else {
		log.Println("MinIO storage initialized")
	}

	// Load configuration
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Optional collaborators
	var searcher kb.Searcher
	if config.KnowledgeBase.BaseURL != "" {
		searcher = kb.NewClient(config.KnowledgeBase.BaseURL)
		log.Printf("Knowledge base: %s", config.KnowledgeBase.BaseURL)
	}

	provider, err := llm.NewProvider(config.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM provider: %v", err)
	}
	if provider != nil {
		log.Printf("LLM field completion: %s", provider.Name())
	}

	validator := validate.NewEngine(config.Validation, searcher, time.Now)
	pipe := pipeline.New(config, validator, llm.NewCompleter(provider))

	// Create API handler
	handler := api.NewHandler(config, pipe)
	router := handler.SetupRoutes()

	// Add login endpoint
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// Wrap router with JWT middleware (skips /health and /api/login)
	protectedRouter := auth.JWTMiddleware(router)

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Printf("Starting Invoice Extract Service v%s on %s", api.Version, addr)
	log.Printf("Database: %v", db.Pool != nil)
	log.Printf("Storage: %v", storage.Client != nil)
	log.Printf("Endpoints:")
	log.Printf("  POST http://%s/api/login           - Authenticate", addr)
	log.Printf("  POST http://%s/api/extract         - Extract and validate (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/records         - List extraction records (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/record/{id}     - Get single record (requires JWT)", addr)
	log.Printf("  DELETE http://%s/api/record/{id}   - Delete record (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/stats           - Get monthly stats (requires JWT)", addr)
	log.Printf("  GET  http://%s/health              - Health check", addr)

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func loadConfig(path string) (*models.Config, error) {
	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.LLM.Gemini.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.Ollama.BaseURL = baseURL
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = provider
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.LLM.OpenAI.Model = model
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.LLM.Gemini.Model = model
	}
	if baseURL := os.Getenv("KB_BASE_URL"); baseURL != "" {
		config.KnowledgeBase.BaseURL = baseURL
	}

	config.ApplyDefaults()
	return &config, nil
}
