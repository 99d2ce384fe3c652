// Batch extraction over a directory of OCR text files. Results are
// written one JSON file per input next to a summary, with documents
// processed concurrently by a fixed worker pool.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verifactura/invoice-extract-service/internal/kb"
	"github.com/verifactura/invoice-extract-service/internal/llm"
	"github.com/verifactura/invoice-extract-service/internal/models"
	"github.com/verifactura/invoice-extract-service/internal/pipeline"
	"github.com/verifactura/invoice-extract-service/internal/validate"
)

func main() {
	inputDir := flag.String("input", "", "directory containing .txt OCR files")
	outputDir := flag.String("output", "results", "directory for result JSON files")
	workers := flag.Int("workers", 4, "number of concurrent workers")
	kbURL := flag.String("kb", "", "knowledge base URL (optional)")
	provider := flag.String("llm", "", "LLM provider for field completion (optional: openai, gemini, ollama)")
	flag.Parse()

	if *inputDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	docs, err := loadDocuments(*inputDir)
	if err != nil {
		log.Fatalf("Failed to read input: %v", err)
	}
	if len(docs) == 0 {
		log.Fatalf("No .txt files found in %s", *inputDir)
	}
	log.Printf("Processing %d documents with %d workers", len(docs), *workers)

	config := &models.Config{}
	config.LLM.DefaultProvider = *provider
	config.LLM.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	config.LLM.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	config.LLM.Ollama.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	config.ApplyDefaults()

	var searcher kb.Searcher
	if *kbURL != "" {
		searcher = kb.NewClient(*kbURL)
	}

	llmProvider, err := llm.NewProvider(config.LLM)
	if err != nil {
		log.Fatalf("Failed to initialize LLM provider: %v", err)
	}

	validator := validate.NewEngine(config.Validation, searcher, time.Now)
	pipe := pipeline.New(config, validator, llm.NewCompleter(llmProvider))

	start := time.Now()
	results, summary := pipe.ProcessBatch(context.Background(), docs, *workers)

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}
	for _, res := range results {
		if res == nil {
			continue
		}
		if err := writeResult(*outputDir, res.SourceFile, res); err != nil {
			log.Printf("Warning: failed to write result for %s: %v", res.SourceFile, err)
		}
	}
	if err := writeResult(*outputDir, "_summary", summary); err != nil {
		log.Printf("Warning: failed to write summary: %v", err)
	}

	log.Printf("Done in %s: %d processed, %d ready, %d with warnings, %d need review",
		time.Since(start).Round(time.Millisecond),
		summary.Processed, summary.Valid, summary.WithWarnings, summary.NeedsReview)
}

func loadDocuments(dir string) ([]pipeline.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var docs []pipeline.Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		docs = append(docs, pipeline.Document{
			Text:     string(data),
			SourceID: strings.TrimSuffix(entry.Name(), ".txt"),
		})
	}
	return docs, nil
}

func writeResult(dir, name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name+".json"), data, 0o644)
}
