// Package pipeline wires normalization, extraction, aggregation and
// validation into the per-document transformation. Process always
// returns a complete result: an unreadable document yields a record
// full of nulls and a failing validation report, never an error that
// would take down a batch.
package pipeline

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/verifactura/invoice-extract-service/internal/extract"
	"github.com/verifactura/invoice-extract-service/internal/llm"
	"github.com/verifactura/invoice-extract-service/internal/models"
	"github.com/verifactura/invoice-extract-service/internal/textnorm"
	"github.com/verifactura/invoice-extract-service/internal/validate"
)

// Pipeline is safe for concurrent use: every component it holds is
// stateless across documents.
type Pipeline struct {
	fields    *extract.Engine
	items     *extract.ItemParser
	validator *validate.Engine
	completer *llm.Completer // nil disables field completion
	now       func() time.Time
}

// New assembles a pipeline from configuration. completer may be nil;
// field completion is then skipped.
func New(cfg *models.Config, validator *validate.Engine, completer *llm.Completer) *Pipeline {
	return &Pipeline{
		fields:    extract.NewEngine(time.Now),
		items:     extract.NewItemParser(cfg.Items),
		validator: validator,
		completer: completer,
		now:       time.Now,
	}
}

// Process runs the full transformation for one document.
func (p *Pipeline) Process(ctx context.Context, rawText, sourceID string) *models.ProcessResult {
	start := p.now()

	normalized := textnorm.Normalize(rawText)
	fields := p.fields.Extract(normalized)
	items := p.items.Parse(textnorm.Lines(rawText))
	rec := extract.Aggregate(fields, items, sourceID, start)

	if p.completer != nil {
		filled, err := p.completer.Fill(ctx, rec, normalized)
		if err != nil {
			log.Printf("llm completion skipped for %s: %v", sourceID, err)
		}
		for _, f := range filled {
			rec.Assumptions = append(rec.Assumptions, "field "+f+" completed by language model")
		}
	}

	report := p.validator.Validate(ctx, rec)
	log.Printf("processed %s: %s, confidence %.2f", sourceID, extract.Summary(rec), report.ConfidenceScore)

	return &models.ProcessResult{
		Record:     rec,
		Validation: report,
		SourceFile: sourceID,
		Duration:   p.now().Sub(start).Seconds(),
	}
}

// Document is one unit of batch input.
type Document struct {
	Text     string
	SourceID string
}

// BatchSummary counts outcomes across one batch run.
type BatchSummary struct {
	Processed    int `json:"processed"`
	Valid        int `json:"valid"`
	WithWarnings int `json:"with_warnings"`
	NeedsReview  int `json:"needs_review"`
}

// ProcessBatch fans documents out over a fixed worker pool. Results come
// back in input order; workers write to disjoint slots so no locking is
// needed beyond the index channel.
func (p *Pipeline) ProcessBatch(ctx context.Context, docs []Document, workers int) ([]*models.ProcessResult, BatchSummary) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(docs) {
		workers = len(docs)
	}

	results := make([]*models.ProcessResult, len(docs))
	indexes := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = p.Process(ctx, docs[i].Text, docs[i].SourceID)
			}
		}()
	}

feed:
	for i := range docs {
		select {
		case indexes <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(indexes)
	wg.Wait()

	var summary BatchSummary
	for _, r := range results {
		if r == nil {
			continue
		}
		summary.Processed++
		switch r.Validation.Recommendation {
		case models.RecommendationReady:
			summary.Valid++
		case models.RecommendationWithWarnings:
			summary.WithWarnings++
		default:
			summary.NeedsReview++
		}
	}
	return results, summary
}
