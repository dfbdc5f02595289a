package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/elonfeng/tracklens/internal/metrics"
	"github.com/elonfeng/tracklens/pkg/llm"
	"github.com/elonfeng/tracklens/pkg/source"
)

const defaultBatchSize = 10

const enrichSystem = `You are a content analyst for a web monitoring service. Given a tracking goal and a numbered list of collected items, evaluate each item's relevance to the goal.

For each item produce:
1. "id": the item's number from the list
2. "score" (0-10): relevance to the tracking goal (10 = exactly on topic and significant, 0 = unrelated noise)
3. "summary": one or two sentences rewriting the item clearly and concisely
4. "tags": up to 3 short topical tags
5. "sentiment": "positive", "negative" or "neutral"

Respond with ONLY a JSON array, one element per item, no other text.
Example: [{"id":1,"score":8,"summary":"...","tags":["launch"],"sentiment":"positive"}]`

// Enriched pairs a deduplicated item with its language-model
// annotations. Relevance stays zero when enrichment was skipped or
// fell back.
type Enriched struct {
	source.Item
	Relevance float64  `json:"relevance"`
	Summary   string   `json:"summary,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Sentiment string   `json:"sentiment,omitempty"`
}

// Enricher scores and summarizes items via a completion capability in
// bounded batches. A nil completer disables enrichment entirely.
type Enricher struct {
	completer llm.Completer
	batchSize int
	logger    *zap.Logger
}

// NewEnricher creates an enricher. batchSize <= 0 uses the default.
func NewEnricher(completer llm.Completer, batchSize int, logger *zap.Logger) *Enricher {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{completer: completer, batchSize: batchSize, logger: logger}
}

type enrichResult struct {
	ID        int      `json:"id"`
	Score     float64  `json:"score"`
	Summary   string   `json:"summary"`
	Tags      []string `json:"tags"`
	Sentiment string   `json:"sentiment"`
}

// Enrich annotates items against the tracker prompt. It never fails
// the run: any batch whose completion call or JSON parse fails is
// passed through unchanged.
func (e *Enricher) Enrich(ctx context.Context, prompt string, items []source.Item) []Enriched {
	out := make([]Enriched, len(items))
	for i, it := range items {
		out[i] = Enriched{Item: it}
	}
	if e.completer == nil || len(items) == 0 {
		return out
	}

	for start := 0; start < len(out); start += e.batchSize {
		end := start + e.batchSize
		if end > len(out) {
			end = len(out)
		}
		e.enrichBatch(ctx, prompt, out[start:end])
	}
	return out
}

func (e *Enricher) enrichBatch(ctx context.Context, prompt string, batch []Enriched) {
	var lines []string
	for i, en := range batch {
		line := fmt.Sprintf("%d. Title: %s", i+1, en.Title)
		if en.Snippet != "" {
			line += " | Text: " + en.Snippet
		}
		if en.URL != "" {
			line += " | URL: " + en.URL
		}
		lines = append(lines, line)
	}

	user := fmt.Sprintf("Tracking goal: %s\n\nItems:\n%s", prompt, strings.Join(lines, "\n"))

	raw, err := e.completer.Complete(ctx, enrichSystem, user)
	if err != nil {
		metrics.EnrichFallbacksTotal.Inc()
		e.logger.Warn("enrichment call failed, passing items through",
			zap.Int("batch_size", len(batch)), zap.Error(err))
		return
	}

	var results []enrichResult
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &results); err != nil {
		metrics.EnrichFallbacksTotal.Inc()
		e.logger.Warn("enrichment response unparseable, passing items through",
			zap.Int("batch_size", len(batch)), zap.Error(err))
		return
	}

	for _, r := range results {
		idx := r.ID - 1
		if idx < 0 || idx >= len(batch) {
			continue
		}
		batch[idx].Relevance = clampScore(r.Score)
		batch[idx].Summary = r.Summary
		batch[idx].Tags = r.Tags
		batch[idx].Sentiment = r.Sentiment
	}
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}
