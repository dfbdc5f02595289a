package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/elonfeng/tracklens/internal/store"
)

// ResultID derives a stable identifier from the item's URL, falling
// back to the title for URL-less items.
func ResultID(url, title string) string {
	key := NormalizeURL(url)
	if key == "" {
		key = normalizeTitle(title)
	}
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:16])
}

// Format projects ranked, enriched items into persisted TrackerResult
// records. Pure transformation; ordering is preserved.
func Format(runID, trackerID string, items []Enriched, now time.Time) []store.TrackerResult {
	results := make([]store.TrackerResult, 0, len(items))
	for _, en := range items {
		summary := en.Summary
		if summary == "" {
			summary = en.Snippet
		}
		results = append(results, store.TrackerResult{
			ID:          ResultID(en.URL, en.Title),
			RunID:       runID,
			TrackerID:   trackerID,
			Title:       en.Title,
			Summary:     summary,
			URL:         en.URL,
			Images:      en.Images,
			Sources:     en.Sources,
			Tags:        en.Tags,
			Sentiment:   en.Sentiment,
			Score:       en.Relevance,
			PublishedAt: en.PublishedAt,
			CreatedAt:   now,
		})
	}
	return results
}
