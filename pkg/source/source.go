package source

import (
	"context"
	"time"
)

// SourceType identifies which discovery capability an item came from.
type SourceType string

const (
	SourceWeb    SourceType = "web"
	SourceNeural SourceType = "neural"
	SourceFeed   SourceType = "feed"
	SourcePage   SourceType = "page"
)

// AllSourceTypes returns all known source types.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceWeb, SourceNeural, SourceFeed, SourcePage}
}

// KnownSource reports whether name is a recognized source type.
func KnownSource(name string) bool {
	for _, st := range AllSourceTypes() {
		if string(st) == name {
			return true
		}
	}
	return false
}

// Item is the standardized candidate shape every adapter must produce.
// Sources and Images grow when the deduplicator merges items collected
// from different adapters; Engagement counters are summed on merge.
type Item struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Snippet     string    `json:"snippet"`
	Images      []string  `json:"images,omitempty"`
	Sources     []string  `json:"sources"`
	Engagement  int       `json:"engagement"`
	Score       float64   `json:"score"`
	PublishedAt time.Time `json:"published_at"`
	Details     Details   `json:"details,omitempty"`
}

// Details is the closed set of adapter-specific payloads. At most one
// field is non-nil, matching the item's originating source type.
type Details struct {
	Web    *WebDetails    `json:"web,omitempty"`
	Neural *NeuralDetails `json:"neural,omitempty"`
	Feed   *FeedDetails   `json:"feed,omitempty"`
	Page   *PageDetails   `json:"page,omitempty"`
}

// WebDetails carries fields specific to the broad web search capability.
type WebDetails struct {
	Rank        int    `json:"rank"`
	DisplayLink string `json:"display_link,omitempty"`
}

// NeuralDetails carries fields specific to the semantic search capability.
type NeuralDetails struct {
	DocumentID string  `json:"document_id,omitempty"`
	Similarity float64 `json:"similarity"`
}

// FeedDetails carries fields specific to RSS/Atom feed entries.
type FeedDetails struct {
	FeedName   string   `json:"feed_name"`
	GUID       string   `json:"guid,omitempty"`
	Categories []string `json:"categories,omitempty"`
}

// PageDetails carries fields specific to scraped listing pages.
type PageDetails struct {
	PageName string `json:"page_name"`
	PageURL  string `json:"page_url"`
}

// Adapter is the interface every content-discovery provider wrapper
// must implement. Search returns normalized candidates for one query.
// Implementations bound their own external-call timeouts; a failed
// call returns an error which the pipeline treats as zero results.
type Adapter interface {
	Name() SourceType
	Search(ctx context.Context, query string, limit int) ([]Item, error)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
