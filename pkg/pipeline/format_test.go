package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/tracklens/pkg/source"
)

func TestResultIDStableAcrossURLVariants(t *testing.T) {
	a := ResultID("https://Example.com/post?utm_source=x", "Post")
	b := ResultID("https://example.com/post/", "Different Title")
	assert.Equal(t, a, b, "identity follows the normalized url, not the title")

	c := ResultID("https://example.com/other", "Post")
	assert.NotEqual(t, a, c)
}

func TestResultIDFallsBackToTitle(t *testing.T) {
	a := ResultID("", "  Launch   Week ")
	b := ResultID("", "launch week")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
}

func TestFormatProjectsFields(t *testing.T) {
	now := time.Now().UTC()
	published := now.Add(-time.Hour)
	items := []Enriched{
		{
			Item: source.Item{
				Title:       "Tool",
				URL:         "https://example.com/tool",
				Snippet:     "raw snippet",
				Images:      []string{"https://example.com/tool.png"},
				Sources:     []string{"web", "feed"},
				PublishedAt: published,
			},
			Relevance: 7.5,
			Summary:   "an enriched summary",
			Tags:      []string{"launch"},
			Sentiment: "positive",
		},
		{
			Item: source.Item{Title: "Bare", URL: "https://example.com/bare", Snippet: "only snippet"},
		},
	}

	results := Format("run1", "tracker1", items, now)
	require.Len(t, results, 2)

	first := results[0]
	assert.Equal(t, "run1", first.RunID)
	assert.Equal(t, "tracker1", first.TrackerID)
	assert.Equal(t, "an enriched summary", first.Summary)
	assert.Equal(t, []string{"web", "feed"}, first.Sources)
	assert.Equal(t, 7.5, first.Score)
	assert.Equal(t, published, first.PublishedAt)
	assert.Equal(t, now, first.CreatedAt)

	assert.Equal(t, "only snippet", results[1].Summary, "summary falls back to the snippet")
	assert.Zero(t, results[1].Score)
}
