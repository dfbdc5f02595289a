package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Neural wraps a semantic/neural search API behind the Adapter interface.
type Neural struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewNeural creates a new neural search adapter.
func NewNeural(baseURL, apiKey string) *Neural {
	return &Neural{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (n *Neural) Name() SourceType { return SourceNeural }

type neuralResult struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	URL           string  `json:"url"`
	Text          string  `json:"text"`
	ImageURL      string  `json:"image_url"`
	Score         float64 `json:"score"`
	PublishedDate string  `json:"published_date"`
}

func (n *Neural) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 10
	}

	body, err := json.Marshal(map[string]any{
		"query":       query,
		"num_results": limit,
		"contents":    map[string]any{"text": true},
	})
	if err != nil {
		return nil, fmt.Errorf("encode neural search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create neural search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("x-api-key", n.apiKey)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("neural search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("neural search status %d", resp.StatusCode)
	}

	var payload struct {
		Results []neuralResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode neural search response: %w", err)
	}

	items := make([]Item, 0, len(payload.Results))
	for _, r := range payload.Results {
		if r.URL == "" && r.Title == "" {
			continue
		}

		item := Item{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: truncate(r.Text, 500),
			Sources: []string{string(SourceNeural)},
			Score:   r.Score,
			Details: Details{Neural: &NeuralDetails{DocumentID: r.ID, Similarity: r.Score}},
		}
		if r.ImageURL != "" {
			item.Images = []string{r.ImageURL}
		}
		if r.PublishedDate != "" {
			if t, err := time.Parse(time.RFC3339, r.PublishedDate); err == nil {
				item.PublishedAt = t.UTC()
			} else if t, err := time.Parse("2006-01-02", r.PublishedDate); err == nil {
				item.PublishedAt = t.UTC()
			}
		}
		items = append(items, item)
	}
	return items, nil
}
