package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Web wraps a broad-crawl web search API behind the Adapter interface.
type Web struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewWeb creates a new web search adapter.
func NewWeb(baseURL, apiKey string) *Web {
	return &Web{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

func (w *Web) Name() SourceType { return SourceWeb }

type webResult struct {
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Snippet     string  `json:"snippet"`
	ImageURL    string  `json:"image_url"`
	DisplayLink string  `json:"display_link"`
	Score       float64 `json:"score"`
	Published   string  `json:"published"`
}

func (w *Web) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create web search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("web search status %d", resp.StatusCode)
	}

	var payload struct {
		Results []webResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode web search response: %w", err)
	}

	items := make([]Item, 0, len(payload.Results))
	for i, r := range payload.Results {
		if r.URL == "" && r.Title == "" {
			continue
		}

		item := Item{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: truncate(r.Snippet, 500),
			Sources: []string{string(SourceWeb)},
			Score:   r.Score,
			Details: Details{Web: &WebDetails{Rank: i + 1, DisplayLink: r.DisplayLink}},
		}
		if r.ImageURL != "" {
			item.Images = []string{r.ImageURL}
		}
		if r.Published != "" {
			if t, err := time.Parse(time.RFC3339, r.Published); err == nil {
				item.PublishedAt = t.UTC()
			}
		}
		items = append(items, item)
	}
	return items, nil
}
