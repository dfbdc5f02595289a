package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/mmcdole/gofeed"
)

// FeedSpec is a named RSS/Atom feed URL.
type FeedSpec struct {
	Name string
	URL  string
}

// Feeds collects items from RSS/Atom feeds, keeping only entries that
// match the query.
type Feeds struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []FeedSpec
	maxAge time.Duration
}

// NewFeeds creates a new feed adapter. maxAge bounds how far back
// entries are accepted; zero means 7 days.
func NewFeeds(feeds []FeedSpec, maxAge time.Duration) *Feeds {
	if maxAge <= 0 {
		maxAge = 7 * 24 * time.Hour
	}
	return &Feeds{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
		maxAge: maxAge,
	}
}

func (f *Feeds) Name() SourceType { return SourceFeed }

func (f *Feeds) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 10
	}

	var all []Item
	var lastErr error
	for _, feed := range f.feeds {
		items, err := f.searchFeed(ctx, feed, query)
		if err != nil {
			lastErr = err
			continue
		}
		all = append(all, items...)
	}

	// All feeds failing is an adapter failure; a partial read is not.
	if len(all) == 0 && lastErr != nil {
		return nil, lastErr
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *Feeds) searchFeed(ctx context.Context, feed FeedSpec, query string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create feed request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "tracklens/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := f.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed.Name, err)
	}

	cutoff := time.Now().Add(-f.maxAge)
	var items []Item
	for _, entry := range parsed.Items {
		published := time.Time{}
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		if !published.IsZero() && published.Before(cutoff) {
			continue
		}

		if !MatchesQuery(query, entry.Title+" "+entry.Description) {
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}

		item := Item{
			Title:       entry.Title,
			URL:         link,
			Snippet:     truncate(stripTags(entry.Description), 500),
			Sources:     []string{string(SourceFeed)},
			PublishedAt: published,
			Details: Details{Feed: &FeedDetails{
				FeedName:   feed.Name,
				GUID:       entry.GUID,
				Categories: entry.Categories,
			}},
		}
		if entry.Image != nil && entry.Image.URL != "" {
			item.Images = []string{entry.Image.URL}
		}
		items = append(items, item)
	}
	return items, nil
}

// MatchesQuery reports whether text contains at least one significant
// token of the query, case-insensitively. Queries with no significant
// tokens match everything.
func MatchesQuery(query, text string) bool {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, t := range tokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

var queryStopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"in": true, "on": true, "at": true, "to": true, "for": true,
	"of": true, "with": true, "by": true, "from": true, "about": true,
	"new": true, "track": true, "latest": true,
}

func queryTokens(query string) []string {
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	var tokens []string
	for _, w := range words {
		if len(w) >= 2 && !queryStopwords[w] {
			tokens = append(tokens, w)
		}
	}
	return tokens
}

// stripTags removes crude HTML markup that feeds often embed in
// descriptions. Good enough for snippets; not a sanitizer.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
