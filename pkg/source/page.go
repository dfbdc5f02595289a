package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PageSpec describes one listing page to scrape and the CSS selectors
// that locate items on it.
type PageSpec struct {
	Name         string
	URL          string
	ItemSelector string
	Title        string // selector relative to item; text content
	Link         string // selector relative to item; href attribute
	Blurb        string // selector relative to item; optional
	Image        string // selector relative to item; src attribute, optional
}

// Pages scrapes configured HTML listing pages and keeps entries
// matching the query.
type Pages struct {
	client *http.Client
	pages  []PageSpec
}

// NewPages creates a new page-scraping adapter.
func NewPages(pages []PageSpec) *Pages {
	return &Pages{
		client: &http.Client{Timeout: 30 * time.Second},
		pages:  pages,
	}
}

func (p *Pages) Name() SourceType { return SourcePage }

func (p *Pages) Search(ctx context.Context, query string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = 10
	}

	var all []Item
	var lastErr error
	for _, page := range p.pages {
		items, err := p.scrapePage(ctx, page, query)
		if err != nil {
			lastErr = err
			continue
		}
		all = append(all, items...)
	}

	if len(all) == 0 && lastErr != nil {
		return nil, lastErr
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (p *Pages) scrapePage(ctx context.Context, page PageSpec, query string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create page request %s: %w", page.Name, err)
	}
	req.Header.Set("User-Agent", "tracklens/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", page.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page %s status %d", page.Name, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %w", page.Name, err)
	}

	base, _ := url.Parse(page.URL)

	var items []Item
	doc.Find(page.ItemSelector).Each(func(_ int, sel *goquery.Selection) {
		title := strings.TrimSpace(sel.Find(page.Title).First().Text())
		link, _ := sel.Find(page.Link).First().Attr("href")
		if title == "" || link == "" {
			return
		}
		link = resolveURL(base, link)

		blurb := ""
		if page.Blurb != "" {
			blurb = strings.TrimSpace(sel.Find(page.Blurb).First().Text())
		}

		if !MatchesQuery(query, title+" "+blurb) {
			return
		}

		item := Item{
			Title:   title,
			URL:     link,
			Snippet: truncate(blurb, 500),
			Sources: []string{string(SourcePage)},
			Details: Details{Page: &PageDetails{PageName: page.Name, PageURL: page.URL}},
		}
		if page.Image != "" {
			if src, ok := sel.Find(page.Image).First().Attr("src"); ok && src != "" {
				item.Images = []string{resolveURL(base, src)}
			}
		}
		items = append(items, item)
	})
	return items, nil
}

func resolveURL(base *url.URL, href string) string {
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
