package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<!DOCTYPE html>
<html><body>
<div class="launches">
  <article class="launch">
    <h3 class="name">Acme AI Writer</h3>
    <a class="link" href="/posts/acme-ai-writer">view</a>
    <p class="tagline">Write emails with AI</p>
    <img class="thumb" src="/img/acme.png">
  </article>
  <article class="launch">
    <h3 class="name">PlantPal</h3>
    <a class="link" href="https://other.example.com/plantpal">view</a>
    <p class="tagline">Water your plants on time</p>
  </article>
  <article class="launch">
    <h3 class="name"></h3>
    <a class="link" href="/posts/nameless">view</a>
  </article>
</div>
</body></html>`

func pageSpec(url string) PageSpec {
	return PageSpec{
		Name:         "launches",
		URL:          url,
		ItemSelector: "article.launch",
		Title:        "h3.name",
		Link:         "a.link",
		Blurb:        "p.tagline",
		Image:        "img.thumb",
	}
}

func TestPagesScrape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	pages := NewPages([]PageSpec{pageSpec(srv.URL)})
	items, err := pages.Search(context.Background(), "AI", 10)
	require.NoError(t, err)
	require.Len(t, items, 1, "only the AI entry matches; the titleless one is dropped")

	item := items[0]
	assert.Equal(t, "Acme AI Writer", item.Title)
	assert.Equal(t, srv.URL+"/posts/acme-ai-writer", item.URL, "relative links resolve against the page")
	assert.Equal(t, "Write emails with AI", item.Snippet)
	assert.Equal(t, []string{srv.URL + "/img/acme.png"}, item.Images)
	assert.Equal(t, []string{"page"}, item.Sources)
	require.NotNil(t, item.Details.Page)
	assert.Equal(t, "launches", item.Details.Page.PageName)
}

func TestPagesScrapeQueryMatchesEverythingWhenBlank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	pages := NewPages([]PageSpec{pageSpec(srv.URL)})
	items, err := pages.Search(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	// Absolute links are kept as-is.
	assert.Equal(t, "https://other.example.com/plantpal", items[1].URL)
}

func TestPagesScrapeRespectsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	pages := NewPages([]PageSpec{pageSpec(srv.URL)})
	items, err := pages.Search(context.Background(), "", 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestPagesAllPagesFailing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	pages := NewPages([]PageSpec{pageSpec(srv.URL)})
	_, err := pages.Search(context.Background(), "anything", 10)
	assert.ErrorContains(t, err, "status 403")
}
