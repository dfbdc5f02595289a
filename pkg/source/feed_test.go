package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rssServer(t *testing.T, items string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprintf(w, `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Test Feed</title>%s</channel></rss>`, items)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func rssItem(title, link, desc string, published time.Time) string {
	return fmt.Sprintf(`<item><title>%s</title><link>%s</link><description>%s</description><guid>%s</guid><pubDate>%s</pubDate></item>`,
		title, link, desc, link, published.Format(time.RFC1123Z))
}

func TestFeedsSearchMatchesQuery(t *testing.T) {
	now := time.Now()
	srv := rssServer(t,
		rssItem("New AI assistant ships", "https://example.com/ai", "an <b>assistant</b> launch", now.Add(-time.Hour))+
			rssItem("Gardening tips", "https://example.com/garden", "nothing relevant", now.Add(-2*time.Hour)))

	feeds := NewFeeds([]FeedSpec{{Name: "tech", URL: srv.URL}}, 0)
	items, err := feeds.Search(context.Background(), "AI assistant", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "New AI assistant ships", item.Title)
	assert.Equal(t, "an assistant launch", item.Snippet, "snippets have tags stripped")
	assert.Equal(t, []string{"feed"}, item.Sources)
	require.NotNil(t, item.Details.Feed)
	assert.Equal(t, "tech", item.Details.Feed.FeedName)
	assert.Equal(t, "https://example.com/ai", item.Details.Feed.GUID)
}

func TestFeedsSearchSkipsStaleEntries(t *testing.T) {
	now := time.Now()
	srv := rssServer(t,
		rssItem("Fresh AI news", "https://example.com/fresh", "today", now.Add(-time.Hour))+
			rssItem("Ancient AI news", "https://example.com/old", "last month", now.Add(-30*24*time.Hour)))

	feeds := NewFeeds([]FeedSpec{{Name: "tech", URL: srv.URL}}, 24*time.Hour)
	items, err := feeds.Search(context.Background(), "AI", 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Fresh AI news", items[0].Title)
}

func TestFeedsPartialFailureIsNotFatal(t *testing.T) {
	good := rssServer(t, rssItem("AI update", "https://example.com/up", "news", time.Now()))
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	feeds := NewFeeds([]FeedSpec{
		{Name: "broken", URL: bad.URL},
		{Name: "good", URL: good.URL},
	}, 0)
	items, err := feeds.Search(context.Background(), "AI", 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestFeedsAllFeedsFailing(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	feeds := NewFeeds([]FeedSpec{{Name: "broken", URL: bad.URL}}, 0)
	_, err := feeds.Search(context.Background(), "AI", 10)
	assert.Error(t, err)
}

func TestMatchesQuery(t *testing.T) {
	cases := []struct {
		name  string
		query string
		text  string
		want  bool
	}{
		{"token match", "AI assistant", "a new assistant was released", true},
		{"case insensitive", "RUST", "rust 1.90 is out", true},
		{"no match", "quantum computing", "gardening for beginners", false},
		{"stopwords only matches everything", "the new latest", "anything at all", true},
		{"empty query matches everything", "", "whatever", true},
		{"short tokens ignored", "a b c", "unrelated text", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MatchesQuery(tc.query, tc.text))
		})
	}
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "hello world", stripTags(`<p>hello <a href="x">world</a></p>`))
	assert.Equal(t, "plain", stripTags("plain"))
	assert.Equal(t, "", stripTags("<br/>"))
}
