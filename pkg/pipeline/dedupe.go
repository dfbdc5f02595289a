package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/elonfeng/tracklens/pkg/source"
)

// Signature computes the dedup key for an item from its normalized
// title and URL. Items with empty titles return "" and are never
// merged; requiring exact equality keeps false merges rare at the cost
// of missed duplicates, which is the intended trade.
func Signature(it source.Item) string {
	title := normalizeTitle(it.Title)
	if title == "" {
		return ""
	}
	h := sha256.Sum256([]byte(title + "\x00" + NormalizeURL(it.URL)))
	return hex.EncodeToString(h[:])
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// trackingParams are stripped before comparing URLs; they vary per
// referrer without changing the destination.
var trackingParams = map[string]bool{
	"utm_source": true, "utm_medium": true, "utm_campaign": true,
	"utm_term": true, "utm_content": true, "ref": true, "fbclid": true,
	"gclid": true,
}

// NormalizeURL lowercases scheme and host, drops fragments and known
// tracking parameters, and trims a trailing slash.
func NormalizeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for param := range trackingParams {
		q.Del(param)
	}
	u.RawQuery = q.Encode()

	return strings.TrimSuffix(u.String(), "/")
}

// Deduplicate merges items sharing a signature. It never drops an
// item: every input either starts a new output item or is merged into
// an existing one. Output preserves first-seen order.
func Deduplicate(items []source.Item) []source.Item {
	out := make([]source.Item, 0, len(items))
	index := make(map[string]int)

	for _, it := range items {
		sig := Signature(it)
		if sig == "" {
			out = append(out, it)
			continue
		}

		if i, ok := index[sig]; ok {
			out[i] = merge(out[i], it)
			continue
		}
		index[sig] = len(out)
		out = append(out, it)
	}
	return out
}

// merge folds dup into base: image and source unions, engagement
// summed, earliest known publish date, longest snippet.
func merge(base, dup source.Item) source.Item {
	base.Images = unionStrings(base.Images, dup.Images)
	base.Sources = unionStrings(base.Sources, dup.Sources)
	base.Engagement += dup.Engagement

	if base.Score < dup.Score {
		base.Score = dup.Score
	}
	if len(dup.Snippet) > len(base.Snippet) {
		base.Snippet = dup.Snippet
	}
	if base.PublishedAt.IsZero() || (!dup.PublishedAt.IsZero() && dup.PublishedAt.Before(base.PublishedAt)) {
		base.PublishedAt = dup.PublishedAt
	}
	if base.URL == "" {
		base.URL = dup.URL
	}
	return base
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
