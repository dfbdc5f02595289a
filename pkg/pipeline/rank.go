package pipeline

import (
	"sort"
)

// Ranker orders enriched items for presentation. The order is total
// and deterministic: media presence, then relevance, then recency,
// then a fixed bonus for trusted sources; remaining ties keep input
// order.
type Ranker struct {
	trusted map[string]bool
}

// NewRanker creates a ranker. trusted names sources whose items win
// ties against untrusted ones.
func NewRanker(trusted []string) *Ranker {
	m := make(map[string]bool, len(trusted))
	for _, s := range trusted {
		m[s] = true
	}
	return &Ranker{trusted: m}
}

// Rank returns a new slice ordered for display. The input is not
// modified.
func (r *Ranker) Rank(items []Enriched) []Enriched {
	out := make([]Enriched, len(items))
	copy(out, items)

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]

		aMedia, bMedia := len(a.Images) > 0, len(b.Images) > 0
		if aMedia != bMedia {
			return aMedia
		}

		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}

		// Newer first; unknown dates sort last.
		if !a.PublishedAt.Equal(b.PublishedAt) {
			if a.PublishedAt.IsZero() {
				return false
			}
			if b.PublishedAt.IsZero() {
				return true
			}
			return a.PublishedAt.After(b.PublishedAt)
		}

		aTrust, bTrust := r.trustedItem(a), r.trustedItem(b)
		if aTrust != bTrust {
			return aTrust
		}
		return false
	})
	return out
}

func (r *Ranker) trustedItem(e Enriched) bool {
	for _, s := range e.Sources {
		if r.trusted[s] {
			return true
		}
	}
	return false
}
