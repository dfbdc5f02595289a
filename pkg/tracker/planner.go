// Package tracker turns a free-text monitoring prompt into the
// structured configuration a tracker runs with.
package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/elonfeng/tracklens/internal/store"
	"github.com/elonfeng/tracklens/pkg/llm"
	"github.com/elonfeng/tracklens/pkg/source"
)

// ErrEmptyPrompt is returned for blank prompts; no tracker can be
// created from one.
var ErrEmptyPrompt = errors.New("empty tracker prompt")

const maxQueries = 5

const planSystem = `You are a planner for a web monitoring service. Given what a user wants to track, produce search queries and pick which source capabilities to use.

Available sources:
- "web": broad web search
- "neural": semantic search, best for conceptual or research topics
- "feed": RSS/Atom news feeds
- "page": curated listing pages (product launch sites, leaderboards)

Respond with ONLY a JSON object:
{"queries": ["..."], "sources": ["web", ...]}

Use 1-5 focused queries. Include only sources that fit the topic.`

// Planner derives a TrackerConfig from a natural-language prompt via
// one completion call, with a heuristic fallback when the model's
// output cannot be used.
type Planner struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewPlanner creates a planner. A nil completer always uses the
// fallback plan.
func NewPlanner(completer llm.Completer, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{completer: completer, logger: logger}
}

// Plan builds a structured configuration for the prompt. Blank
// prompts are a configuration error. Model failures and malformed
// output degrade to the fallback plan rather than failing creation.
func (p *Planner) Plan(ctx context.Context, prompt string) (store.TrackerConfig, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return store.TrackerConfig{}, ErrEmptyPrompt
	}

	if p.completer == nil {
		return fallbackPlan(prompt), nil
	}

	raw, err := p.completer.Complete(ctx, planSystem, "Track this: "+prompt)
	if err != nil {
		p.logger.Warn("plan completion failed, using fallback", zap.Error(err))
		return fallbackPlan(prompt), nil
	}

	var parsed struct {
		Queries []string `json:"queries"`
		Sources []string `json:"sources"`
	}
	if err := json.Unmarshal([]byte(llm.StripFences(raw)), &parsed); err != nil {
		p.logger.Warn("plan response unparseable, using fallback", zap.Error(err))
		return fallbackPlan(prompt), nil
	}

	cfg := sanitize(parsed.Queries, parsed.Sources)
	if len(cfg.Queries) == 0 {
		p.logger.Warn("plan produced no usable queries, using fallback")
		return fallbackPlan(prompt), nil
	}
	return cfg, nil
}

// fallbackPlan uses the raw prompt as a single query against every
// known source. Availability over completeness: a degraded plan still
// lets the tracker run.
func fallbackPlan(prompt string) store.TrackerConfig {
	sources := make([]string, 0, len(source.AllSourceTypes()))
	for _, st := range source.AllSourceTypes() {
		sources = append(sources, string(st))
	}
	return store.TrackerConfig{
		Queries: []string{prompt},
		Sources: sources,
	}
}

// sanitize drops blank queries and unknown source names and bounds
// the query count.
func sanitize(queries, sources []string) store.TrackerConfig {
	var cfg store.TrackerConfig
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		cfg.Queries = append(cfg.Queries, q)
		if len(cfg.Queries) == maxQueries {
			break
		}
	}
	for _, s := range sources {
		s = strings.ToLower(strings.TrimSpace(s))
		if source.KnownSource(s) {
			cfg.Sources = append(cfg.Sources, s)
		}
	}
	return cfg
}

// Describe renders the config for CLI display.
func Describe(cfg store.TrackerConfig) string {
	return fmt.Sprintf("queries: %s | sources: %s",
		strings.Join(cfg.Queries, "; "), strings.Join(cfg.Sources, ", "))
}
