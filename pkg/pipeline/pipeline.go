// Package pipeline implements the result processing core: collection
// across source adapters, deduplication, enrichment, ranking and
// formatting, driving each TrackerRun through its lifecycle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/tracklens/internal/metrics"
	"github.com/elonfeng/tracklens/internal/store"
	"github.com/elonfeng/tracklens/pkg/source"
)

// ErrInvalidConfig is returned when a tracker's configuration cannot
// produce a run (empty prompt and no queries). No TrackerRun is
// created in that case.
var ErrInvalidConfig = errors.New("invalid tracker configuration")

const defaultPerQueryLimit = 10

// Runner executes the full pipeline for one tracker. All external
// capabilities are injected; the runner owns no timers and no global
// state.
type Runner struct {
	store         store.Store
	adapters      map[source.SourceType]source.Adapter
	enricher      *Enricher
	ranker        *Ranker
	perQueryLimit int
	logger        *zap.Logger
}

// NewRunner wires the pipeline. Adapters are indexed by name; a
// tracker config naming an unknown source simply contributes nothing.
func NewRunner(st store.Store, adapters []source.Adapter, enricher *Enricher, ranker *Ranker, perQueryLimit int, logger *zap.Logger) *Runner {
	if perQueryLimit <= 0 {
		perQueryLimit = defaultPerQueryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[source.SourceType]source.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &Runner{
		store:         st,
		adapters:      byName,
		enricher:      enricher,
		ranker:        ranker,
		perQueryLimit: perQueryLimit,
		logger:        logger,
	}
}

// Run executes one tracker run to a terminal status. Partial adapter
// failures and enrichment fallbacks still complete the run; only
// invalid configuration or a persistence failure fails it. Zero
// results is a valid success.
func (r *Runner) Run(ctx context.Context, tr *store.Tracker) (*store.TrackerRun, []store.TrackerResult, error) {
	queries := tr.Config.Queries
	if len(queries) == 0 && tr.Prompt != "" {
		queries = []string{tr.Prompt}
	}
	if len(queries) == 0 {
		return nil, nil, fmt.Errorf("tracker %s has no queries: %w", tr.ID, ErrInvalidConfig)
	}

	adapters := r.selectAdapters(tr.Config.Sources)
	if len(adapters) == 0 {
		return nil, nil, fmt.Errorf("tracker %s names no known sources: %w", tr.ID, ErrInvalidConfig)
	}

	run := &store.TrackerRun{
		ID:        uuid.NewString(),
		TrackerID: tr.ID,
		Status:    store.RunPending,
		StartedAt: time.Now().UTC(),
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, nil, fmt.Errorf("create run: %w", err)
	}

	started := time.Now()
	run.Status = store.RunRunning
	if err := r.store.UpdateRun(ctx, run); err != nil {
		return r.fail(ctx, run, fmt.Errorf("mark run running: %w", err))
	}

	items := r.collect(ctx, adapters, queries)
	items = Deduplicate(items)
	enriched := r.enricher.Enrich(ctx, tr.Prompt, items)
	ranked := r.ranker.Rank(enriched)

	results := Format(run.ID, tr.ID, ranked, time.Now().UTC())
	results = uniqueByID(results)

	if err := r.store.InsertResults(ctx, results); err != nil {
		return r.fail(ctx, run, fmt.Errorf("persist results: %w", err))
	}

	run.Status = store.RunCompleted
	run.FinishedAt = time.Now().UTC()
	if err := r.store.UpdateRun(ctx, run); err != nil {
		return r.fail(ctx, run, fmt.Errorf("mark run completed: %w", err))
	}
	if err := r.store.TouchTracker(ctx, tr.ID, run.FinishedAt); err != nil {
		r.logger.Warn("touch tracker failed", zap.String("tracker", tr.ID), zap.Error(err))
	}

	metrics.RunsTotal.WithLabelValues(string(store.RunCompleted)).Inc()
	metrics.RunDuration.Observe(time.Since(started).Seconds())
	metrics.ResultsPersistedTotal.Add(float64(len(results)))

	r.logger.Info("run completed",
		zap.String("tracker", tr.ID),
		zap.String("run", run.ID),
		zap.Int("results", len(results)))

	return run, results, nil
}

func (r *Runner) fail(ctx context.Context, run *store.TrackerRun, cause error) (*store.TrackerRun, []store.TrackerResult, error) {
	run.Status = store.RunFailed
	run.Error = cause.Error()
	run.FinishedAt = time.Now().UTC()
	if err := r.store.UpdateRun(ctx, run); err != nil {
		r.logger.Error("mark run failed", zap.String("run", run.ID), zap.Error(err))
	}
	_ = r.store.TouchTracker(ctx, run.TrackerID, run.FinishedAt)
	metrics.RunsTotal.WithLabelValues(string(store.RunFailed)).Inc()
	return run, nil, cause
}

func (r *Runner) selectAdapters(names []string) []source.Adapter {
	if len(names) == 0 {
		out := make([]source.Adapter, 0, len(r.adapters))
		for _, st := range source.AllSourceTypes() {
			if a, ok := r.adapters[st]; ok {
				out = append(out, a)
			}
		}
		return out
	}

	var out []source.Adapter
	for _, name := range names {
		if a, ok := r.adapters[source.SourceType(name)]; ok {
			out = append(out, a)
		}
	}
	return out
}

// collect fans out one Search call per adapter and query. Adapter
// failures are logged and counted but contribute zero items; they
// never abort the run.
func (r *Runner) collect(ctx context.Context, adapters []source.Adapter, queries []string) []source.Item {
	var (
		mu    sync.Mutex
		items []source.Item
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, adapter := range adapters {
		for _, query := range queries {
			adapter, query := adapter, query
			g.Go(func() error {
				got, err := adapter.Search(gctx, query, r.perQueryLimit)
				if err != nil {
					metrics.AdapterFailuresTotal.WithLabelValues(string(adapter.Name())).Inc()
					r.logger.Warn("adapter failed",
						zap.String("source", string(adapter.Name())),
						zap.String("query", query),
						zap.Error(err))
					return nil
				}
				metrics.AdapterItemsTotal.WithLabelValues(string(adapter.Name())).Add(float64(len(got)))

				mu.Lock()
				items = append(items, got...)
				mu.Unlock()
				return nil
			})
		}
	}
	g.Wait()
	return items
}

// uniqueByID keeps the first (highest-ranked) result per identifier so
// a run never writes the same content hash twice.
func uniqueByID(results []store.TrackerResult) []store.TrackerResult {
	seen := make(map[string]bool, len(results))
	out := results[:0]
	for _, res := range results {
		if seen[res.ID] {
			continue
		}
		seen[res.ID] = true
		out = append(out, res)
	}
	return out
}
