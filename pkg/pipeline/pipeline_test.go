package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/tracklens/internal/store"
	"github.com/elonfeng/tracklens/pkg/source"
)

// fakeAdapter returns canned items or a canned error for every query.
type fakeAdapter struct {
	name  source.SourceType
	items []source.Item
	err   error
}

func (f *fakeAdapter) Name() source.SourceType { return f.name }

func (f *fakeAdapter) Search(_ context.Context, _ string, _ int) ([]source.Item, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]source.Item, len(f.items))
	copy(out, f.items)
	return out, nil
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testTracker(t *testing.T, db store.Store, queries, sources []string) *store.Tracker {
	t.Helper()
	tr := &store.Tracker{
		ID:        uuid.NewString(),
		Prompt:    "Track AI tools on Product Hunt",
		Config:    store.TrackerConfig{Queries: queries, Sources: sources},
		Schedule:  "1h",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateTracker(context.Background(), tr))
	return tr
}

func newTestRunner(db store.Store, completer *fakeCompleter, adapters ...source.Adapter) *Runner {
	enricher := NewEnricher(nil, 10, nil)
	if completer != nil {
		enricher = NewEnricher(completer, 10, nil)
	}
	return NewRunner(db, adapters, enricher, NewRanker(nil), 10, nil)
}

func TestRunMergesAcrossAdapters(t *testing.T) {
	db := testStore(t)
	tr := testTracker(t, db, []string{"ai tools"}, nil)

	shared := source.Item{
		Title:   "Acme AI",
		URL:     "https://example.com/acme",
		Sources: []string{"web"},
	}
	a := &fakeAdapter{name: source.SourceWeb, items: []source.Item{
		shared,
		{Title: "Tool One", URL: "https://example.com/one", Sources: []string{"web"}},
		{Title: "Tool Two", URL: "https://example.com/two", Sources: []string{"web"}},
	}}
	sharedB := shared
	sharedB.Sources = []string{"neural"}
	b := &fakeAdapter{name: source.SourceNeural, items: []source.Item{
		sharedB,
		{Title: "Tool Three", URL: "https://example.com/three", Sources: []string{"neural"}},
	}}

	runner := newTestRunner(db, nil, a, b)
	run, results, err := runner.Run(context.Background(), tr)
	require.NoError(t, err)

	assert.Equal(t, store.RunCompleted, run.Status)
	require.Len(t, results, 4, "5 collected, one pair deduplicated")

	var merged *store.TrackerResult
	for i := range results {
		if results[i].Title == "Acme AI" {
			merged = &results[i]
		}
	}
	require.NotNil(t, merged)
	assert.ElementsMatch(t, []string{"web", "neural"}, merged.Sources)
}

func TestRunAllAdaptersFailStillCompletes(t *testing.T) {
	db := testStore(t)
	tr := testTracker(t, db, []string{"anything"}, nil)

	a := &fakeAdapter{name: source.SourceWeb, err: errors.New("timeout")}
	b := &fakeAdapter{name: source.SourceNeural, err: errors.New("api down")}

	runner := newTestRunner(db, nil, a, b)
	run, results, err := runner.Run(context.Background(), tr)
	require.NoError(t, err)

	assert.Equal(t, store.RunCompleted, run.Status)
	assert.Empty(t, results, "zero results is a valid success")

	stored, err := db.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, stored.Status)
}

func TestRunInvalidConfigCreatesNoRun(t *testing.T) {
	db := testStore(t)
	tr := &store.Tracker{
		ID:        uuid.NewString(),
		Prompt:    "",
		Config:    store.TrackerConfig{},
		Schedule:  "1h",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateTracker(context.Background(), tr))

	runner := newTestRunner(db, nil, &fakeAdapter{name: source.SourceWeb})
	_, _, err := runner.Run(context.Background(), tr)
	require.ErrorIs(t, err, ErrInvalidConfig)

	runs, err := db.ListRuns(context.Background(), tr.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, runs, "no run row may exist for a rejected configuration")
}

// failingStore breaks result persistence while keeping run bookkeeping
// intact.
type failingStore struct {
	store.Store
}

func (f *failingStore) InsertResults(context.Context, []store.TrackerResult) error {
	return errors.New("disk full")
}

func TestRunPersistenceFailureFailsRun(t *testing.T) {
	db := testStore(t)
	tr := testTracker(t, db, []string{"ai"}, nil)

	a := &fakeAdapter{name: source.SourceWeb, items: []source.Item{
		{Title: "Tool", URL: "https://example.com/tool", Sources: []string{"web"}},
	}}

	runner := newTestRunner(&failingStore{Store: db}, nil, a)
	run, _, err := runner.Run(context.Background(), tr)
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, store.RunFailed, run.Status)
	assert.Contains(t, run.Error, "disk full")

	stored, err := db.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, store.RunFailed, stored.Status)
}

func TestRunEnrichmentFallbackStillCompletes(t *testing.T) {
	db := testStore(t)
	tr := testTracker(t, db, []string{"ai"}, nil)

	a := &fakeAdapter{name: source.SourceWeb, items: []source.Item{
		{Title: "Tool One", URL: "https://example.com/one", Snippet: "snippet one", Sources: []string{"web"}},
		{Title: "Tool Two", URL: "https://example.com/two", Snippet: "snippet two", Sources: []string{"web"}},
	}}

	fc := &fakeCompleter{responses: []string{"not valid json"}}
	runner := newTestRunner(db, fc, a)

	run, results, err := runner.Run(context.Background(), tr)
	require.NoError(t, err)

	assert.Equal(t, store.RunCompleted, run.Status)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.Zero(t, res.Score)
		assert.Contains(t, []string{"snippet one", "snippet two"}, res.Summary,
			"fallback keeps the original snippet as summary")
	}
}

func TestRunOrdersResultsByEnrichmentScore(t *testing.T) {
	db := testStore(t)
	tr := testTracker(t, db, []string{"ai"}, nil)

	a := &fakeAdapter{name: source.SourceWeb, items: []source.Item{
		{Title: "Third", URL: "https://example.com/3", Sources: []string{"web"}},
		{Title: "First", URL: "https://example.com/1", Sources: []string{"web"}},
		{Title: "Fourth", URL: "https://example.com/4", Sources: []string{"web"}},
		{Title: "Second", URL: "https://example.com/2", Sources: []string{"web"}},
	}}

	fc := &fakeCompleter{responses: []string{
		`[{"id":1,"score":5,"summary":"third"},
		  {"id":2,"score":8,"summary":"first"},
		  {"id":3,"score":3,"summary":"fourth"},
		  {"id":4,"score":6,"summary":"second"}]`,
	}}
	runner := newTestRunner(db, fc, a)

	run, results, err := runner.Run(context.Background(), tr)
	require.NoError(t, err)
	assert.Equal(t, store.RunCompleted, run.Status)

	require.Len(t, results, 4)
	scores := []float64{results[0].Score, results[1].Score, results[2].Score, results[3].Score}
	assert.Equal(t, []float64{8, 6, 5, 3}, scores)

	// The persisted feed reads back in the same order.
	stored, err := db.ListResults(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, stored, 4)
	assert.Equal(t, results[0].ID, stored[0].ID)
}

func TestRunTouchesTrackerLastRun(t *testing.T) {
	db := testStore(t)
	tr := testTracker(t, db, []string{"ai"}, nil)
	require.True(t, tr.LastRunAt.IsZero())

	runner := newTestRunner(db, nil, &fakeAdapter{name: source.SourceWeb})
	_, _, err := runner.Run(context.Background(), tr)
	require.NoError(t, err)

	stored, err := db.GetTracker(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.False(t, stored.LastRunAt.IsZero())
}
