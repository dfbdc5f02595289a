package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/tracklens/internal/store"
	"github.com/elonfeng/tracklens/pkg/alert"
	"github.com/elonfeng/tracklens/pkg/pipeline"
	"github.com/elonfeng/tracklens/pkg/source"
)

type staticAdapter struct {
	items []source.Item
}

func (s *staticAdapter) Name() source.SourceType { return source.SourceWeb }

func (s *staticAdapter) Search(context.Context, string, int) ([]source.Item, error) {
	return s.items, nil
}

type captureNotifier struct {
	sent []*alert.Notification
}

func (c *captureNotifier) Name() string { return "capture" }

func (c *captureNotifier) Send(_ context.Context, n *alert.Notification) error {
	c.sent = append(c.sent, n)
	return nil
}

func setup(t *testing.T, items []source.Item) (store.Store, *pipeline.Runner) {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runner := pipeline.NewRunner(db, []source.Adapter{&staticAdapter{items: items}},
		pipeline.NewEnricher(nil, 10, nil), pipeline.NewRanker(nil), 10, nil)
	return db, runner
}

func addTracker(t *testing.T, db store.Store, lastRun time.Time, schedule string) *store.Tracker {
	t.Helper()
	tr := &store.Tracker{
		ID:        uuid.NewString(),
		Prompt:    "track things",
		Config:    store.TrackerConfig{Queries: []string{"things"}},
		Schedule:  schedule,
		LastRunAt: lastRun,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.CreateTracker(context.Background(), tr))
	return tr
}

func TestRunDueExecutesDueTrackers(t *testing.T) {
	items := []source.Item{{Title: "Thing", URL: "https://example.com/thing", Sources: []string{"web"}}}
	db, runner := setup(t, items)

	never := addTracker(t, db, time.Time{}, "1h")
	recent := addTracker(t, db, time.Now().UTC(), "1h")
	stale := addTracker(t, db, time.Now().UTC().Add(-2*time.Hour), "1h")

	s := New(db, runner, nil, time.Minute, 1, nil)
	s.RunDue(context.Background())

	for _, tc := range []struct {
		tracker *store.Tracker
		runs    int
	}{
		{never, 1},
		{recent, 0},
		{stale, 1},
	} {
		got, err := db.ListRuns(context.Background(), tc.tracker.ID, 10)
		require.NoError(t, err)
		assert.Len(t, got, tc.runs)
	}
}

func TestRunDueNotifiesOnResults(t *testing.T) {
	items := []source.Item{{Title: "Thing", URL: "https://example.com/thing", Sources: []string{"web"}}}
	db, runner := setup(t, items)
	addTracker(t, db, time.Time{}, "1h")

	notified := &captureNotifier{}
	s := New(db, runner, alert.NewManager([]alert.Notifier{notified}), time.Minute, 1, nil)
	s.RunDue(context.Background())

	require.Len(t, notified.sent, 1)
	assert.Equal(t, 1, notified.sent[0].Count)
	assert.Equal(t, "track things", notified.sent[0].Prompt)
}

func TestRunDueSkipsNotificationBelowThreshold(t *testing.T) {
	db, runner := setup(t, nil)
	addTracker(t, db, time.Time{}, "1h")

	notified := &captureNotifier{}
	s := New(db, runner, alert.NewManager([]alert.Notifier{notified}), time.Minute, 1, nil)
	s.RunDue(context.Background())

	assert.Empty(t, notified.sent, "an empty run produces no notification")
}

func TestRunStopsOnContextCancel(t *testing.T) {
	db, runner := setup(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s := New(db, runner, nil, 10*time.Millisecond, 1, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
