package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence capability for trackers, runs and results.
// Deleting a tracker cascades to its runs and their results.
type Store interface {
	CreateTracker(ctx context.Context, t *Tracker) error
	GetTracker(ctx context.Context, id string) (*Tracker, error)
	ListTrackers(ctx context.Context, opts ListTrackersOpts) ([]Tracker, error)
	UpdateTracker(ctx context.Context, t *Tracker) error
	TouchTracker(ctx context.Context, id string, lastRun time.Time) error
	DeleteTracker(ctx context.Context, id string) error

	CreateRun(ctx context.Context, r *TrackerRun) error
	UpdateRun(ctx context.Context, r *TrackerRun) error
	GetRun(ctx context.Context, id string) (*TrackerRun, error)
	LatestCompletedRun(ctx context.Context, trackerID string) (*TrackerRun, error)
	ListRuns(ctx context.Context, trackerID string, limit int) ([]TrackerRun, error)

	InsertResults(ctx context.Context, results []TrackerResult) error
	ListResults(ctx context.Context, runID string) ([]TrackerResult, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateTracker(ctx context.Context, t *Tracker) error {
	cfgJSON, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("encode tracker config: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO trackers (id, owner, prompt, config, public, schedule, last_run_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Owner, t.Prompt, string(cfgJSON), t.Public, t.Schedule, t.LastRunAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert tracker %s: %w", t.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTracker(ctx context.Context, id string) (*Tracker, error) {
	var t Tracker
	err := s.db.GetContext(ctx, &t, "SELECT * FROM trackers WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("tracker %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tracker %s: %w", id, err)
	}
	json.Unmarshal([]byte(t.ConfigJSON), &t.Config)
	return &t, nil
}

func (s *SQLiteStore) ListTrackers(ctx context.Context, opts ListTrackersOpts) ([]Tracker, error) {
	query := "SELECT * FROM trackers WHERE 1=1"
	var args []any

	if opts.Owner != "" {
		query += " AND owner = ?"
		args = append(args, opts.Owner)
	}
	if opts.PublicOnly {
		query += " AND public = 1"
	}

	query += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var trackers []Tracker
	if err := s.db.SelectContext(ctx, &trackers, query, args...); err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	for i := range trackers {
		json.Unmarshal([]byte(trackers[i].ConfigJSON), &trackers[i].Config)
	}
	return trackers, nil
}

func (s *SQLiteStore) UpdateTracker(ctx context.Context, t *Tracker) error {
	cfgJSON, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("encode tracker config: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE trackers SET prompt = ?, config = ?, public = ?, schedule = ? WHERE id = ?
	`, t.Prompt, string(cfgJSON), t.Public, t.Schedule, t.ID)
	if err != nil {
		return fmt.Errorf("update tracker %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("tracker %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) TouchTracker(ctx context.Context, id string, lastRun time.Time) error {
	_, err := s.db.ExecContext(ctx, "UPDATE trackers SET last_run_at = ? WHERE id = ?", lastRun, id)
	if err != nil {
		return fmt.Errorf("touch tracker %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) DeleteTracker(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM trackers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete tracker %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("tracker %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, r *TrackerRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tracker_runs (id, tracker_id, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, r.ID, r.TrackerID, r.Status, r.Error, r.StartedAt, r.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, r *TrackerRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tracker_runs SET status = ?, error = ?, finished_at = ? WHERE id = ?
	`, r.Status, r.Error, r.FinishedAt, r.ID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*TrackerRun, error) {
	var r TrackerRun
	err := s.db.GetContext(ctx, &r, "SELECT * FROM tracker_runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &r, nil
}

func (s *SQLiteStore) LatestCompletedRun(ctx context.Context, trackerID string) (*TrackerRun, error) {
	var r TrackerRun
	err := s.db.GetContext(ctx, &r, `
		SELECT * FROM tracker_runs
		WHERE tracker_id = ? AND status = ?
		ORDER BY started_at DESC LIMIT 1
	`, trackerID, RunCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("completed run for tracker %s: %w", trackerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed run %s: %w", trackerID, err)
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, trackerID string, limit int) ([]TrackerRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []TrackerRun
	err := s.db.SelectContext(ctx, &runs, `
		SELECT * FROM tracker_runs WHERE tracker_id = ?
		ORDER BY started_at DESC LIMIT ?
	`, trackerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs %s: %w", trackerID, err)
	}
	return runs, nil
}

// InsertResults writes all results of a run in one transaction so a
// partially persisted run is never observed.
func (s *SQLiteStore) InsertResults(ctx context.Context, results []TrackerResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert results: %w", err)
	}
	defer tx.Rollback()

	for i := range results {
		r := &results[i]
		imagesJSON, _ := json.Marshal(r.Images)
		sourcesJSON, _ := json.Marshal(r.Sources)
		tagsJSON, _ := json.Marshal(r.Tags)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO tracker_results (id, run_id, tracker_id, title, summary, url, images, sources, tags, sentiment, score, published_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, r.ID, r.RunID, r.TrackerID, r.Title, r.Summary, r.URL,
			string(imagesJSON), string(sourcesJSON), string(tagsJSON),
			r.Sentiment, r.Score, r.PublishedAt, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert result %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, runID string) ([]TrackerResult, error) {
	var results []TrackerResult
	err := s.db.SelectContext(ctx, &results, `
		SELECT * FROM tracker_results WHERE run_id = ? ORDER BY score DESC, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results %s: %w", runID, err)
	}
	for i := range results {
		json.Unmarshal([]byte(results[i].ImagesJSON), &results[i].Images)
		json.Unmarshal([]byte(results[i].SourcesJSON), &results[i].Sources)
		json.Unmarshal([]byte(results[i].TagsJSON), &results[i].Tags)
	}
	return results, nil
}
