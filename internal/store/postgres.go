package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `
CREATE TABLE IF NOT EXISTS trackers (
	id           TEXT PRIMARY KEY,
	owner        TEXT NOT NULL DEFAULT '',
	prompt       TEXT NOT NULL,
	config       JSONB NOT NULL DEFAULT '{}',
	public       BOOLEAN NOT NULL DEFAULT FALSE,
	schedule     TEXT NOT NULL DEFAULT '1h',
	last_run_at  TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tracker_runs (
	id          TEXT PRIMARY KEY,
	tracker_id  TEXT NOT NULL REFERENCES trackers(id) ON DELETE CASCADE,
	status      TEXT NOT NULL DEFAULT 'pending',
	error       TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tracker_results (
	id           TEXT NOT NULL,
	run_id       TEXT NOT NULL REFERENCES tracker_runs(id) ON DELETE CASCADE,
	tracker_id   TEXT NOT NULL,
	title        TEXT NOT NULL,
	summary      TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	images       JSONB NOT NULL DEFAULT '[]',
	sources      JSONB NOT NULL DEFAULT '[]',
	tags         JSONB NOT NULL DEFAULT '[]',
	sentiment    TEXT NOT NULL DEFAULT '',
	score        DOUBLE PRECISION NOT NULL DEFAULT 0,
	published_at TIMESTAMPTZ NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE INDEX IF NOT EXISTS idx_runs_tracker ON tracker_runs(tracker_id);
CREATE INDEX IF NOT EXISTS idx_results_tracker ON tracker_results(tracker_id);
`

// PostgresStore implements Store using PostgreSQL via pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects to Postgres and runs migrations.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateTracker(ctx context.Context, t *Tracker) error {
	cfgJSON, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("encode tracker config: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO trackers (id, owner, prompt, config, public, schedule, last_run_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.Owner, t.Prompt, cfgJSON, t.Public, t.Schedule, t.LastRunAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert tracker %s: %w", t.ID, err)
	}
	return nil
}

func (s *PostgresStore) scanTracker(row pgx.Row) (*Tracker, error) {
	var t Tracker
	var cfgJSON []byte
	err := row.Scan(&t.ID, &t.Owner, &t.Prompt, &cfgJSON, &t.Public, &t.Schedule, &t.LastRunAt, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal(cfgJSON, &t.Config)
	return &t, nil
}

func (s *PostgresStore) GetTracker(ctx context.Context, id string) (*Tracker, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, owner, prompt, config, public, schedule, last_run_at, created_at
		FROM trackers WHERE id = $1
	`, id)
	t, err := s.scanTracker(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tracker %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get tracker %s: %w", id, err)
	}
	return t, nil
}

func (s *PostgresStore) ListTrackers(ctx context.Context, opts ListTrackersOpts) ([]Tracker, error) {
	query := `SELECT id, owner, prompt, config, public, schedule, last_run_at, created_at
		FROM trackers WHERE TRUE`
	var args []any

	if opts.Owner != "" {
		args = append(args, opts.Owner)
		query += fmt.Sprintf(" AND owner = $%d", len(args))
	}
	if opts.PublicOnly {
		query += " AND public"
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	defer rows.Close()

	var trackers []Tracker
	for rows.Next() {
		t, err := s.scanTracker(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracker: %w", err)
		}
		trackers = append(trackers, *t)
	}
	return trackers, rows.Err()
}

func (s *PostgresStore) UpdateTracker(ctx context.Context, t *Tracker) error {
	cfgJSON, err := json.Marshal(t.Config)
	if err != nil {
		return fmt.Errorf("encode tracker config: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE trackers SET prompt = $1, config = $2, public = $3, schedule = $4 WHERE id = $5
	`, t.Prompt, cfgJSON, t.Public, t.Schedule, t.ID)
	if err != nil {
		return fmt.Errorf("update tracker %s: %w", t.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tracker %s: %w", t.ID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) TouchTracker(ctx context.Context, id string, lastRun time.Time) error {
	_, err := s.pool.Exec(ctx, "UPDATE trackers SET last_run_at = $1 WHERE id = $2", lastRun, id)
	if err != nil {
		return fmt.Errorf("touch tracker %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) DeleteTracker(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM trackers WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete tracker %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tracker %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, r *TrackerRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tracker_runs (id, tracker_id, status, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.TrackerID, r.Status, r.Error, r.StartedAt, r.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateRun(ctx context.Context, r *TrackerRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tracker_runs SET status = $1, error = $2, finished_at = $3 WHERE id = $4
	`, r.Status, r.Error, r.FinishedAt, r.ID)
	if err != nil {
		return fmt.Errorf("update run %s: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresStore) scanRun(row pgx.Row) (*TrackerRun, error) {
	var r TrackerRun
	err := row.Scan(&r.ID, &r.TrackerID, &r.Status, &r.Error, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*TrackerRun, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tracker_id, status, error, started_at, finished_at
		FROM tracker_runs WHERE id = $1
	`, id)
	r, err := s.scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, nil
}

func (s *PostgresStore) LatestCompletedRun(ctx context.Context, trackerID string) (*TrackerRun, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tracker_id, status, error, started_at, finished_at
		FROM tracker_runs WHERE tracker_id = $1 AND status = $2
		ORDER BY started_at DESC LIMIT 1
	`, trackerID, RunCompleted)
	r, err := s.scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("completed run for tracker %s: %w", trackerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest completed run %s: %w", trackerID, err)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, trackerID string, limit int) ([]TrackerRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, tracker_id, status, error, started_at, finished_at
		FROM tracker_runs WHERE tracker_id = $1
		ORDER BY started_at DESC LIMIT $2
	`, trackerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs %s: %w", trackerID, err)
	}
	defer rows.Close()

	var runs []TrackerRun
	for rows.Next() {
		r, err := s.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

func (s *PostgresStore) InsertResults(ctx context.Context, results []TrackerResult) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert results: %w", err)
	}
	defer tx.Rollback(ctx)

	for i := range results {
		r := &results[i]
		imagesJSON, _ := json.Marshal(r.Images)
		sourcesJSON, _ := json.Marshal(r.Sources)
		tagsJSON, _ := json.Marshal(r.Tags)

		_, err := tx.Exec(ctx, `
			INSERT INTO tracker_results (id, run_id, tracker_id, title, summary, url, images, sources, tags, sentiment, score, published_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`, r.ID, r.RunID, r.TrackerID, r.Title, r.Summary, r.URL,
			imagesJSON, sourcesJSON, tagsJSON,
			r.Sentiment, r.Score, r.PublishedAt, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert result %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListResults(ctx context.Context, runID string) ([]TrackerResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, tracker_id, title, summary, url, images, sources, tags, sentiment, score, published_at, created_at
		FROM tracker_results WHERE run_id = $1 ORDER BY score DESC, id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list results %s: %w", runID, err)
	}
	defer rows.Close()

	var results []TrackerResult
	for rows.Next() {
		var r TrackerResult
		var imagesJSON, sourcesJSON, tagsJSON []byte
		err := rows.Scan(&r.ID, &r.RunID, &r.TrackerID, &r.Title, &r.Summary, &r.URL,
			&imagesJSON, &sourcesJSON, &tagsJSON,
			&r.Sentiment, &r.Score, &r.PublishedAt, &r.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		json.Unmarshal(imagesJSON, &r.Images)
		json.Unmarshal(sourcesJSON, &r.Sources)
		json.Unmarshal(tagsJSON, &r.Tags)
		results = append(results, r)
	}
	return results, rows.Err()
}
