package store

const schema = `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS trackers (
    id           TEXT PRIMARY KEY,
    owner        TEXT NOT NULL DEFAULT '',
    prompt       TEXT NOT NULL,
    config       TEXT NOT NULL DEFAULT '{}',
    public       BOOLEAN NOT NULL DEFAULT 0,
    schedule     TEXT NOT NULL DEFAULT '1h',
    last_run_at  DATETIME NOT NULL,
    created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trackers_owner ON trackers(owner);

CREATE TABLE IF NOT EXISTS tracker_runs (
    id          TEXT PRIMARY KEY,
    tracker_id  TEXT NOT NULL REFERENCES trackers(id) ON DELETE CASCADE,
    status      TEXT NOT NULL DEFAULT 'pending',
    error       TEXT NOT NULL DEFAULT '',
    started_at  DATETIME NOT NULL,
    finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_tracker ON tracker_runs(tracker_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON tracker_runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started ON tracker_runs(started_at);

CREATE TABLE IF NOT EXISTS tracker_results (
    id           TEXT NOT NULL,
    run_id       TEXT NOT NULL REFERENCES tracker_runs(id) ON DELETE CASCADE,
    tracker_id   TEXT NOT NULL,
    title        TEXT NOT NULL,
    summary      TEXT NOT NULL DEFAULT '',
    url          TEXT NOT NULL DEFAULT '',
    images       TEXT NOT NULL DEFAULT '[]',
    sources      TEXT NOT NULL DEFAULT '[]',
    tags         TEXT NOT NULL DEFAULT '[]',
    sentiment    TEXT NOT NULL DEFAULT '',
    score        REAL NOT NULL DEFAULT 0,
    published_at DATETIME NOT NULL,
    created_at   DATETIME NOT NULL,
    PRIMARY KEY (run_id, id)
);

CREATE INDEX IF NOT EXISTS idx_results_tracker ON tracker_results(tracker_id);
CREATE INDEX IF NOT EXISTS idx_results_score ON tracker_results(score);
`
