package store

import (
	"time"
)

// RunStatus is the lifecycle state of a TrackerRun.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// TrackerConfig is the structured configuration derived from a
// tracker's natural-language prompt.
type TrackerConfig struct {
	Sources []string `json:"sources" yaml:"sources"`
	Queries []string `json:"queries" yaml:"queries"`
	Limit   int      `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// Tracker is a named, persistent monitoring subscription.
type Tracker struct {
	ID         string        `db:"id" json:"id"`
	Owner      string        `db:"owner" json:"owner,omitempty"`
	Prompt     string        `db:"prompt" json:"prompt"`
	Config     TrackerConfig `db:"-" json:"config"`
	ConfigJSON string        `db:"config" json:"-"`
	Public     bool          `db:"public" json:"public"`
	Schedule   string        `db:"schedule" json:"schedule"`
	LastRunAt  time.Time     `db:"last_run_at" json:"last_run_at"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// Interval parses the tracker's schedule string. Invalid or empty
// schedules fall back to one hour.
func (t *Tracker) Interval() time.Duration {
	d, err := time.ParseDuration(t.Schedule)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// TrackerRun is one execution attempt of a tracker's pipeline.
type TrackerRun struct {
	ID         string    `db:"id" json:"id"`
	TrackerID  string    `db:"tracker_id" json:"tracker_id"`
	Status     RunStatus `db:"status" json:"status"`
	Error      string    `db:"error" json:"error,omitempty"`
	StartedAt  time.Time `db:"started_at" json:"started_at"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
}

// TrackerResult is one content item surfaced by a run. Immutable once
// written; removed only by cascade when its tracker is deleted.
type TrackerResult struct {
	ID          string    `db:"id" json:"id"`
	RunID       string    `db:"run_id" json:"run_id"`
	TrackerID   string    `db:"tracker_id" json:"tracker_id"`
	Title       string    `db:"title" json:"title"`
	Summary     string    `db:"summary" json:"summary"`
	URL         string    `db:"url" json:"url"`
	Images      []string  `db:"-" json:"images,omitempty"`
	ImagesJSON  string    `db:"images" json:"-"`
	Sources     []string  `db:"-" json:"sources"`
	SourcesJSON string    `db:"sources" json:"-"`
	Tags        []string  `db:"-" json:"tags,omitempty"`
	TagsJSON    string    `db:"tags" json:"-"`
	Sentiment   string    `db:"sentiment" json:"sentiment,omitempty"`
	Score       float64   `db:"score" json:"score"`
	PublishedAt time.Time `db:"published_at" json:"published_at"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ListTrackersOpts controls tracker listing.
type ListTrackersOpts struct {
	Owner      string
	PublicOnly bool
	Limit      int
}
