package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/elonfeng/tracklens/internal/store"
)

// Notification is the data sent when a tracker run completes with
// fresh results.
type Notification struct {
	TrackerID string                `json:"tracker_id"`
	Prompt    string                `json:"prompt"`
	RunID     string                `json:"run_id"`
	Count     int                   `json:"count"`
	Results   []store.TrackerResult `json:"results"`
}

// Notifier delivers notifications to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// topResults bounds how many result links a message embeds.
func topResults(n *Notification, limit int) []store.TrackerResult {
	if len(n.Results) < limit {
		limit = len(n.Results)
	}
	return n.Results[:limit]
}
