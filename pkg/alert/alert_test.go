package alert

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/tracklens/internal/store"
)

type recordingNotifier struct {
	name string
	sent []*Notification
	err  error
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) Send(_ context.Context, n *Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}

func sampleNotification() *Notification {
	return &Notification{
		TrackerID: "t1",
		Prompt:    "Track AI tools",
		RunID:     "r1",
		Count:     2,
		Results: []store.TrackerResult{
			{ID: "a", Title: "Tool A", URL: "https://example.com/a", Score: 8},
			{ID: "b", Title: "Tool B", URL: "https://example.com/b", Score: 5},
		},
	}
}

func TestBroadcastReachesAllNotifiers(t *testing.T) {
	a := &recordingNotifier{name: "a"}
	b := &recordingNotifier{name: "b"}
	m := NewManager([]Notifier{a, b})
	require.True(t, m.HasNotifiers())

	require.NoError(t, m.Broadcast(context.Background(), sampleNotification()))
	assert.Len(t, a.sent, 1)
	assert.Len(t, b.sent, 1)
}

func TestBroadcastCollectsFailures(t *testing.T) {
	a := &recordingNotifier{name: "a", err: errors.New("down")}
	b := &recordingNotifier{name: "b"}
	m := NewManager([]Notifier{a, b})

	err := m.Broadcast(context.Background(), sampleNotification())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: down")
	assert.Len(t, b.sent, 1, "one notifier failing does not stop the others")
}

func TestEmptyManager(t *testing.T) {
	m := NewManager(nil)
	assert.False(t, m.HasNotifiers())
	assert.NoError(t, m.Broadcast(context.Background(), sampleNotification()))
}

func TestWebhookSignsPayload(t *testing.T) {
	const secret = "s3cret"
	var gotSig string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Signature-256")
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, secret)
	require.NoError(t, wh.Send(context.Background(), sampleNotification()))

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	assert.Equal(t, "sha256="+hex.EncodeToString(mac.Sum(nil)), gotSig)

	var n Notification
	require.NoError(t, json.Unmarshal(gotBody, &n))
	assert.Equal(t, "t1", n.TrackerID)
	assert.Len(t, n.Results, 2)
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, "")
	err := wh.Send(context.Background(), sampleNotification())
	assert.ErrorContains(t, err, "status 400")
}

func TestSlackMessageShape(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(srv.URL)
	require.NoError(t, s.Send(context.Background(), sampleNotification()))
	blocks, ok := payload["blocks"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, blocks)
}

func TestDiscordMessageShape(t *testing.T) {
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscord(srv.URL)
	require.NoError(t, d.Send(context.Background(), sampleNotification()))
	embeds, ok := payload["embeds"].([]any)
	require.True(t, ok)
	assert.NotEmpty(t, embeds)
}
