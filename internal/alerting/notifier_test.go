package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/witanage/CW-Budget-sub000/internal/storage"
)

func TestTelegramNotifySendsMessage(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("test-token", "12345", srv.URL, time.Second, zerolog.Nop())

	err := notifier.Notify(context.Background(), Notification{
		Source:     storage.SourceHNB,
		CycleStart: time.Date(2025, 7, 1, 6, 0, 0, 0, time.UTC),
		Reason:     "unexpected status 403",
	})
	require.NoError(t, err)

	assert.Equal(t, "/bottest-token/sendMessage", gotPath)
	assert.Equal(t, "12345", gotPayload["chat_id"])
	assert.Contains(t, gotPayload["text"], "HNB")
	assert.Contains(t, gotPayload["text"], "unexpected status 403")
}

func TestTelegramNotifyIncludesConsecutiveCount(t *testing.T) {
	var gotPayload map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "1", srv.URL, time.Second, zerolog.Nop())

	err := notifier.Notify(context.Background(), Notification{
		Source:      storage.SourceCBSL,
		CycleStart:  time.Now(),
		Reason:      "timeout",
		Consecutive: 3,
	})
	require.NoError(t, err)
	assert.Contains(t, gotPayload["text"], "Consecutive failures: 3")
}

func TestTelegramNotifyRejectsAPIErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "1", srv.URL, time.Second, zerolog.Nop())

	err := notifier.Notify(context.Background(), Notification{Source: storage.SourceCBSL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestTelegramNotifyRejectsOKFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "1", srv.URL, time.Second, zerolog.Nop())

	err := notifier.Notify(context.Background(), Notification{Source: storage.SourceCBSL})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ok=false")
}
