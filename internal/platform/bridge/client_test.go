package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweat24/go-push-client/internal/platform/bridge"
	"github.com/sweat24/go-push-client/pkg/push"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Permissions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /permissions":
			_ = json.NewEncoder(w).Encode(map[string]string{"receive": "prompt"})
		case "POST /permissions/request":
			_ = json.NewEncoder(w).Encode(map[string]string{"receive": "granted"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := bridge.NewClient(srv.URL, newTestLogger())
	ctx := context.Background()

	status, err := client.Permissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "prompt", status)

	status, err = client.RequestPermissions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "granted", status)
}

func TestClient_RegisterReturnsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/register", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "fcm-token-abc"})
	}))
	defer srv.Close()

	client := bridge.NewClient(srv.URL, newTestLogger())
	token, err := client.Register(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fcm-token-abc", token)
}

func TestClient_UnsupportedPrimitiveMapsToChannelUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}))
	defer srv.Close()

	client := bridge.NewClient(srv.URL, newTestLogger())
	_, err := client.Subscribe(context.Background(), "vapid-key")
	assert.ErrorIs(t, err, push.ErrChannelUnavailable)
}

func TestClient_ServerErrorIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := bridge.NewClient(srv.URL, newTestLogger())
	err := client.ShowNotification(context.Background(), "t", "b", nil)

	var netErr *push.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
}

func TestClient_ListenDeliversEventsInOrder(t *testing.T) {
	var mu sync.Mutex
	served := false

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/events", r.URL.Path)
		mu.Lock()
		first := !served
		served = true
		mu.Unlock()

		if first {
			require.Equal(t, "0", r.URL.Query().Get("since"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"events": []bridge.Event{
					{Seq: 1, Type: bridge.EventMessage, Title: "Hello"},
					{Seq: 2, Type: bridge.EventTap, Data: map[string]string{"type": "appointment_reminder"}},
				},
			})
			return
		}
		// Later polls must resume past the last seq; return an empty batch.
		require.Equal(t, "2", r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode(map[string]any{"events": []bridge.Event{}})
	}))
	defer srv.Close()

	client := bridge.NewClient(srv.URL, newTestLogger())

	received := make(chan bridge.Event, 4)
	stop := client.Listen(func(ev bridge.Event) { received <- ev })
	defer stop()

	var got []bridge.Event
	for len(got) < 2 {
		select {
		case ev := <-received:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, bridge.EventMessage, got[0].Type)
	assert.Equal(t, int64(2), got[1].Seq)
	assert.Equal(t, bridge.EventTap, got[1].Type)
}

func TestClient_ListenStopDetaches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"events": []bridge.Event{}})
	}))
	defer srv.Close()

	client := bridge.NewClient(srv.URL, newTestLogger())
	stop := client.Listen(func(bridge.Event) {})

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
}
