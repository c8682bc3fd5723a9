package router_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweat24/go-push-client/internal/router"
	"github.com/sweat24/go-push-client/pkg/push"
)

type recordingNavigator struct {
	routes []string
}

func (n *recordingNavigator) Navigate(route string) {
	n.routes = append(n.routes, route)
}

type recordingNotifier struct {
	shown []string
	err   error
}

func (n *recordingNotifier) ShowNotification(_ context.Context, title, _ string, _ map[string]string) error {
	n.shown = append(n.shown, title)
	return n.err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouter_ForegroundBufferIsBounded(t *testing.T) {
	r := router.New(&recordingNavigator{}, nil, newTestLogger())

	for i := 0; i < router.MaxRecent+5; i++ {
		r.HandleForeground(push.InboundMessage{Title: fmt.Sprintf("msg-%d", i)})
	}

	recent := r.Recent()
	require.Len(t, recent, router.MaxRecent)
	// Oldest entries were evicted.
	assert.Equal(t, "msg-5", recent[0].Title)
	assert.Equal(t, fmt.Sprintf("msg-%d", router.MaxRecent+4), recent[len(recent)-1].Title)
}

func TestRouter_ForegroundSynthesizesNotification(t *testing.T) {
	notifier := &recordingNotifier{}
	r := router.New(&recordingNavigator{}, notifier, newTestLogger())

	r.HandleForeground(push.InboundMessage{Title: "Package expiring", Body: "7 days left"})

	require.Len(t, notifier.shown, 1)
	assert.Equal(t, "Package expiring", notifier.shown[0])
}

func TestRouter_ForegroundSurvivesNotifierFailure(t *testing.T) {
	notifier := &recordingNotifier{err: assert.AnError}
	r := router.New(&recordingNavigator{}, notifier, newTestLogger())

	var delivered []push.InboundMessage
	unsubscribe := r.OnMessage(func(msg push.InboundMessage) { delivered = append(delivered, msg) })
	defer unsubscribe()

	r.HandleForeground(push.InboundMessage{Title: "still delivered"})
	require.Len(t, delivered, 1)
}

func TestRouter_TapRouting(t *testing.T) {
	cases := []struct {
		name string
		data map[string]string
		want string
	}{
		{"package expiry", map[string]string{"type": "package_expiry"}, "/packages"},
		{"package expiry week", map[string]string{"type": "package_expiry_week"}, "/packages"},
		{"package expiry 2days", map[string]string{"type": "package_expiry_2days"}, "/packages"},
		{"appointment", map[string]string{"type": "appointment_reminder"}, "/bookings"},
		{"questionnaire with id", map[string]string{"type": "questionnaire", "questionnaire_id": "55"}, "/questionnaires/55"},
		{"questionnaire without id", map[string]string{"type": "questionnaire"}, "/questionnaires"},
		{"unknown type", map[string]string{"type": "mystery"}, "/"},
		{"nil data", nil, "/"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			nav := &recordingNavigator{}
			r := router.New(nav, nil, newTestLogger())

			r.HandleTap(push.InboundMessage{Data: tc.data})

			require.Len(t, nav.routes, 1)
			assert.Equal(t, tc.want, nav.routes[0])
		})
	}
}

func TestRouter_OnMessageUnsubscribe(t *testing.T) {
	r := router.New(&recordingNavigator{}, nil, newTestLogger())

	var first, second int
	unsub := r.OnMessage(func(push.InboundMessage) { first++ })
	r.OnMessage(func(push.InboundMessage) { second++ })

	r.HandleForeground(push.InboundMessage{Title: "one"})
	unsub()
	unsub() // double unsubscribe is harmless
	r.HandleForeground(push.InboundMessage{Title: "two"})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestRouter_NormalizesTimestamps(t *testing.T) {
	r := router.New(&recordingNavigator{}, nil, newTestLogger())
	r.HandleForeground(push.InboundMessage{Title: "x"})

	recent := r.Recent()
	require.Len(t, recent, 1)
	assert.False(t, recent[0].ReceivedAt.IsZero())
	assert.NotNil(t, recent[0].Data)
}
