package permission_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweat24/go-push-client/internal/permission"
	"github.com/sweat24/go-push-client/pkg/push"
)

// stubAdapter lets each test script the permission primitives directly.
type stubAdapter struct {
	checkState   push.PermissionState
	checkErr     error
	requestState push.PermissionState
	requestErr   error
	requestDelay time.Duration
	requests     int
}

func (s *stubAdapter) Channel() push.Channel { return push.ChannelNative }
func (s *stubAdapter) CheckPermissions(context.Context) (push.PermissionState, error) {
	return s.checkState, s.checkErr
}
func (s *stubAdapter) RequestPermissions(ctx context.Context) (push.PermissionState, error) {
	s.requests++
	if s.requestDelay > 0 {
		select {
		case <-ctx.Done():
			return push.PermissionState{}, ctx.Err()
		case <-time.After(s.requestDelay):
		}
	}
	return s.requestState, s.requestErr
}
func (s *stubAdapter) Register(context.Context) (string, error) { return "", nil }
func (s *stubAdapter) Unregister(context.Context) error         { return nil }
func (s *stubAdapter) Listen(push.MessageSink) (func(), error)  { return func() {}, nil }
func (s *stubAdapter) ShowNotification(context.Context, string, string, map[string]string) error {
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGate_CheckUpdatesSnapshot(t *testing.T) {
	adapter := &stubAdapter{
		checkState: push.PermissionState{CanReceive: true, CanRequest: true, Status: push.PermissionGranted},
	}
	gate := permission.NewGate(adapter, time.Second, newTestLogger())

	assert.Equal(t, push.PermissionUnknown, gate.Snapshot().Status)

	state, err := gate.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, state.CanReceive)
	assert.Equal(t, state, gate.Snapshot())
}

func TestGate_CheckErrorKeepsLastSnapshot(t *testing.T) {
	adapter := &stubAdapter{
		checkState: push.PermissionState{CanReceive: true, CanRequest: true, Status: push.PermissionGranted},
	}
	gate := permission.NewGate(adapter, time.Second, newTestLogger())
	_, err := gate.Check(context.Background())
	require.NoError(t, err)

	adapter.checkErr = assert.AnError
	_, err = gate.Check(context.Background())
	assert.Error(t, err)
	// The stale-but-valid snapshot survives a transient platform failure.
	assert.Equal(t, push.PermissionGranted, gate.Snapshot().Status)
}

func TestGate_RequestTimeoutIsTimeoutNotDenial(t *testing.T) {
	adapter := &stubAdapter{requestDelay: 200 * time.Millisecond}
	gate := permission.NewGate(adapter, 20*time.Millisecond, newTestLogger())

	state, err := gate.Request(context.Background())
	assert.ErrorIs(t, err, push.ErrTimeout)
	assert.NotEqual(t, push.PermissionDenied, state.Status)
}

func TestGate_RequestDenialIsStateNotError(t *testing.T) {
	adapter := &stubAdapter{requestState: push.PermissionState{Status: push.PermissionDenied}}
	gate := permission.NewGate(adapter, time.Second, newTestLogger())

	state, err := gate.Request(context.Background())
	require.NoError(t, err)
	assert.Equal(t, push.PermissionDenied, state.Status)
	assert.False(t, state.CanReceive)
	assert.Equal(t, push.PermissionDenied, gate.Snapshot().Status)
}
