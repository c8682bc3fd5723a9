// Package permission wraps the channel adapter's permission primitives behind
// one gate that owns the in-memory permission snapshot.
package permission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sweat24/go-push-client/pkg/push"
)

const DefaultRequestTimeout = 10 * time.Second

// Gate owns the permission state. Collaborators read snapshots; only the gate
// mutates. Nothing is persisted — state is recomputed from the platform on
// every Check.
type Gate struct {
	adapter        push.Adapter
	requestTimeout time.Duration
	logger         *slog.Logger

	mu    sync.RWMutex
	state push.PermissionState
}

func NewGate(adapter push.Adapter, requestTimeout time.Duration, logger *slog.Logger) *Gate {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &Gate{
		adapter:        adapter,
		requestTimeout: requestTimeout,
		logger:         logger.With("component", "PermissionGate"),
		state:          push.PermissionState{Status: push.PermissionUnknown},
	}
}

// Check recomputes the state from the platform. Safe to poll.
func (g *Gate) Check(ctx context.Context) (push.PermissionState, error) {
	state, err := g.adapter.CheckPermissions(ctx)
	if err != nil {
		g.logger.Warn("Permission check failed.", "err", err)
		return g.Snapshot(), err
	}
	g.update(state)
	return state, nil
}

// Request may prompt the user. The call is bounded: a hung platform prompt
// surfaces as ErrTimeout rather than stalling the caller. A timeout is not a
// denial — the user never answered.
func (g *Gate) Request(ctx context.Context) (push.PermissionState, error) {
	rctx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	state, err := g.adapter.RequestPermissions(rctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(rctx.Err(), context.DeadlineExceeded) {
			g.logger.Warn("Permission request timed out.", "timeout", g.requestTimeout)
			return push.PermissionState{Status: push.PermissionUnknown}, fmt.Errorf("permission request: %w", push.ErrTimeout)
		}
		return push.PermissionState{Status: push.PermissionUnknown}, err
	}

	g.update(state)
	g.logger.Info("Permission request resolved.", "status", state.Status)
	return state, nil
}

// Snapshot returns the last observed state without touching the platform.
func (g *Gate) Snapshot() push.PermissionState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

func (g *Gate) update(state push.PermissionState) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = state
}
