// Package lifecycle tracks listener removers and owns orderly teardown, plus
// the background permission poll that notices revocations while running.
package lifecycle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sweat24/go-push-client/pkg/push"
)

const DefaultPollInterval = 30 * time.Second

// Checker is the permission gate seam for the background poll.
type Checker interface {
	Check(ctx context.Context) (push.PermissionState, error)
}

// Resetter returns the initialization machine to idle.
type Resetter interface {
	Reset()
}

// TokenClearer drops the in-memory delivery token.
type TokenClearer interface {
	Clear()
}

// Manager collects removers handed out as listeners attach and runs them all
// on teardown. Teardown is idempotent and safe before any initialization.
type Manager struct {
	controller   Resetter
	tokens       TokenClearer
	pollInterval time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	removers []func()
	stopPoll context.CancelFunc
	wg       sync.WaitGroup
}

func NewManager(controller Resetter, tokens TokenClearer, pollInterval time.Duration, logger *slog.Logger) *Manager {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Manager{
		controller:   controller,
		tokens:       tokens,
		pollInterval: pollInterval,
		logger:       logger.With("component", "LifecycleManager"),
	}
}

// Track registers a remover to run on teardown.
func (m *Manager) Track(remove func()) {
	if remove == nil {
		return
	}
	m.mu.Lock()
	m.removers = append(m.removers, remove)
	m.mu.Unlock()
}

// StartPermissionPoll watches for the grant being revoked while the process
// runs. A revocation is logged; the token stays registered so a re-grant
// resumes delivery without a new registration round-trip. Only one poll runs
// at a time.
func (m *Manager) StartPermissionPoll(ctx context.Context, gate Checker) {
	m.mu.Lock()
	if m.stopPoll != nil {
		m.mu.Unlock()
		return
	}
	pctx, cancel := context.WithCancel(ctx)
	m.stopPoll = cancel
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.pollInterval)
		defer ticker.Stop()

		var wasGranted bool
		for {
			select {
			case <-pctx.Done():
				return
			case <-ticker.C:
			}
			state, err := gate.Check(pctx)
			if err != nil {
				continue
			}
			granted := state.Status == push.PermissionGranted
			if wasGranted && !granted {
				m.logger.Warn("Push permission revoked while running.", "status", state.Status)
			}
			wasGranted = granted
		}
	}()
}

// Teardown runs every tracked remover, stops the permission poll, clears the
// token and resets the controller to idle. Calling it again, or before
// anything was started, is a no-op beyond the reset.
func (m *Manager) Teardown() {
	m.mu.Lock()
	removers := m.removers
	m.removers = nil
	stop := m.stopPoll
	m.stopPoll = nil
	m.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	if stop != nil {
		stop()
	}
	m.wg.Wait()

	if m.tokens != nil {
		m.tokens.Clear()
	}
	if m.controller != nil {
		m.controller.Reset()
	}
	m.logger.Info("Lifecycle teardown complete.", "listeners_removed", len(removers))
}
