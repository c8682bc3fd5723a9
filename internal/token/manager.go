// Package token owns the channel delivery token: acquisition from the
// adapter, submission to the backend, and refresh.
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sweat24/go-push-client/internal/backend"
	"github.com/sweat24/go-push-client/pkg/push"
)

const (
	DefaultAcquireTimeout   = 10 * time.Second
	DefaultSubmitRetryDelay = 5 * time.Second
)

// PermissionSource exposes the gate's snapshot. Acquire fails fast on it
// instead of poking the platform without a grant.
type PermissionSource interface {
	Snapshot() push.PermissionState
}

// Submitter is the backend seam; *backend.Client satisfies it.
type Submitter interface {
	RegisterToken(ctx context.Context, reg backend.TokenRegistration) error
}

// Config tunes the manager. Platform is the device platform string reported
// to the backend (ios, android, web).
type Config struct {
	Platform         string
	UserAgent        string
	AcquireTimeout   time.Duration
	SubmitRetryDelay time.Duration
}

// Manager holds at most one current token per process. The token in memory is
// always the most recent one successfully submitted, or the most recent one
// obtained while submission is still pending.
type Manager struct {
	adapter     push.Adapter
	permissions PermissionSource
	backend     Submitter
	cfg         Config
	instanceID  string
	logger      *slog.Logger

	mu      sync.Mutex
	current string
}

func NewManager(adapter push.Adapter, permissions PermissionSource, submitter Submitter, cfg Config, logger *slog.Logger) *Manager {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.SubmitRetryDelay <= 0 {
		cfg.SubmitRetryDelay = DefaultSubmitRetryDelay
	}
	if cfg.Platform == "" {
		cfg.Platform = string(adapter.Channel())
	}
	return &Manager{
		adapter:     adapter,
		permissions: permissions,
		backend:     submitter,
		cfg:         cfg,
		instanceID:  uuid.NewString(),
		logger:      logger.With("component", "TokenManager"),
	}
}

// Acquire obtains a fresh delivery token from the channel. It requires a
// permission grant and never runs two acquisitions concurrently — the
// initialization controller serializes callers.
func (m *Manager) Acquire(ctx context.Context) (string, error) {
	if !m.permissions.Snapshot().CanReceive {
		return "", fmt.Errorf("token acquire: %w", push.ErrPermissionDenied)
	}

	actx, cancel := context.WithTimeout(ctx, m.cfg.AcquireTimeout)
	defer cancel()

	token, err := m.adapter.Register(actx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(actx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("token acquire: %w", push.ErrTimeout)
		}
		return "", fmt.Errorf("token acquire: %w", err)
	}

	m.mu.Lock()
	m.current = token
	m.mu.Unlock()

	m.logger.Info("Delivery token acquired.", "channel", m.adapter.Channel())
	return token, nil
}

// Submit registers the token with the backend. On failure it retries exactly
// once after a fixed delay, then surfaces the error — no unbounded background
// retry storms. Source labels why this submission happened (initial, refresh).
func (m *Manager) Submit(ctx context.Context, token, source string) error {
	reg := backend.TokenRegistration{
		Token:    token,
		Platform: m.cfg.Platform,
		DeviceInfo: push.DeviceInfo{
			Platform:    m.cfg.Platform,
			IsNative:    m.adapter.Channel() == push.ChannelNative,
			UserAgent:   m.cfg.UserAgent,
			InstanceID:  m.instanceID,
			TokenSource: source,
		},
	}

	err := m.backend.RegisterToken(ctx, reg)
	if err == nil {
		m.logger.Info("Token submitted to backend.", "source", source)
		return nil
	}

	m.logger.Warn("Token submission failed, retrying once.", "err", err, "delay", m.cfg.SubmitRetryDelay)
	select {
	case <-ctx.Done():
		return fmt.Errorf("token submit: %w", ctx.Err())
	case <-time.After(m.cfg.SubmitRetryDelay):
	}

	if err := m.backend.RegisterToken(ctx, reg); err != nil {
		return fmt.Errorf("token submit after retry: %w", err)
	}
	m.logger.Info("Token submitted to backend on retry.", "source", source)
	return nil
}

// Refresh re-acquires the token and re-submits it even if the value is
// unchanged; the backend may have gone stale on its side.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	token, err := m.Acquire(ctx)
	if err != nil {
		return "", err
	}
	if err := m.Submit(ctx, token, "refresh"); err != nil {
		return "", err
	}
	return token, nil
}

// Current returns the held token, or empty if none was acquired yet.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Clear drops the in-memory token. The backend copy is superseded by the next
// submission, not deleted.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = ""
}
