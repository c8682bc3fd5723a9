// Package initctl drives the initialization state machine: permission first,
// then token acquisition and backend registration, with bounded retry.
package initctl

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sweat24/go-push-client/pkg/push"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 2 * time.Second
)

// PermissionRequester is the gate seam.
type PermissionRequester interface {
	Request(ctx context.Context) (push.PermissionState, error)
}

// TokenSource is the token manager seam.
type TokenSource interface {
	Acquire(ctx context.Context) (string, error)
	Submit(ctx context.Context, token, source string) error
}

// AttachFunc arms the message listeners once registration succeeds. The
// returned remover is handed to whoever owns teardown.
type AttachFunc func() (remove func(), err error)

// Config tunes the retry policy. The permission and token stages carry their
// own timeouts inside the gate and the token manager.
type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
}

// flight is one in-progress initialization sequence. Concurrent Initialize
// callers block on done and share err instead of spawning a second sequence.
type flight struct {
	done chan struct{}
	err  error
}

// Controller owns the phase variable. Exactly one sequence is in flight at a
// time; stages within a sequence run strictly in order.
type Controller struct {
	gate    PermissionRequester
	tokens  TokenSource
	attach  AttachFunc
	onArmed func(remove func())
	cfg     Config
	logger  *slog.Logger

	mu            sync.Mutex
	phase         push.Phase
	generation    int
	totalAttempts int
	inflight      *flight
}

func NewController(gate PermissionRequester, tokens TokenSource, attach AttachFunc, onArmed func(remove func()), cfg Config, logger *slog.Logger) *Controller {
	cfg.applyDefaults()
	return &Controller{
		gate:    gate,
		tokens:  tokens,
		attach:  attach,
		onArmed: onArmed,
		cfg:     cfg,
		logger:  logger.With("component", "InitController"),
		phase:   push.PhaseIdle,
	}
}

func (c *Controller) Phase() push.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// TotalAttempts is monotonic across explicit Initialize calls; it resets only
// on Reset (teardown back to idle).
func (c *Controller) TotalAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalAttempts
}

// Initialize runs the sequence to active or exhausted failure. A second call
// while a sequence is in flight does not start another one — it waits for the
// in-flight outcome and returns it. A call in the active phase is a no-op.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.phase == push.PhaseActive {
		c.mu.Unlock()
		return nil
	}
	if f := c.inflight; f != nil {
		c.mu.Unlock()
		select {
		case <-f.done:
			return f.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f := &flight{done: make(chan struct{})}
	c.inflight = f
	gen := c.generation
	c.mu.Unlock()

	err := c.run(ctx, gen)

	c.mu.Lock()
	if c.inflight == f {
		c.inflight = nil
	}
	c.mu.Unlock()

	f.err = err
	close(f.done)
	return err
}

// Reset returns the machine to idle and zeroes the attempt counter. Called by
// the lifecycle manager on teardown; an in-flight sequence from the previous
// generation discards its result instead of mutating fresh state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.phase = push.PhaseIdle
	c.totalAttempts = 0
	c.logger.Info("Controller reset to idle.")
}

func (c *Controller) run(ctx context.Context, gen int) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return fmt.Errorf("initialization abandoned: torn down")
		}
		c.totalAttempts++
		total := c.totalAttempts
		c.mu.Unlock()

		c.logger.Info("Initialization attempt starting.", "attempt", attempt, "max", c.cfg.MaxAttempts, "total", total)

		err := c.sequence(ctx, gen)
		if err == nil {
			return nil
		}
		lastErr = err
		c.setPhase(gen, push.PhaseFailed)

		if push.IsTerminal(err) {
			c.logger.Warn("Initialization failed terminally.", "err", err)
			return err
		}
		c.logger.Warn("Initialization attempt failed.", "attempt", attempt, "err", err)

		if attempt == c.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RetryDelay):
		}
	}
	return fmt.Errorf("initialization failed after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

// sequence runs one pass: permission, then token, then listener attach.
// Stages never overlap and each carries its own timeout.
func (c *Controller) sequence(ctx context.Context, gen int) error {
	if !c.setPhase(gen, push.PhaseRequestingPermission) {
		return fmt.Errorf("initialization abandoned: torn down")
	}

	state, err := c.gate.Request(ctx)
	if err != nil {
		return err
	}
	switch {
	case state.Status == push.PermissionDenied:
		return push.ErrPermissionDenied
	case !state.CanReceive:
		// Prompt dismissed or state unresolved; retryable, unlike a denial.
		return fmt.Errorf("permission unresolved (status %q)", state.Status)
	}

	if !c.setPhase(gen, push.PhaseRegistering) {
		return fmt.Errorf("initialization abandoned: torn down")
	}

	token, err := c.tokens.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := c.tokens.Submit(ctx, token, "initial"); err != nil {
		return err
	}

	var remove func()
	if c.attach != nil {
		remove, err = c.attach()
		if err != nil {
			return fmt.Errorf("attach listeners: %w", err)
		}
	}

	if !c.setPhase(gen, push.PhaseActive) {
		// Torn down while we were registering; undo the attach and discard.
		if remove != nil {
			remove()
		}
		return fmt.Errorf("initialization abandoned: torn down")
	}
	if remove != nil && c.onArmed != nil {
		c.onArmed(remove)
	}
	c.logger.Info("Initialization complete; service active.")
	return nil
}

func (c *Controller) setPhase(gen int, phase push.Phase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.phase = phase
	return true
}
