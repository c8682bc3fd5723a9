// Package native implements the delivery channel backed by the OS shell's
// push plugin.
package native

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sweat24/go-push-client/internal/platform/bridge"
	"github.com/sweat24/go-push-client/pkg/push"
)

// Shell is the subset of the bridge client the native channel needs. The
// interface exists so unit tests can mock the shell.
type Shell interface {
	Permissions(ctx context.Context) (string, error)
	RequestPermissions(ctx context.Context) (string, error)
	Register(ctx context.Context) (string, error)
	Unregister(ctx context.Context) error
	Listen(onEvent func(bridge.Event)) (stop func())
}

type Adapter struct {
	shell  Shell
	logger *slog.Logger
}

func NewAdapter(shell Shell, logger *slog.Logger) *Adapter {
	return &Adapter{
		shell:  shell,
		logger: logger.With("component", "NativeAdapter"),
	}
}

func (a *Adapter) Channel() push.Channel { return push.ChannelNative }

func (a *Adapter) CheckPermissions(ctx context.Context) (push.PermissionState, error) {
	raw, err := a.shell.Permissions(ctx)
	if err != nil {
		return push.PermissionState{Status: push.PermissionUnknown}, fmt.Errorf("native permission check: %w", err)
	}
	return normalize(raw), nil
}

func (a *Adapter) RequestPermissions(ctx context.Context) (push.PermissionState, error) {
	raw, err := a.shell.RequestPermissions(ctx)
	if err != nil {
		return push.PermissionState{Status: push.PermissionUnknown}, fmt.Errorf("native permission request: %w", err)
	}
	return normalize(raw), nil
}

func (a *Adapter) Register(ctx context.Context) (string, error) {
	token, err := a.shell.Register(ctx)
	if err != nil {
		return "", fmt.Errorf("native registration: %w", err)
	}
	a.logger.Debug("Native registration succeeded.", "token_prefix", prefix(token))
	return token, nil
}

func (a *Adapter) Unregister(ctx context.Context) error {
	return a.shell.Unregister(ctx)
}

func (a *Adapter) Listen(sink push.MessageSink) (func(), error) {
	stop := a.shell.Listen(func(ev bridge.Event) {
		msg := push.InboundMessage{
			Title:   ev.Title,
			Body:    ev.Body,
			Data:    ev.Data,
			Channel: push.ChannelNative,
		}
		switch ev.Type {
		case bridge.EventMessage:
			sink.HandleForeground(msg)
		case bridge.EventTap:
			sink.HandleTap(msg)
		default:
			a.logger.Warn("Dropping unknown bridge event.", "type", ev.Type)
		}
	})
	return stop, nil
}

// ShowNotification is a no-op: the OS renders native deliveries itself.
func (a *Adapter) ShowNotification(context.Context, string, string, map[string]string) error {
	return nil
}

// normalize maps the shell's permission strings onto the shared state. The
// shell may answer "prompt-with-rationale" on Android; that still means we
// can ask.
func normalize(raw string) push.PermissionState {
	switch raw {
	case "granted":
		return push.PermissionState{CanReceive: true, CanRequest: true, Status: push.PermissionGranted}
	case "denied":
		return push.PermissionState{Status: push.PermissionDenied}
	case "prompt", "prompt-with-rationale":
		return push.PermissionState{CanRequest: true, Status: push.PermissionPrompt}
	default:
		return push.PermissionState{CanRequest: true, Status: push.PermissionUnknown}
	}
}

func prefix(token string) string {
	if len(token) > 12 {
		return token[:12]
	}
	return token
}
