// Package web implements the delivery channel backed by the browser's
// Notification and Push APIs.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/sweat24/go-push-client/internal/platform/bridge"
	"github.com/sweat24/go-push-client/pkg/push"
)

// Browser is the subset of the bridge client the web channel needs.
type Browser interface {
	Permissions(ctx context.Context) (string, error)
	RequestPermissions(ctx context.Context) (string, error)
	Subscribe(ctx context.Context, applicationServerKey string) (*webpush.Subscription, error)
	Unsubscribe(ctx context.Context) error
	ShowNotification(ctx context.Context, title, body string, data map[string]string) error
	Listen(onEvent func(bridge.Event)) (stop func())
}

type Adapter struct {
	browser        Browser
	vapidPublicKey string
	logger         *slog.Logger
}

func NewAdapter(browser Browser, vapidPublicKey string, logger *slog.Logger) *Adapter {
	if vapidPublicKey == "" {
		logger.Warn("VAPID public key missing; web registration will fail.")
	}
	return &Adapter{
		browser:        browser,
		vapidPublicKey: vapidPublicKey,
		logger:         logger.With("component", "WebAdapter"),
	}
}

func (a *Adapter) Channel() push.Channel { return push.ChannelWeb }

func (a *Adapter) CheckPermissions(ctx context.Context) (push.PermissionState, error) {
	raw, err := a.browser.Permissions(ctx)
	if err != nil {
		return push.PermissionState{Status: push.PermissionUnknown}, fmt.Errorf("web permission check: %w", err)
	}
	return normalize(raw), nil
}

func (a *Adapter) RequestPermissions(ctx context.Context) (push.PermissionState, error) {
	raw, err := a.browser.RequestPermissions(ctx)
	if err != nil {
		return push.PermissionState{Status: push.PermissionUnknown}, fmt.Errorf("web permission request: %w", err)
	}
	return normalize(raw), nil
}

// Register obtains a push subscription and encodes it as the channel's opaque
// delivery token. The backend unpacks the endpoint and keys when it fans out.
func (a *Adapter) Register(ctx context.Context) (string, error) {
	if a.vapidPublicKey == "" {
		return "", fmt.Errorf("web registration: no application server key: %w", push.ErrChannelUnavailable)
	}
	sub, err := a.browser.Subscribe(ctx, a.vapidPublicKey)
	if err != nil {
		return "", fmt.Errorf("web registration: %w", err)
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("web registration: encode subscription: %w", err)
	}
	a.logger.Debug("Web subscription obtained.", "endpoint", sub.Endpoint)
	return string(raw), nil
}

func (a *Adapter) Unregister(ctx context.Context) error {
	return a.browser.Unsubscribe(ctx)
}

func (a *Adapter) Listen(sink push.MessageSink) (func(), error) {
	stop := a.browser.Listen(func(ev bridge.Event) {
		msg := push.InboundMessage{
			Title:   ev.Title,
			Body:    ev.Body,
			Data:    ev.Data,
			Channel: push.ChannelWeb,
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

// ShowNotification synthesizes a visible notification. Browsers do not render
// foreground web-push messages on their own.
func (a *Adapter) ShowNotification(ctx context.Context, title, body string, data map[string]string) error {
	return a.browser.ShowNotification(ctx, title, body, data)
}

// normalize maps the browser Notification.permission values. "default" is the
// browser's word for not-yet-asked.
func normalize(raw string) push.PermissionState {
	switch raw {
	case "granted":
		return push.PermissionState{CanReceive: true, CanRequest: true, Status: push.PermissionGranted}
	case "denied":
		return push.PermissionState{Status: push.PermissionDenied}
	case "default", "prompt":
		return push.PermissionState{CanRequest: true, Status: push.PermissionPrompt}
	default:
		return push.PermissionState{CanRequest: true, Status: push.PermissionUnknown}
	}
}
