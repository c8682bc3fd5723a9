// Package router handles delivered messages: foreground deliveries while the
// app is active, and taps on notifications rendered while it was not.
package router

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sweat24/go-push-client/pkg/push"
)

// MaxRecent bounds the in-memory message buffer shown in the UI.
const MaxRecent = 10

// Navigator receives navigation intents resolved from notification taps.
type Navigator interface {
	Navigate(route string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(route string)

func (f NavigatorFunc) Navigate(route string) { f(route) }

// Notifier surfaces a local visual notification for foreground deliveries on
// channels where the platform does not render one itself.
type Notifier interface {
	ShowNotification(ctx context.Context, title, body string, data map[string]string) error
}

// Router is constructed independently of initialization so tap dispatch works
// even when the process was cold-started by the tap.
type Router struct {
	navigator Navigator
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time

	mu            sync.Mutex
	recent        []push.InboundMessage
	handlers      map[int]func(push.InboundMessage)
	nextHandlerID int
}

func New(navigator Navigator, notifier Notifier, logger *slog.Logger) *Router {
	return &Router{
		navigator: navigator,
		notifier:  notifier,
		logger:    logger.With("component", "MessageRouter"),
		now:       time.Now,
		handlers:  make(map[int]func(push.InboundMessage)),
	}
}

// HandleForeground normalizes the payload, appends it to the bounded buffer,
// synthesizes a visible notification where the platform did not, and fans the
// message out to subscribers.
func (r *Router) HandleForeground(msg push.InboundMessage) {
	msg = r.normalize(msg)

	r.mu.Lock()
	r.recent = append(r.recent, msg)
	if len(r.recent) > MaxRecent {
		r.recent = r.recent[len(r.recent)-MaxRecent:]
	}
	handlers := make([]func(push.InboundMessage), 0, len(r.handlers))
	for _, h := range r.handlers {
		handlers = append(handlers, h)
	}
	r.mu.Unlock()

	r.logger.Debug("Foreground message received.", "title", msg.Title, "type", msg.Data["type"])

	if r.notifier != nil {
		if err := r.notifier.ShowNotification(context.Background(), msg.Title, msg.Body, msg.Data); err != nil {
			r.logger.Warn("Failed to surface local notification.", "err", err)
		}
	}

	for _, h := range handlers {
		h(msg)
	}
}

// HandleTap resolves the tapped notification to a navigation intent.
func (r *Router) HandleTap(msg push.InboundMessage) {
	msg = r.normalize(msg)
	route := RouteFor(msg.Data)
	r.logger.Info("Notification tap dispatched.", "type", msg.Data["type"], "route", route)
	r.navigator.Navigate(route)
}

// RouteFor maps a message's data payload onto an application route. Unknown
// and missing types fall back to home.
func RouteFor(data map[string]string) string {
	switch data["type"] {
	case string(push.KindPackageExpiry), string(push.KindPackageExpiryWeek), string(push.KindPackageExpiry2Days):
		return "/packages"
	case string(push.KindAppointmentReminder):
		return "/bookings"
	case string(push.KindQuestionnaire):
		if id := data["questionnaire_id"]; id != "" {
			return "/questionnaires/" + id
		}
		return "/questionnaires"
	default:
		return "/"
	}
}

// OnMessage subscribes to foreground deliveries. The returned function
// unsubscribes and is safe to call more than once.
func (r *Router) OnMessage(handler func(push.InboundMessage)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextHandlerID
	r.nextHandlerID++
	r.handlers[id] = handler
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.handlers, id)
		r.mu.Unlock()
	}
}

// Recent returns a copy of the buffered messages, oldest first.
func (r *Router) Recent() []push.InboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]push.InboundMessage, len(r.recent))
	copy(out, r.recent)
	return out
}

func (r *Router) normalize(msg push.InboundMessage) push.InboundMessage {
	if msg.Data == nil {
		msg.Data = map[string]string{}
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = r.now()
	}
	return msg
}
