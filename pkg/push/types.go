// Package push contains the public interfaces and domain models for the
// Sweat24 push agent.
package push

import (
	"context"
	"fmt"
	"time"
)

// Channel identifies the delivery mechanism the agent registered through.
// It is selected once at process start and is immutable for the process
// lifetime.
type Channel string

const (
	ChannelNative Channel = "native"
	ChannelWeb    Channel = "web"
)

// PermissionStatus is the normalized three-valued (plus unknown) permission
// state shared by both channels.
type PermissionStatus string

const (
	PermissionGranted PermissionStatus = "granted"
	PermissionDenied  PermissionStatus = "denied"
	PermissionPrompt  PermissionStatus = "prompt"
	PermissionUnknown PermissionStatus = "unknown"
)

// PermissionState is the snapshot read by the initialization controller and
// UI collaborators. Invariant: CanReceive implies Status == granted.
type PermissionState struct {
	CanReceive bool             `json:"can_receive"`
	CanRequest bool             `json:"can_request"`
	Status     PermissionStatus `json:"status"`
}

// Phase is the single authoritative initialization state.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseRequestingPermission Phase = "requesting_permission"
	PhaseRegistering          Phase = "registering"
	PhaseActive               Phase = "active"
	PhaseFailed               Phase = "failed"
)

// ReminderKind tags a scheduled reminder. The kind plus the related entity id
// deterministically derive the reminder id, which is what makes scheduling
// idempotent.
type ReminderKind string

const (
	// KindPackageExpiry is the umbrella type carried in message data payloads.
	KindPackageExpiry       ReminderKind = "package_expiry"
	KindPackageExpiryWeek   ReminderKind = "package_expiry_week"
	KindPackageExpiry2Days  ReminderKind = "package_expiry_2days"
	KindAppointmentReminder ReminderKind = "appointment_reminder"
	KindQuestionnaire       ReminderKind = "questionnaire"
)

// PackageExpiryWeekID derives the id for the one-week-before reminder.
func PackageExpiryWeekID(packageID int64) string {
	return fmt.Sprintf("package_expiry_week_%d", packageID)
}

// PackageExpiry2DaysID derives the id for the two-days-before reminder.
func PackageExpiry2DaysID(packageID int64) string {
	return fmt.Sprintf("package_expiry_2days_%d", packageID)
}

// AppointmentReminderID derives the id for an appointment reminder.
func AppointmentReminderID(appointmentID int64) string {
	return fmt.Sprintf("appointment_reminder_%d", appointmentID)
}

// Reminder is a scheduling request. The backend owns the durable copy; a
// resubmission with the same id is an upsert, never a duplicate.
type Reminder struct {
	ID        string            `json:"id"`
	Kind      ReminderKind      `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	FireAt    time.Time         `json:"scheduled_for"`
	UserID    int64             `json:"user_id"`
	RelatedID int64             `json:"related_id,omitempty"`
	Active    bool              `json:"is_active"`
	Data      map[string]string `json:"data,omitempty"`
}

// InboundMessage is a delivered push message. Ephemeral; the router keeps at
// most the last few in memory for UI display.
type InboundMessage struct {
	Title      string            `json:"title,omitempty"`
	Body       string            `json:"body,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	Channel    Channel           `json:"channel"`
	ReceivedAt time.Time         `json:"received_at"`
}

// DeviceInfo accompanies token registrations so the backend can tell app
// installs apart.
type DeviceInfo struct {
	Platform    string `json:"platform"`
	IsNative    bool   `json:"is_native"`
	UserAgent   string `json:"user_agent,omitempty"`
	InstanceID  string `json:"instance_id,omitempty"`
	TokenSource string `json:"token_source,omitempty"`
}

// MessageSink receives delivered messages from a channel adapter. The two
// paths are independent: foreground delivery happens while the app is active,
// tap delivery when the user opens a notification rendered by the OS/browser.
type MessageSink interface {
	HandleForeground(msg InboundMessage)
	HandleTap(msg InboundMessage)
}

// Adapter is the per-channel capability surface. Implementations exist for
// the native OS shell and for the browser; business logic never branches on
// the channel, only adapters do.
type Adapter interface {
	Channel() Channel

	// CheckPermissions recomputes the permission state from the platform.
	// It is non-mutating and safe to poll.
	CheckPermissions(ctx context.Context) (PermissionState, error)

	// RequestPermissions may prompt the user. Callers bound it with a
	// context deadline.
	RequestPermissions(ctx context.Context) (PermissionState, error)

	// Register obtains the channel delivery token. For the web channel this
	// is the canonical JSON encoding of the push subscription.
	Register(ctx context.Context) (string, error)

	Unregister(ctx context.Context) error

	// Listen attaches the foreground and tap listeners. The returned remover
	// detaches them and is safe to call once.
	Listen(sink MessageSink) (remove func(), err error)

	// ShowNotification surfaces a local visual notification. The native
	// shell renders deliveries itself, so its implementation is a no-op;
	// the web implementation synthesizes one via the browser.
	ShowNotification(ctx context.Context, title, body string, data map[string]string) error
}
