// Package scheduler derives reminder schedules from domain events (package
// expiry dates, appointment times) and submits them to the backend, which owns
// all durable reminder state.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/sweat24/go-push-client/pkg/push"
)

// Lead times before the underlying event.
const (
	packageWeekLead  = 7 * 24 * time.Hour
	package2DaysLead = 2 * 24 * time.Hour
	appointmentLead  = time.Hour
)

// Store is the backend seam; *backend.Client satisfies it, as does the redis
// read-aside decorator.
type Store interface {
	ScheduleReminder(ctx context.Context, r push.Reminder) error
	CancelReminder(ctx context.Context, id string) error
	ListReminders(ctx context.Context, userID int64) ([]push.Reminder, error)
}

// PhaseSource reports the initialization phase. Scheduling is refused until
// the agent is active, so reminders are never queued against an unregistered
// token.
type PhaseSource interface {
	Phase() push.Phase
}

type Scheduler struct {
	store  Store
	phase  PhaseSource
	logger *slog.Logger
	now    func() time.Time
}

// Option tweaks a Scheduler; used by tests to pin the clock.
type Option func(*Scheduler)

func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(store Store, phase PhaseSource, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:  store,
		phase:  phase,
		logger: logger.With("component", "ReminderScheduler"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SchedulePackageExpiry schedules the one-week and two-day reminders before a
// package's end date. Reminders whose fire time is already past are skipped
// rather than fired late; a package expiring tomorrow gets only whatever still
// lies ahead, and zero reminders is still success.
func (s *Scheduler) SchedulePackageExpiry(ctx context.Context, end time.Time, userID, packageID int64, packageName string) ([]push.Reminder, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}

	candidates := []push.Reminder{
		{
			ID:     push.PackageExpiryWeekID(packageID),
			Kind:   push.KindPackageExpiryWeek,
			Title:  "Package expiring soon",
			Body:   fmt.Sprintf("Your %s package expires in 7 days. Renew now to keep training.", packageName),
			FireAt: end.Add(-packageWeekLead),
		},
		{
			ID:     push.PackageExpiry2DaysID(packageID),
			Kind:   push.KindPackageExpiry2Days,
			Title:  "Package expires in 2 days",
			Body:   fmt.Sprintf("Your %s package expires in 2 days. Contact the front desk to renew.", packageName),
			FireAt: end.Add(-package2DaysLead),
		},
	}

	now := s.now()
	scheduled := make([]push.Reminder, 0, len(candidates))
	for _, r := range candidates {
		if !r.FireAt.After(now) {
			s.logger.Debug("Skipping reminder already in the past.", "id", r.ID, "fire_at", r.FireAt)
			continue
		}
		r.UserID = userID
		r.RelatedID = packageID
		r.Active = true
		r.Data = map[string]string{
			"type":       string(push.KindPackageExpiry),
			"related_id": strconv.FormatInt(packageID, 10),
		}
		if err := s.store.ScheduleReminder(ctx, r); err != nil {
			return scheduled, fmt.Errorf("schedule package expiry reminder %s: %w", r.ID, err)
		}
		scheduled = append(scheduled, r)
	}

	s.logger.Info("Package expiry reminders scheduled.", "package_id", packageID, "count", len(scheduled))
	return scheduled, nil
}

// ScheduleAppointmentReminder schedules a reminder one hour before the
// appointment. An appointment starting within the hour gets no reminder, and
// that is success, not an error.
func (s *Scheduler) ScheduleAppointmentReminder(ctx context.Context, at time.Time, userID, appointmentID int64, title, trainerName string) (*push.Reminder, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}

	fireAt := at.Add(-appointmentLead)
	if !fireAt.After(s.now()) {
		s.logger.Debug("Appointment too soon for a reminder.", "appointment_id", appointmentID, "at", at)
		return nil, nil
	}

	body := fmt.Sprintf("Your session starts at %s.", at.Format("15:04"))
	if trainerName != "" {
		body = fmt.Sprintf("Your session with %s starts at %s.", trainerName, at.Format("15:04"))
	}
	r := push.Reminder{
		ID:        push.AppointmentReminderID(appointmentID),
		Kind:      push.KindAppointmentReminder,
		Title:     title,
		Body:      body,
		FireAt:    fireAt,
		UserID:    userID,
		RelatedID: appointmentID,
		Active:    true,
		Data: map[string]string{
			"type":       string(push.KindAppointmentReminder),
			"related_id": strconv.FormatInt(appointmentID, 10),
		},
	}
	if r.Title == "" {
		r.Title = "Upcoming session"
	}

	if err := s.store.ScheduleReminder(ctx, r); err != nil {
		return nil, fmt.Errorf("schedule appointment reminder %s: %w", r.ID, err)
	}
	s.logger.Info("Appointment reminder scheduled.", "appointment_id", appointmentID, "fire_at", r.FireAt)
	return &r, nil
}

// Cancel deactivates a reminder by id. Canceling an unknown id succeeds.
func (s *Scheduler) Cancel(ctx context.Context, id string) error {
	if err := s.requireActive(); err != nil {
		return err
	}
	if err := s.store.CancelReminder(ctx, id); err != nil {
		return fmt.Errorf("cancel reminder %s: %w", id, err)
	}
	return nil
}

// Reschedule replaces the reminders for an entity after its underlying time
// moved. Cancel always runs first so a partial failure leaves no stale
// reminder behind.
func (s *Scheduler) Reschedule(ctx context.Context, kind push.ReminderKind, entityID int64, newTime time.Time, userID int64, label string) error {
	if err := s.requireActive(); err != nil {
		return err
	}

	switch kind {
	case push.KindAppointmentReminder:
		if err := s.store.CancelReminder(ctx, push.AppointmentReminderID(entityID)); err != nil {
			return fmt.Errorf("reschedule: cancel old appointment reminder: %w", err)
		}
		_, err := s.ScheduleAppointmentReminder(ctx, newTime, userID, entityID, label, "")
		return err
	case push.KindPackageExpiry, push.KindPackageExpiryWeek, push.KindPackageExpiry2Days:
		// A moved end date shifts both derived reminders.
		for _, id := range []string{push.PackageExpiryWeekID(entityID), push.PackageExpiry2DaysID(entityID)} {
			if err := s.store.CancelReminder(ctx, id); err != nil {
				return fmt.Errorf("reschedule: cancel old package reminder: %w", err)
			}
		}
		_, err := s.SchedulePackageExpiry(ctx, newTime, userID, entityID, label)
		return err
	default:
		return fmt.Errorf("reschedule: unsupported reminder kind %q", kind)
	}
}

// List reads back the user's scheduled reminders from the backend.
func (s *Scheduler) List(ctx context.Context, userID int64) ([]push.Reminder, error) {
	reminders, err := s.store.ListReminders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return reminders, nil
}

func (s *Scheduler) requireActive() error {
	if phase := s.phase.Phase(); phase != push.PhaseActive {
		return fmt.Errorf("scheduler requires active agent (phase %q): %w", phase, push.ErrInvalidState)
	}
	return nil
}
