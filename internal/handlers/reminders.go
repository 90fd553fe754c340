package handlers

import (
	"context"
	"errors"
	"time"

	"brain2-assistant/internal/domain"
	"brain2-assistant/internal/infrastructure/observability"

	"github.com/aws/aws-lambda-go/events"
)

// ReminderStore lists due reminders and records their delivery.
type ReminderStore interface {
	Due(ctx context.Context, before time.Time) ([]domain.Reminder, error)
	MarkSent(ctx context.Context, r domain.Reminder, at time.Time) (*domain.Reminder, error)
}

// Notifier hands a due reminder to the delivery channel.
type Notifier interface {
	NotifyReminder(ctx context.Context, r domain.Reminder) error
}

// DispatchResult summarises one dispatcher run.
type DispatchResult struct {
	Due    int `json:"due"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// ReminderDispatcher runs on a schedule and publishes every due reminder.
type ReminderDispatcher struct {
	reminders ReminderStore
	notifier  Notifier
	events    *observability.EventLogger
	now       func() time.Time
}

func NewReminderDispatcher(reminders ReminderStore, notifier Notifier, events *observability.EventLogger) *ReminderDispatcher {
	if events == nil {
		events = observability.NewEventLogger(nil)
	}
	return &ReminderDispatcher{reminders: reminders, notifier: notifier, events: events, now: time.Now}
}

// Handle publishes reminders due at the event time, or now when the event has
// none. A reminder that fails is left pending for the next run; the run
// reports an error when any reminder failed.
func (d *ReminderDispatcher) Handle(ctx context.Context, event events.EventBridgeEvent) (DispatchResult, error) {
	at := event.Time
	if at.IsZero() {
		at = d.now()
	}

	due, err := d.reminders.Due(ctx, at)
	if err != nil {
		return DispatchResult{}, err
	}

	result := DispatchResult{Due: len(due)}
	var errs []error
	for _, r := range due {
		details := observability.Details{"userId": r.UserID, "reminderId": r.ReminderID}
		if err := d.notifier.NotifyReminder(ctx, r); err != nil {
			d.events.LogError(ctx, "reminder_dispatch_failed", err, details)
			errs = append(errs, err)
			result.Failed++
			continue
		}
		if _, err := d.reminders.MarkSent(ctx, r, d.now()); err != nil {
			d.events.LogError(ctx, "reminder_mark_sent_failed", err, details)
			errs = append(errs, err)
			result.Failed++
			continue
		}
		result.Sent++
	}

	d.events.LogMetrics(ctx, "reminders_dispatched", map[string]float64{
		"due":    float64(result.Due),
		"sent":   float64(result.Sent),
		"failed": float64(result.Failed),
	}, nil)
	return result, errors.Join(errs...)
}
