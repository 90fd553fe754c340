package services

import (
	"context"
	"fmt"
	"time"

	"brain2-assistant/internal/domain"
	dynamo "brain2-assistant/internal/infrastructure/persistence/dynamodb"
	"brain2-assistant/internal/infrastructure/observability"

	"go.uber.org/zap/zapcore"
)

// ReminderService schedules reminders and tracks their delivery. Pending
// reminders of every user share one partition of the secondary index, ordered
// by scheduled time.
type ReminderService struct {
	reminders Store[domain.Reminder]
	events    *observability.EventLogger
	metrics   *observability.Collector
}

func NewReminderService(reminders Store[domain.Reminder], events *observability.EventLogger, metrics *observability.Collector) *ReminderService {
	if events == nil {
		events = observability.NewEventLogger(nil)
	}
	return &ReminderService{reminders: reminders, events: events, metrics: metrics}
}

// Schedule validates and stores a pending reminder.
func (s *ReminderService) Schedule(ctx context.Context, in domain.ReminderInput) (domain.Reminder, error) {
	r, err := domain.NewReminder(in)
	if err != nil {
		return domain.Reminder{}, err
	}
	if err := s.reminders.Put(ctx, r); err != nil {
		return domain.Reminder{}, err
	}
	s.events.LogEvent(ctx, "reminder_scheduled", observability.Details{
		"userId":       r.UserID,
		"reminderId":   r.ReminderID,
		"scheduledFor": domain.FormatTimestamp(r.ScheduledFor),
	}, zapcore.InfoLevel)
	return r, nil
}

// Due returns the pending reminders scheduled at or before the given time,
// earliest first.
func (s *ReminderService) Due(ctx context.Context, before time.Time) ([]domain.Reminder, error) {
	bound := domain.FormatTimestamp(before.UTC().Truncate(time.Second).Add(time.Second))
	return s.reminders.QueryIndex(ctx, domain.PendingReminderPartition, dynamo.WithSKBefore(bound))
}

// MarkSent records delivery of r and takes it out of the pending index. A
// recurring reminder first gets its next occurrence scheduled, which is
// returned. The next occurrence has an id derived from r, so when marking
// fails after scheduling a retry rewrites the same record, and when
// scheduling fails r stays pending and due.
func (s *ReminderService) MarkSent(ctx context.Context, r domain.Reminder, at time.Time) (*domain.Reminder, error) {
	var following *domain.Reminder
	if next, ok := r.NextOccurrence(); ok {
		scheduled, err := s.Schedule(ctx, domain.ReminderInput{
			UserID:          r.UserID,
			ReminderID:      domain.NextReminderID(r, next),
			Text:            r.Text,
			ScheduledFor:    next,
			Recurrence:      r.Recurrence,
			SourceMessageID: r.SourceMessageID,
		})
		if err != nil {
			return nil, fmt.Errorf("schedule next occurrence of %s: %w", r.ReminderID, err)
		}
		following = &scheduled
	}

	err := s.reminders.Update(ctx, dynamo.UserPK(r.UserID), dynamo.ReminderSK(r.ReminderID), dynamo.Updates{
		dynamo.AttrStatus: domain.ReminderSent,
		dynamo.AttrSentAt: at.UTC(),
		dynamo.AttrGSI1PK: nil,
		dynamo.AttrGSI1SK: nil,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.CountReminderSent()
	return following, nil
}

// Dismiss cancels a pending reminder.
func (s *ReminderService) Dismiss(ctx context.Context, userID, reminderID string) error {
	return s.reminders.Update(ctx, dynamo.UserPK(userID), dynamo.ReminderSK(reminderID), dynamo.Updates{
		dynamo.AttrStatus: domain.ReminderDismissed,
		dynamo.AttrGSI1PK: nil,
		dynamo.AttrGSI1SK: nil,
	})
}

// ListReminders returns every reminder of the user.
func (s *ReminderService) ListReminders(ctx context.Context, userID string) ([]domain.Reminder, error) {
	return s.reminders.QueryPrefix(ctx, dynamo.UserPK(userID), dynamo.PrefixReminder)
}
