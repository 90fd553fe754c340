package domain

import (
	"time"

	"github.com/google/uuid"
)

// PendingReminderPartition is the GSI1 partition holding every reminder that
// still has to be delivered. Sent and dismissed reminders drop out of it.
const PendingReminderPartition = "reminder#pending"

// Reminder is a message to deliver back to the user at ScheduledFor.
type Reminder struct {
	UserID          string
	ReminderID      string
	Text            string
	ScheduledFor    time.Time
	Recurrence      ReminderRecurrence
	Status          ReminderStatus
	SentAt          *time.Time
	CreatedAt       time.Time
	SourceMessageID string
	Index           *SecondaryKey
}

// ReminderInput carries the fields accepted when scheduling a reminder.
type ReminderInput struct {
	UserID          string             `json:"user_id" validate:"required,keypart"`
	ReminderID      string             `json:"reminder_id" validate:"omitempty,keypart"`
	Text            string             `json:"text" validate:"required"`
	ScheduledFor    time.Time          `json:"scheduled_for" validate:"required"`
	Recurrence      ReminderRecurrence `json:"recurrence" validate:"omitempty,oneof=once daily weekly monthly"`
	SourceMessageID string             `json:"source_message_id"`
}

// NewReminder validates the input and builds a pending reminder placed in the
// pending-reminder index.
func NewReminder(in ReminderInput) (Reminder, error) {
	if err := validateInput("reminder", in); err != nil {
		return Reminder{}, err
	}

	id := in.ReminderID
	if id == "" {
		id = uuid.New().String()
	}
	recurrence := in.Recurrence
	if recurrence == "" {
		recurrence = RecurrenceOnce
	}

	r := Reminder{
		UserID:          in.UserID,
		ReminderID:      id,
		Text:            in.Text,
		ScheduledFor:    in.ScheduledFor.UTC(),
		Recurrence:      recurrence,
		Status:          ReminderPending,
		CreatedAt:       time.Now().UTC(),
		SourceMessageID: in.SourceMessageID,
	}
	r.Index = PendingReminderKey(r)
	return r, nil
}

// PendingReminderKey builds the GSI1 key that orders pending reminders by
// their scheduled time.
func PendingReminderKey(r Reminder) *SecondaryKey {
	return &SecondaryKey{
		PK: PendingReminderPartition,
		SK: FormatTimestamp(r.ScheduledFor) + KeySeparator + r.UserID + KeySeparator + r.ReminderID,
	}
}

// NextReminderID derives the id of the occurrence following r at next. The
// derivation is deterministic so a retried reschedule rewrites the same
// record instead of adding a duplicate.
func NextReminderID(r Reminder, next time.Time) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(r.UserID+KeySeparator+r.ReminderID+KeySeparator+FormatTimestamp(next))).String()
}

// NextOccurrence returns the next scheduled time for a recurring reminder and
// false for one-off reminders.
func (r Reminder) NextOccurrence() (time.Time, bool) {
	switch r.Recurrence {
	case RecurrenceDaily:
		return r.ScheduledFor.AddDate(0, 0, 1), true
	case RecurrenceWeekly:
		return r.ScheduledFor.AddDate(0, 0, 7), true
	case RecurrenceMonthly:
		return r.ScheduledFor.AddDate(0, 1, 0), true
	default:
		return time.Time{}, false
	}
}
