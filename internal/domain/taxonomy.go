package domain

import (
	"fmt"

	apperrors "brain2-assistant/internal/errors"
)

// MessageStatus tracks a message through intake and agent processing.
type MessageStatus string

const (
	MessageReceived   MessageStatus = "received"
	MessageProcessing MessageStatus = "processing"
	MessageProcessed  MessageStatus = "processed"
	MessageFailed     MessageStatus = "failed"
	MessageSent       MessageStatus = "sent"
	MessageArchived   MessageStatus = "archived"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskArchived  TaskStatus = "archived"
)

// TaskPriority ranks tasks for the user.
type TaskPriority string

const (
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
)

// ReminderStatus is the delivery state of a reminder.
type ReminderStatus string

const (
	ReminderPending   ReminderStatus = "pending"
	ReminderSent      ReminderStatus = "sent"
	ReminderDismissed ReminderStatus = "dismissed"
)

// ReminderRecurrence controls whether a sent reminder is rescheduled.
type ReminderRecurrence string

const (
	RecurrenceOnce    ReminderRecurrence = "once"
	RecurrenceDaily   ReminderRecurrence = "daily"
	RecurrenceWeekly  ReminderRecurrence = "weekly"
	RecurrenceMonthly ReminderRecurrence = "monthly"
)

var (
	messageStatuses = []MessageStatus{
		MessageReceived, MessageProcessing, MessageProcessed, MessageFailed, MessageSent, MessageArchived,
	}
	taskStatuses        = []TaskStatus{TaskPending, TaskCompleted, TaskArchived}
	taskPriorities      = []TaskPriority{PriorityHigh, PriorityMedium, PriorityLow}
	reminderStatuses    = []ReminderStatus{ReminderPending, ReminderSent, ReminderDismissed}
	reminderRecurrences = []ReminderRecurrence{RecurrenceOnce, RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly}
)

func (s MessageStatus) String() string      { return string(s) }
func (s TaskStatus) String() string         { return string(s) }
func (p TaskPriority) String() string       { return string(p) }
func (s ReminderStatus) String() string     { return string(s) }
func (r ReminderRecurrence) String() string { return string(r) }

// Valid reports whether s is one of the known message statuses.
func (s MessageStatus) Valid() bool { return contains(messageStatuses, s) }

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool { return contains(taskStatuses, s) }

// Valid reports whether p is one of the known priorities.
func (p TaskPriority) Valid() bool { return contains(taskPriorities, p) }

// Valid reports whether s is one of the known reminder statuses.
func (s ReminderStatus) Valid() bool { return contains(reminderStatuses, s) }

// Valid reports whether r is one of the known recurrences.
func (r ReminderRecurrence) Valid() bool { return contains(reminderRecurrences, r) }

// ParseMessageStatus converts a persisted value into a MessageStatus.
func ParseMessageStatus(v string) (MessageStatus, error) {
	return parse(v, "message status", messageStatuses)
}

// ParseTaskStatus converts a persisted value into a TaskStatus.
func ParseTaskStatus(v string) (TaskStatus, error) {
	return parse(v, "task status", taskStatuses)
}

// ParseTaskPriority converts a persisted value into a TaskPriority.
func ParseTaskPriority(v string) (TaskPriority, error) {
	return parse(v, "task priority", taskPriorities)
}

// ParseReminderStatus converts a persisted value into a ReminderStatus.
func ParseReminderStatus(v string) (ReminderStatus, error) {
	return parse(v, "reminder status", reminderStatuses)
}

// ParseReminderRecurrence converts a persisted value into a ReminderRecurrence.
func ParseReminderRecurrence(v string) (ReminderRecurrence, error) {
	return parse(v, "reminder recurrence", reminderRecurrences)
}

func contains[T ~string](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func parse[T ~string](v, what string, set []T) (T, error) {
	if contains(set, T(v)) {
		return T(v), nil
	}
	var zero T
	return zero, apperrors.NewValidationError(what, "value", fmt.Sprintf("unknown value %q", v))
}
