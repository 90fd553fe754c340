package domain

import (
	"testing"
	"time"

	apperrors "brain2-assistant/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyValues(t *testing.T) {
	assert.Equal(t, []string{"received", "processing", "processed", "failed", "sent", "archived"},
		[]string{MessageReceived.String(), MessageProcessing.String(), MessageProcessed.String(),
			MessageFailed.String(), MessageSent.String(), MessageArchived.String()})
	assert.Equal(t, "pending", TaskPending.String())
	assert.Equal(t, "completed", TaskCompleted.String())
	assert.Equal(t, "archived", TaskArchived.String())
	assert.Equal(t, "high", PriorityHigh.String())
	assert.Equal(t, "medium", PriorityMedium.String())
	assert.Equal(t, "low", PriorityLow.String())
	assert.Equal(t, "dismissed", ReminderDismissed.String())
	assert.Equal(t, "monthly", RecurrenceMonthly.String())
}

func TestParseTaxonomy(t *testing.T) {
	t.Run("Should accept exact lowercase values", func(t *testing.T) {
		s, err := ParseMessageStatus("processed")
		require.NoError(t, err)
		assert.Equal(t, MessageProcessed, s)

		r, err := ParseReminderRecurrence("weekly")
		require.NoError(t, err)
		assert.Equal(t, RecurrenceWeekly, r)
	})

	t.Run("Should reject unknown or differently cased values", func(t *testing.T) {
		for _, v := range []string{"", "PROCESSED", "done"} {
			_, err := ParseMessageStatus(v)
			assert.True(t, apperrors.IsValidation(err), v)
		}
		_, err := ParseTaskPriority("urgent")
		assert.True(t, apperrors.IsValidation(err))
		assert.False(t, TaskStatus("open").Valid())
		assert.True(t, ReminderSent.Valid())
	})
}

func TestNewMessage(t *testing.T) {
	t.Run("Should build a received message with a sortable timestamp", func(t *testing.T) {
		at := time.Date(2026, 1, 31, 11, 30, 0, 999, time.FixedZone("CET", 3600))
		msg, err := NewMessage(MessageInput{UserID: "u1", Text: "hello", ReceivedAt: at})
		require.NoError(t, err)

		assert.Equal(t, "2026-01-31T10:30:00Z", msg.Timestamp)
		assert.Equal(t, MessageReceived, msg.Status)
		assert.NotEmpty(t, msg.MessageID)
		assert.Equal(t, time.Date(2026, 1, 31, 10, 30, 0, 0, time.UTC), msg.CreatedAt)
		assert.Equal(t, msg.CreatedAt.Add(MessageRetention).Unix(), msg.ExpiresAt())
	})

	t.Run("Should derive expiry from the timestamp without a creation time", func(t *testing.T) {
		msg := Message{UserID: "u1", Timestamp: "2026-01-31T10:30:00Z", MessageID: "m1"}
		want := time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC).Unix()
		assert.Equal(t, want, msg.ExpiresAt())
	})

	t.Run("Should require user and text", func(t *testing.T) {
		_, err := NewMessage(MessageInput{})
		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "user_id")
		assert.Contains(t, verr.Fields, "text")
	})

	t.Run("Should reject a user id containing the key separator", func(t *testing.T) {
		_, err := NewMessage(MessageInput{UserID: "u#1", Text: "hello"})
		var verr *apperrors.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "must not contain '#'", verr.Fields["user_id"])
	})
}

func TestNewTask(t *testing.T) {
	t.Run("Should default to a pending medium task", func(t *testing.T) {
		task, err := NewTask(TaskInput{UserID: "u1", Title: "File taxes"})
		require.NoError(t, err)
		assert.Equal(t, TaskPending, task.Status)
		assert.Equal(t, PriorityMedium, task.Priority)
		assert.NotEmpty(t, task.TaskID)
		assert.Equal(t, task.CreatedAt, task.UpdatedAt)
	})

	t.Run("Should fail fast on a missing title", func(t *testing.T) {
		_, err := NewTask(TaskInput{UserID: "u1"})
		assert.True(t, apperrors.IsValidation(err))
		assert.Contains(t, err.Error(), "title is required")
	})

	t.Run("Should reject an unknown priority", func(t *testing.T) {
		_, err := NewTask(TaskInput{UserID: "u1", Title: "x", Priority: "urgent"})
		assert.True(t, apperrors.IsValidation(err))
	})
}

func TestNewTodo(t *testing.T) {
	todo, err := NewTodo(TodoInput{UserID: "u1", Text: "call mom", Order: 2})
	require.NoError(t, err)
	assert.False(t, todo.Completed)
	assert.Equal(t, 2, todo.Order)
	assert.Nil(t, todo.Index)

	_, err = NewTodo(TodoInput{UserID: "u1", Text: "x", Order: -1})
	assert.True(t, apperrors.IsValidation(err))
}

func TestReminder(t *testing.T) {
	at := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)

	t.Run("Should index a new reminder as pending", func(t *testing.T) {
		r, err := NewReminder(ReminderInput{UserID: "u1", ReminderID: "r1", Text: "stand up", ScheduledFor: at})
		require.NoError(t, err)
		assert.Equal(t, RecurrenceOnce, r.Recurrence)
		assert.Equal(t, ReminderPending, r.Status)
		require.NotNil(t, r.Index)
		assert.Equal(t, PendingReminderPartition, r.Index.PK)
		assert.Equal(t, "2026-01-31T09:00:00Z#u1#r1", r.Index.SK)
	})

	t.Run("Should require a schedule", func(t *testing.T) {
		_, err := NewReminder(ReminderInput{UserID: "u1", Text: "x"})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("Should compute the next occurrence", func(t *testing.T) {
		cases := map[ReminderRecurrence]time.Time{
			RecurrenceDaily:   at.AddDate(0, 0, 1),
			RecurrenceWeekly:  at.AddDate(0, 0, 7),
			RecurrenceMonthly: time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		}
		for rec, want := range cases {
			next, ok := Reminder{ScheduledFor: at, Recurrence: rec}.NextOccurrence()
			assert.True(t, ok, rec)
			assert.Equal(t, want, next, rec)
		}
		_, ok := Reminder{ScheduledFor: at, Recurrence: RecurrenceOnce}.NextOccurrence()
		assert.False(t, ok)
	})

	t.Run("Should carry the source message", func(t *testing.T) {
		r, err := NewReminder(ReminderInput{UserID: "u1", Text: "call", ScheduledFor: at, SourceMessageID: "100-00000000000000000007"})
		require.NoError(t, err)
		assert.Equal(t, "100-00000000000000000007", r.SourceMessageID)
	})

	t.Run("Should derive a stable id for the next occurrence", func(t *testing.T) {
		r := Reminder{UserID: "u1", ReminderID: "r1", ScheduledFor: at, Recurrence: RecurrenceDaily}
		next, _ := r.NextOccurrence()

		id := NextReminderID(r, next)
		assert.Equal(t, id, NextReminderID(r, next))
		assert.NotEqual(t, id, NextReminderID(r, next.AddDate(0, 0, 1)))
		assert.NotEqual(t, id, NextReminderID(Reminder{UserID: "u2", ReminderID: "r1"}, next))
		assert.NotContains(t, id, KeySeparator)
	})
}
