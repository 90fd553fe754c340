package dynamodb

import (
	"fmt"
	"strconv"
	"time"

	"brain2-assistant/internal/domain"
	apperrors "brain2-assistant/internal/errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ============================================================================
// MESSAGE
// ============================================================================

type messageItem struct {
	Text         string     `dynamodbav:"text"`
	ChatID       string     `dynamodbav:"chat_id,omitempty"`
	Source       string     `dynamodbav:"source,omitempty"`
	Status       string     `dynamodbav:"status"`
	CreatedAt    time.Time  `dynamodbav:"created_at"`
	ProcessedAt  *time.Time `dynamodbav:"processed_at,omitempty"`
	ErrorMessage string     `dynamodbav:"error_message,omitempty"`
	S3Key        string     `dynamodbav:"s3_key,omitempty"`
}

// MessageCodec encodes messages as message#<timestamp>#<message_id> records
// carrying a ttl derived from the creation time.
type MessageCodec struct{}

func (MessageCodec) EntityType() string { return TypeMessage }
func (MessageCodec) Prefix() string     { return PrefixMessage }

func (MessageCodec) Key(m domain.Message) (string, string) {
	return UserPK(m.UserID), MessageSK(m.Timestamp, m.MessageID)
}

func (c MessageCodec) Encode(m domain.Message) (Record, error) {
	if err := domain.ValidateKeyPart("message", "user_id", m.UserID); err != nil {
		return nil, err
	}
	if err := domain.ValidateKeyPart("message", "message_id", m.MessageID); err != nil {
		return nil, err
	}
	if _, err := domain.ParseTimestamp(m.Timestamp); err != nil {
		return nil, apperrors.NewValidationError("message", "timestamp",
			"must use the layout "+domain.TimestampLayout)
	}

	pk, sk := c.Key(m)
	record, err := encodeItem(messageItem{
		Text:         m.Text,
		ChatID:       m.ChatID,
		Source:       m.Source,
		Status:       m.Status.String(),
		CreatedAt:    m.CreatedAt,
		ProcessedAt:  m.ProcessedAt,
		ErrorMessage: m.ErrorMessage,
		S3Key:        m.S3Key,
	}, TypeMessage, pk, sk, m.Index)
	if err != nil {
		return nil, err
	}

	record[AttrTTL] = &types.AttributeValueMemberN{Value: strconv.FormatInt(m.ExpiresAt(), 10)}
	return record, nil
}

func (MessageCodec) Decode(record Record) (domain.Message, error) {
	keys, err := decodeKeys(record, TypeMessage, 3)
	if err != nil {
		return domain.Message{}, err
	}
	timestamp, messageID := keys.segments[0], keys.segments[1]
	if _, err := domain.ParseTimestamp(timestamp); err != nil {
		return domain.Message{}, &apperrors.MalformedKeyError{
			EntityType: TypeMessage,
			Key:        ExtractStringValue(record[AttrSK]),
		}
	}

	var item messageItem
	if err := decodeBody(record, TypeMessage, &item); err != nil {
		return domain.Message{}, err
	}
	status, err := domain.ParseMessageStatus(item.Status)
	if err != nil {
		return domain.Message{}, fmt.Errorf("message %s: %w", messageID, err)
	}

	return domain.Message{
		UserID:       keys.userID,
		Timestamp:    timestamp,
		MessageID:    messageID,
		Text:         item.Text,
		ChatID:       item.ChatID,
		Source:       item.Source,
		Status:       status,
		CreatedAt:    item.CreatedAt,
		ProcessedAt:  item.ProcessedAt,
		ErrorMessage: item.ErrorMessage,
		S3Key:        item.S3Key,
		Index:        keys.index,
	}, nil
}

// ============================================================================
// TASK
// ============================================================================

type taskItem struct {
	Title           string     `dynamodbav:"title"`
	Description     string     `dynamodbav:"description,omitempty"`
	Category        string     `dynamodbav:"category,omitempty"`
	Status          string     `dynamodbav:"status"`
	Priority        string     `dynamodbav:"priority"`
	DueDate         *time.Time `dynamodbav:"due_date,omitempty"`
	SourceMessageID string     `dynamodbav:"source_message_id,omitempty"`
	CreatedAt       time.Time  `dynamodbav:"created_at"`
	UpdatedAt       time.Time  `dynamodbav:"updated_at"`
	CompletedAt     *time.Time `dynamodbav:"completed_at,omitempty"`
}

// TaskCodec encodes tasks as task#<task_id> records.
type TaskCodec struct{}

func (TaskCodec) EntityType() string { return TypeTask }
func (TaskCodec) Prefix() string     { return PrefixTask }

func (TaskCodec) Key(t domain.Task) (string, string) {
	return UserPK(t.UserID), TaskSK(t.TaskID)
}

func (c TaskCodec) Encode(t domain.Task) (Record, error) {
	if err := domain.ValidateKeyPart("task", "user_id", t.UserID); err != nil {
		return nil, err
	}
	if err := domain.ValidateKeyPart("task", "task_id", t.TaskID); err != nil {
		return nil, err
	}

	pk, sk := c.Key(t)
	return encodeItem(taskItem{
		Title:           t.Title,
		Description:     t.Description,
		Category:        t.Category,
		Status:          t.Status.String(),
		Priority:        t.Priority.String(),
		DueDate:         t.DueDate,
		SourceMessageID: t.SourceMessageID,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		CompletedAt:     t.CompletedAt,
	}, TypeTask, pk, sk, t.Index)
}

func (TaskCodec) Decode(record Record) (domain.Task, error) {
	keys, err := decodeKeys(record, TypeTask, 2)
	if err != nil {
		return domain.Task{}, err
	}
	taskID := keys.segments[0]

	var item taskItem
	if err := decodeBody(record, TypeTask, &item); err != nil {
		return domain.Task{}, err
	}
	status, err := domain.ParseTaskStatus(item.Status)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %s: %w", taskID, err)
	}
	priority, err := domain.ParseTaskPriority(item.Priority)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %s: %w", taskID, err)
	}

	return domain.Task{
		UserID:          keys.userID,
		TaskID:          taskID,
		Title:           item.Title,
		Description:     item.Description,
		Category:        item.Category,
		Status:          status,
		Priority:        priority,
		DueDate:         item.DueDate,
		SourceMessageID: item.SourceMessageID,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
		CompletedAt:     item.CompletedAt,
		Index:           keys.index,
	}, nil
}

// ============================================================================
// TODO
// ============================================================================

type todoItem struct {
	Text      string    `dynamodbav:"text"`
	Completed bool      `dynamodbav:"completed"`
	Order     int       `dynamodbav:"order"`
	CreatedAt time.Time `dynamodbav:"created_at"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// TodoCodec encodes todos as todo#<todo_id> records.
type TodoCodec struct{}

func (TodoCodec) EntityType() string { return TypeTodo }
func (TodoCodec) Prefix() string     { return PrefixTodo }

func (TodoCodec) Key(t domain.Todo) (string, string) {
	return UserPK(t.UserID), TodoSK(t.TodoID)
}

func (c TodoCodec) Encode(t domain.Todo) (Record, error) {
	if err := domain.ValidateKeyPart("todo", "user_id", t.UserID); err != nil {
		return nil, err
	}
	if err := domain.ValidateKeyPart("todo", "todo_id", t.TodoID); err != nil {
		return nil, err
	}

	pk, sk := c.Key(t)
	return encodeItem(todoItem{
		Text:      t.Text,
		Completed: t.Completed,
		Order:     t.Order,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}, TypeTodo, pk, sk, t.Index)
}

func (TodoCodec) Decode(record Record) (domain.Todo, error) {
	keys, err := decodeKeys(record, TypeTodo, 2)
	if err != nil {
		return domain.Todo{}, err
	}

	var item todoItem
	if err := decodeBody(record, TypeTodo, &item); err != nil {
		return domain.Todo{}, err
	}

	return domain.Todo{
		UserID:    keys.userID,
		TodoID:    keys.segments[0],
		Text:      item.Text,
		Completed: item.Completed,
		Order:     item.Order,
		CreatedAt: item.CreatedAt,
		UpdatedAt: item.UpdatedAt,
		Index:     keys.index,
	}, nil
}

// ============================================================================
// REMINDER
// ============================================================================

type reminderItem struct {
	Text            string     `dynamodbav:"text"`
	ScheduledFor    time.Time  `dynamodbav:"scheduled_for"`
	Recurrence      string     `dynamodbav:"recurrence"`
	Status          string     `dynamodbav:"status"`
	SentAt          *time.Time `dynamodbav:"sent_at,omitempty"`
	CreatedAt       time.Time  `dynamodbav:"created_at"`
	SourceMessageID string     `dynamodbav:"source_message_id,omitempty"`
}

// ReminderCodec encodes reminders as reminder#<reminder_id> records.
type ReminderCodec struct{}

func (ReminderCodec) EntityType() string { return TypeReminder }
func (ReminderCodec) Prefix() string     { return PrefixReminder }

func (ReminderCodec) Key(r domain.Reminder) (string, string) {
	return UserPK(r.UserID), ReminderSK(r.ReminderID)
}

func (c ReminderCodec) Encode(r domain.Reminder) (Record, error) {
	if err := domain.ValidateKeyPart("reminder", "user_id", r.UserID); err != nil {
		return nil, err
	}
	if err := domain.ValidateKeyPart("reminder", "reminder_id", r.ReminderID); err != nil {
		return nil, err
	}

	pk, sk := c.Key(r)
	return encodeItem(reminderItem{
		Text:            r.Text,
		ScheduledFor:    r.ScheduledFor,
		Recurrence:      r.Recurrence.String(),
		Status:          r.Status.String(),
		SentAt:          r.SentAt,
		CreatedAt:       r.CreatedAt,
		SourceMessageID: r.SourceMessageID,
	}, TypeReminder, pk, sk, r.Index)
}

func (ReminderCodec) Decode(record Record) (domain.Reminder, error) {
	keys, err := decodeKeys(record, TypeReminder, 2)
	if err != nil {
		return domain.Reminder{}, err
	}
	reminderID := keys.segments[0]

	var item reminderItem
	if err := decodeBody(record, TypeReminder, &item); err != nil {
		return domain.Reminder{}, err
	}
	status, err := domain.ParseReminderStatus(item.Status)
	if err != nil {
		return domain.Reminder{}, fmt.Errorf("reminder %s: %w", reminderID, err)
	}
	recurrence, err := domain.ParseReminderRecurrence(item.Recurrence)
	if err != nil {
		return domain.Reminder{}, fmt.Errorf("reminder %s: %w", reminderID, err)
	}

	return domain.Reminder{
		UserID:          keys.userID,
		ReminderID:      reminderID,
		Text:            item.Text,
		ScheduledFor:    item.ScheduledFor,
		Recurrence:      recurrence,
		Status:          status,
		SentAt:          item.SentAt,
		CreatedAt:       item.CreatedAt,
		SourceMessageID: item.SourceMessageID,
		Index:           keys.index,
	}, nil
}

var (
	_ Codec[domain.Message]  = MessageCodec{}
	_ Codec[domain.Task]     = TaskCodec{}
	_ Codec[domain.Todo]     = TodoCodec{}
	_ Codec[domain.Reminder] = ReminderCodec{}
)

// Attribute names of the entity bodies, for partial updates.
const (
	AttrStatus       = "status"
	AttrProcessedAt  = "processed_at"
	AttrErrorMessage = "error_message"
	AttrTitle        = "title"
	AttrDescription  = "description"
	AttrCategory     = "category"
	AttrPriority     = "priority"
	AttrDueDate      = "due_date"
	AttrUpdatedAt    = "updated_at"
	AttrCompletedAt  = "completed_at"
	AttrCompleted    = "completed"
	AttrOrder        = "order"
	AttrSentAt       = "sent_at"
)
