package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task is an actionable item extracted from a message. Category is free-form
// and evolves with the user's vocabulary.
type Task struct {
	UserID          string
	TaskID          string
	Title           string
	Description     string
	Category        string
	Status          TaskStatus
	Priority        TaskPriority
	DueDate         *time.Time
	SourceMessageID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
	Index           *SecondaryKey
}

// TaskInput carries the fields accepted when creating a task.
type TaskInput struct {
	UserID          string       `json:"user_id" validate:"required,keypart"`
	TaskID          string       `json:"task_id" validate:"omitempty,keypart"`
	Title           string       `json:"title" validate:"required"`
	Description     string       `json:"description"`
	Category        string       `json:"category"`
	Priority        TaskPriority `json:"priority" validate:"omitempty,oneof=high medium low"`
	DueDate         *time.Time   `json:"due_date"`
	SourceMessageID string       `json:"source_message_id" validate:"omitempty,keypart"`
}

// NewTask validates the input and builds a pending task.
func NewTask(in TaskInput) (Task, error) {
	if err := validateInput("task", in); err != nil {
		return Task{}, err
	}

	id := in.TaskID
	if id == "" {
		id = uuid.New().String()
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	now := time.Now().UTC()

	var due *time.Time
	if in.DueDate != nil {
		d := in.DueDate.UTC()
		due = &d
	}

	return Task{
		UserID:          in.UserID,
		TaskID:          id,
		Title:           in.Title,
		Description:     in.Description,
		Category:        in.Category,
		Status:          TaskPending,
		Priority:        priority,
		DueDate:         due,
		SourceMessageID: in.SourceMessageID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}
