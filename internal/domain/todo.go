package domain

import (
	"time"

	"github.com/google/uuid"
)

// Todo is a lightweight checklist entry. Order is a caller-assigned position.
type Todo struct {
	UserID    string
	TodoID    string
	Text      string
	Completed bool
	Order     int
	CreatedAt time.Time
	UpdatedAt time.Time
	Index     *SecondaryKey
}

// TodoInput carries the fields accepted when adding a todo.
type TodoInput struct {
	UserID string `json:"user_id" validate:"required,keypart"`
	TodoID string `json:"todo_id" validate:"omitempty,keypart"`
	Text   string `json:"text" validate:"required"`
	Order  int    `json:"order" validate:"gte=0"`
}

// NewTodo validates the input and builds an open todo.
func NewTodo(in TodoInput) (Todo, error) {
	if err := validateInput("todo", in); err != nil {
		return Todo{}, err
	}

	id := in.TodoID
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()

	return Todo{
		UserID:    in.UserID,
		TodoID:    id,
		Text:      in.Text,
		Order:     in.Order,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
