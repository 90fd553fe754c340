package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"brain2-assistant/internal/domain"
	dynamo "brain2-assistant/internal/infrastructure/persistence/dynamodb"
	"brain2-assistant/internal/infrastructure/observability"

	"go.uber.org/zap/zapcore"
)

// TodoService manages a user's checklist.
type TodoService struct {
	todos  Store[domain.Todo]
	events *observability.EventLogger
}

func NewTodoService(todos Store[domain.Todo], events *observability.EventLogger) *TodoService {
	if events == nil {
		events = observability.NewEventLogger(nil)
	}
	return &TodoService{todos: todos, events: events}
}

// AddTodo validates and stores a new open todo.
func (s *TodoService) AddTodo(ctx context.Context, in domain.TodoInput) (domain.Todo, error) {
	todo, err := domain.NewTodo(in)
	if err != nil {
		return domain.Todo{}, err
	}
	if err := s.todos.Put(ctx, todo); err != nil {
		return domain.Todo{}, err
	}
	s.events.LogEvent(ctx, "todo_added", observability.Details{"userId": todo.UserID, "todoId": todo.TodoID}, zapcore.InfoLevel)
	return todo, nil
}

// ListTodos returns the user's todos by position, oldest first on ties.
func (s *TodoService) ListTodos(ctx context.Context, userID string) ([]domain.Todo, error) {
	todos, err := s.todos.QueryPrefix(ctx, dynamo.UserPK(userID), dynamo.PrefixTodo)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(todos, func(i, j int) bool {
		if todos[i].Order != todos[j].Order {
			return todos[i].Order < todos[j].Order
		}
		return todos[i].CreatedAt.Before(todos[j].CreatedAt)
	})
	return todos, nil
}

// SetCompleted checks or unchecks a todo.
func (s *TodoService) SetCompleted(ctx context.Context, userID, todoID string, completed bool) error {
	return s.todos.Update(ctx, dynamo.UserPK(userID), dynamo.TodoSK(todoID), dynamo.Updates{
		dynamo.AttrCompleted: completed,
		dynamo.AttrUpdatedAt: time.Now().UTC(),
	})
}

// Reorder assigns each listed todo its index as position. It stops at the
// first failure.
func (s *TodoService) Reorder(ctx context.Context, userID string, todoIDs []string) error {
	now := time.Now().UTC()
	for i, id := range todoIDs {
		err := s.todos.Update(ctx, dynamo.UserPK(userID), dynamo.TodoSK(id), dynamo.Updates{
			dynamo.AttrOrder:     i,
			dynamo.AttrUpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("reorder todo %s: %w", id, err)
		}
	}
	return nil
}

// DeleteTodo removes a todo.
func (s *TodoService) DeleteTodo(ctx context.Context, userID, todoID string) error {
	return s.todos.Delete(ctx, dynamo.UserPK(userID), dynamo.TodoSK(todoID))
}
