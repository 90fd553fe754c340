package services

import (
	"context"
	"sort"
	"time"

	"brain2-assistant/internal/domain"
	apperrors "brain2-assistant/internal/errors"
	dynamo "brain2-assistant/internal/infrastructure/persistence/dynamodb"
	"brain2-assistant/internal/infrastructure/observability"
)

// ItemFailure describes one batch input that was skipped.
type ItemFailure struct {
	Index int
	Title string
	Err   error
}

// BatchResult reports a batch creation. Created holds the ids in input order.
type BatchResult struct {
	Created  []string
	Failures []ItemFailure
}

// TaskPatch lists the task fields a caller may change. Nil fields are left
// alone; ClearDueDate removes the due date.
type TaskPatch struct {
	Title        *string
	Description  *string
	Category     *string
	Priority     *domain.TaskPriority
	Status       *domain.TaskStatus
	DueDate      *time.Time
	ClearDueDate bool
}

// TaskService manages a user's tasks.
type TaskService struct {
	tasks   Store[domain.Task]
	events  *observability.EventLogger
	metrics *observability.Collector
}

// NewTaskService creates the task service. metrics may be nil.
func NewTaskService(tasks Store[domain.Task], events *observability.EventLogger, metrics *observability.Collector) *TaskService {
	if events == nil {
		events = observability.NewEventLogger(nil)
	}
	return &TaskService{tasks: tasks, events: events, metrics: metrics}
}

// CreateTasks creates one task per input for userID. An input that fails
// validation or cannot be written is logged and skipped; the remaining tasks
// are still created. The call itself only fails when the context is done.
func (s *TaskService) CreateTasks(ctx context.Context, userID string, inputs []domain.TaskInput) (BatchResult, error) {
	var result BatchResult
	valid := make([]domain.Task, 0, len(inputs))
	positions := make([]int, 0, len(inputs))

	for i, in := range inputs {
		in.UserID = userID
		task, err := domain.NewTask(in)
		if err != nil {
			result.Failures = append(result.Failures, s.skip(ctx, userID, i, in.Title, err))
			continue
		}
		valid = append(valid, task)
		positions = append(positions, i)
	}

	if len(valid) > 0 {
		if err := s.tasks.BatchPut(ctx, valid); err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			// Write item by item and report failures per input.
			s.events.LogError(ctx, "task_batch_write_failed", err, observability.Details{"userId": userID, "count": len(valid)})
			for j, task := range valid {
				if err := s.tasks.Put(ctx, task); err != nil {
					if ctx.Err() != nil {
						return result, ctx.Err()
					}
					result.Failures = append(result.Failures, s.skip(ctx, userID, positions[j], task.Title, err))
					continue
				}
				result.Created = append(result.Created, task.TaskID)
			}
		} else {
			for _, task := range valid {
				result.Created = append(result.Created, task.TaskID)
			}
		}
	}

	sort.Slice(result.Failures, func(a, b int) bool { return result.Failures[a].Index < result.Failures[b].Index })
	s.metrics.CountTaskBatch(len(result.Created), len(result.Failures))
	s.events.LogMetrics(ctx, "tasks_batch_created", map[string]float64{
		"requested": float64(len(inputs)),
		"created":   float64(len(result.Created)),
		"failed":    float64(len(result.Failures)),
	}, observability.Details{"userId": userID})
	return result, nil
}

func (s *TaskService) skip(ctx context.Context, userID string, index int, title string, err error) ItemFailure {
	s.events.LogError(ctx, "task_create_skipped", err, observability.Details{
		"userId": userID,
		"index":  index,
		"title":  title,
	})
	return ItemFailure{Index: index, Title: title, Err: err}
}

// ListTasks returns the user's tasks, optionally limited to one status.
func (s *TaskService) ListTasks(ctx context.Context, userID string, status domain.TaskStatus) ([]domain.Task, error) {
	if status != "" && !status.Valid() {
		return nil, apperrors.NewValidationError("task", "status", "unknown value "+status.String())
	}
	tasks, err := s.tasks.QueryPrefix(ctx, dynamo.UserPK(userID), dynamo.PrefixTask)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return tasks, nil
	}
	filtered := tasks[:0]
	for _, t := range tasks {
		if t.Status == status {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// GetTask loads one task. A missing task is a NotFoundError.
func (s *TaskService) GetTask(ctx context.Context, userID, taskID string) (domain.Task, error) {
	pk, sk := dynamo.UserPK(userID), dynamo.TaskSK(taskID)
	task, ok, err := s.tasks.Get(ctx, pk, sk)
	if err != nil {
		return domain.Task{}, err
	}
	if !ok {
		return domain.Task{}, &apperrors.NotFoundError{PK: pk, SK: sk}
	}
	return task, nil
}

// CompleteTask marks a task completed.
func (s *TaskService) CompleteTask(ctx context.Context, userID, taskID string) error {
	now := time.Now().UTC()
	return s.tasks.Update(ctx, dynamo.UserPK(userID), dynamo.TaskSK(taskID), dynamo.Updates{
		dynamo.AttrStatus:      domain.TaskCompleted,
		dynamo.AttrCompletedAt: now,
		dynamo.AttrUpdatedAt:   now,
	})
}

// UpdateTask applies patch to an existing task.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, patch TaskPatch) error {
	updates := dynamo.Updates{}
	if patch.Title != nil {
		if *patch.Title == "" {
			return apperrors.NewValidationError("task", "title", "is required")
		}
		updates[dynamo.AttrTitle] = *patch.Title
	}
	if patch.Description != nil {
		updates[dynamo.AttrDescription] = *patch.Description
	}
	if patch.Category != nil {
		updates[dynamo.AttrCategory] = *patch.Category
	}
	if patch.Priority != nil {
		if !patch.Priority.Valid() {
			return apperrors.NewValidationError("task", "priority", "unknown value "+patch.Priority.String())
		}
		updates[dynamo.AttrPriority] = *patch.Priority
	}
	now := time.Now().UTC()
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return apperrors.NewValidationError("task", "status", "unknown value "+patch.Status.String())
		}
		updates[dynamo.AttrStatus] = *patch.Status
		if *patch.Status == domain.TaskCompleted {
			updates[dynamo.AttrCompletedAt] = now
		} else {
			updates[dynamo.AttrCompletedAt] = nil
		}
	}
	switch {
	case patch.ClearDueDate:
		updates[dynamo.AttrDueDate] = nil
	case patch.DueDate != nil:
		updates[dynamo.AttrDueDate] = patch.DueDate.UTC()
	}
	if len(updates) == 0 {
		return nil
	}
	updates[dynamo.AttrUpdatedAt] = now
	return s.tasks.Update(ctx, dynamo.UserPK(userID), dynamo.TaskSK(taskID), updates)
}

// DeleteTask removes a task.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) error {
	return s.tasks.Delete(ctx, dynamo.UserPK(userID), dynamo.TaskSK(taskID))
}
