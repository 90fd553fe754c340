package services

import (
	"context"
	"fmt"
	"time"

	"brain2-assistant/internal/agent"
	"brain2-assistant/internal/domain"
	dynamo "brain2-assistant/internal/infrastructure/persistence/dynamodb"
	"brain2-assistant/internal/infrastructure/observability"

	"go.uber.org/zap/zapcore"
)

// ProcessOutcome summarises one processed message.
type ProcessOutcome struct {
	Reply     string
	Tasks     BatchResult
	Todos     []string
	Reminders []string
}

// MessageProcessor runs the agent over stored messages and persists what it
// extracts.
type MessageProcessor struct {
	messages  Store[domain.Message]
	agent     agent.Invoker
	tasks     *TaskService
	todos     *TodoService
	reminders *ReminderService
	events    *observability.EventLogger
	metrics   *observability.Collector
}

func NewMessageProcessor(
	messages Store[domain.Message],
	invoker agent.Invoker,
	tasks *TaskService,
	todos *TodoService,
	reminders *ReminderService,
	events *observability.EventLogger,
	metrics *observability.Collector,
) *MessageProcessor {
	if events == nil {
		events = observability.NewEventLogger(nil)
	}
	return &MessageProcessor{
		messages:  messages,
		agent:     invoker,
		tasks:     tasks,
		todos:     todos,
		reminders: reminders,
		events:    events,
		metrics:   metrics,
	}
}

// Process handles one job. A job whose message no longer exists, or was
// already processed, is acknowledged without work. When the agent fails the
// message is marked failed and the error is returned for redelivery.
func (p *MessageProcessor) Process(ctx context.Context, job domain.ProcessingJob) (ProcessOutcome, error) {
	pk, sk := dynamo.UserPK(job.UserID), dynamo.MessageSK(job.Timestamp, job.MessageID)
	details := observability.Details{"userId": job.UserID, "messageId": job.MessageID}

	msg, ok, err := p.messages.Get(ctx, pk, sk)
	if err != nil {
		return ProcessOutcome{}, fmt.Errorf("load message %s: %w", job.MessageID, err)
	}
	if !ok {
		p.events.LogEvent(ctx, "message_not_found", details, zapcore.WarnLevel)
		return ProcessOutcome{}, nil
	}
	if msg.Status == domain.MessageProcessed {
		p.events.LogEvent(ctx, "message_already_processed", details, zapcore.InfoLevel)
		return ProcessOutcome{}, nil
	}

	if err := p.messages.Update(ctx, pk, sk, dynamo.Updates{dynamo.AttrStatus: domain.MessageProcessing}); err != nil {
		return ProcessOutcome{}, fmt.Errorf("mark message %s processing: %w", job.MessageID, err)
	}

	var outcome ProcessOutcome
	err = p.events.Measure(ctx, "process_message", details, func(ctx context.Context) error {
		result, err := p.agent.Invoke(ctx, agent.Request{
			Prompt:    msg.Text,
			UserID:    msg.UserID,
			SessionID: sessionID(msg),
		})
		if err != nil {
			return err
		}
		outcome, err = p.apply(ctx, msg, result)
		return err
	})
	if err != nil {
		p.fail(ctx, pk, sk, err, details)
		return outcome, err
	}

	if err := p.messages.Update(ctx, pk, sk, dynamo.Updates{
		dynamo.AttrStatus:       domain.MessageProcessed,
		dynamo.AttrProcessedAt:  time.Now().UTC(),
		dynamo.AttrErrorMessage: nil,
	}); err != nil {
		return outcome, fmt.Errorf("mark message %s processed: %w", job.MessageID, err)
	}
	p.metrics.CountMessageFinished(domain.MessageProcessed.String())
	return outcome, nil
}

// apply persists the entities the agent extracted from msg. Tasks are created
// as a batch that tolerates invalid items; todos and reminders are skipped
// individually on validation errors.
func (p *MessageProcessor) apply(ctx context.Context, msg domain.Message, result agent.Result) (ProcessOutcome, error) {
	outcome := ProcessOutcome{Reply: result.Reply}

	if len(result.Tasks) > 0 {
		inputs := make([]domain.TaskInput, len(result.Tasks))
		for i, in := range result.Tasks {
			if in.SourceMessageID == "" {
				in.SourceMessageID = msg.MessageID
			}
			inputs[i] = in
		}
		batch, err := p.tasks.CreateTasks(ctx, msg.UserID, inputs)
		if err != nil {
			return outcome, err
		}
		outcome.Tasks = batch
	}

	for _, in := range result.Todos {
		in.UserID = msg.UserID
		todo, err := p.todos.AddTodo(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				return outcome, ctx.Err()
			}
			p.events.LogError(ctx, "todo_create_skipped", err, observability.Details{"userId": msg.UserID, "text": in.Text})
			continue
		}
		outcome.Todos = append(outcome.Todos, todo.TodoID)
	}

	for _, in := range result.Reminders {
		in.UserID = msg.UserID
		if in.SourceMessageID == "" {
			in.SourceMessageID = msg.MessageID
		}
		r, err := p.reminders.Schedule(ctx, in)
		if err != nil {
			if ctx.Err() != nil {
				return outcome, ctx.Err()
			}
			p.events.LogError(ctx, "reminder_create_skipped", err, observability.Details{"userId": msg.UserID, "text": in.Text})
			continue
		}
		outcome.Reminders = append(outcome.Reminders, r.ReminderID)
	}
	return outcome, nil
}

func (p *MessageProcessor) fail(ctx context.Context, pk, sk string, cause error, details observability.Details) {
	err := p.messages.Update(ctx, pk, sk, dynamo.Updates{
		dynamo.AttrStatus:       domain.MessageFailed,
		dynamo.AttrErrorMessage: cause.Error(),
		dynamo.AttrProcessedAt:  time.Now().UTC(),
	})
	if err != nil {
		p.events.LogError(ctx, "message_status_update_failed", err, details)
	}
	p.metrics.CountMessageFinished(domain.MessageFailed.String())
}

// sessionID keeps one agent conversation per chat, falling back to the user.
func sessionID(m domain.Message) string {
	if m.ChatID != "" {
		return m.ChatID
	}
	return m.UserID
}
