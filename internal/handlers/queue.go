package handlers

import (
	"context"

	"brain2-assistant/internal/application/services"
	"brain2-assistant/internal/domain"
	"brain2-assistant/internal/infrastructure/messaging"
	"brain2-assistant/internal/infrastructure/observability"

	"github.com/aws/aws-lambda-go/events"
)

// Processor runs the agent over one queued message.
type Processor interface {
	Process(ctx context.Context, job domain.ProcessingJob) (services.ProcessOutcome, error)
}

// QueueResult is returned to the Lambda runtime for each job.
type QueueResult struct {
	MessageID    string `json:"message_id,omitempty"`
	TasksCreated int    `json:"tasks_created"`
	Skipped      bool   `json:"skipped,omitempty"`
}

// QueueHandler consumes processing jobs delivered by the EventBridge rule.
type QueueHandler struct {
	processor Processor
	events    *observability.EventLogger
}

func NewQueueHandler(processor Processor, events *observability.EventLogger) *QueueHandler {
	if events == nil {
		events = observability.NewEventLogger(nil)
	}
	return &QueueHandler{processor: processor, events: events}
}

// Handle processes the job in event. A job that cannot be decoded would fail
// on every retry, so it is logged and dropped. Processing errors are returned
// for the runtime to retry.
func (h *QueueHandler) Handle(ctx context.Context, event events.EventBridgeEvent) (QueueResult, error) {
	job, err := messaging.DecodeJob(event.Detail)
	if err != nil {
		h.events.LogError(ctx, "job_rejected", err, observability.Details{"eventId": event.ID})
		return QueueResult{Skipped: true}, nil
	}

	outcome, err := h.processor.Process(ctx, job)
	if err != nil {
		return QueueResult{MessageID: job.MessageID}, err
	}
	return QueueResult{MessageID: job.MessageID, TasksCreated: len(outcome.Tasks.Created)}, nil
}
