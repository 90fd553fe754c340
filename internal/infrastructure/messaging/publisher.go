// Package messaging publishes to the assistant's EventBridge bus: message
// processing jobs, whose rule invokes the processor function, and due
// reminders, whose rule invokes the delivery target.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"brain2-assistant/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// Event envelope values matched by the processor rule.
const (
	DefaultSource      = "brain2.assistant"
	DetailTypeMessage  = "MessageReceived"
	DetailTypeReminder = "ReminderDue"
)

// PutEventsAPI is the subset of the EventBridge client the publisher needs.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

var _ PutEventsAPI = (*eventbridge.Client)(nil)

// EventBridgePublisher enqueues processing jobs as EventBridge events.
type EventBridgePublisher struct {
	client   PutEventsAPI
	eventBus string
	source   string
	logger   *zap.Logger
}

// NewEventBridgePublisher creates a publisher for eventBus.
func NewEventBridgePublisher(client PutEventsAPI, eventBus, source string, logger *zap.Logger) *EventBridgePublisher {
	if eventBus == "" {
		eventBus = "default"
	}
	if source == "" {
		source = DefaultSource
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventBridgePublisher{client: client, eventBus: eventBus, source: source, logger: logger}
}

// Enqueue publishes job. A rejected entry is reported as an error.
func (p *EventBridgePublisher) Enqueue(ctx context.Context, job domain.ProcessingJob) error {
	fields := []zap.Field{zap.String("user_id", job.UserID), zap.String("message_id", job.MessageID)}
	if err := p.put(ctx, DetailTypeMessage, job, fields); err != nil {
		return fmt.Errorf("enqueue job for message %s: %w", job.MessageID, err)
	}
	p.logger.Debug("Processing job enqueued", fields...)
	return nil
}

// ReminderDue is the event detail of a reminder ready for delivery.
type ReminderDue struct {
	UserID       string `json:"user_id"`
	ReminderID   string `json:"reminder_id"`
	Text         string `json:"text"`
	ScheduledFor string `json:"scheduled_for"`
}

// NotifyReminder publishes r for delivery to its user.
func (p *EventBridgePublisher) NotifyReminder(ctx context.Context, r domain.Reminder) error {
	detail := ReminderDue{
		UserID:       r.UserID,
		ReminderID:   r.ReminderID,
		Text:         r.Text,
		ScheduledFor: domain.FormatTimestamp(r.ScheduledFor),
	}
	fields := []zap.Field{zap.String("user_id", r.UserID), zap.String("reminder_id", r.ReminderID)}
	if err := p.put(ctx, DetailTypeReminder, detail, fields); err != nil {
		return fmt.Errorf("notify reminder %s: %w", r.ReminderID, err)
	}
	p.logger.Debug("Reminder published", fields...)
	return nil
}

func (p *EventBridgePublisher) put(ctx context.Context, detailType string, detail any, fields []zap.Field) error {
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("failed to marshal %s detail: %w", detailType, err)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(p.eventBus),
			Source:       aws.String(p.source),
			DetailType:   aws.String(detailType),
			Detail:       aws.String(string(raw)),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to put event: %w", err)
	}

	if out.FailedEntryCount > 0 {
		code, msg := "", ""
		if len(out.Entries) > 0 {
			code, msg = aws.ToString(out.Entries[0].ErrorCode), aws.ToString(out.Entries[0].ErrorMessage)
		}
		p.logger.Error("EventBridge rejected event", append(fields,
			zap.String("detail_type", detailType),
			zap.String("error_code", code),
			zap.String("error_message", msg))...)
		return fmt.Errorf("event bus %s rejected %s: %s %s", p.eventBus, detailType, code, msg)
	}
	return nil
}

// DecodeJob parses the detail of a processing job event.
func DecodeJob(detail json.RawMessage) (domain.ProcessingJob, error) {
	var job domain.ProcessingJob
	if err := json.Unmarshal(detail, &job); err != nil {
		return domain.ProcessingJob{}, fmt.Errorf("failed to decode job: %w", err)
	}
	if job.UserID == "" || job.MessageID == "" || job.Timestamp == "" {
		return domain.ProcessingJob{}, fmt.Errorf("incomplete job %s", string(detail))
	}
	return job, nil
}
