package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"brain2-assistant/internal/domain"
	dynamo "brain2-assistant/internal/infrastructure/persistence/dynamodb"
	"brain2-assistant/internal/infrastructure/observability"

	"go.uber.org/zap/zapcore"
)

// MessageIntake records inbound chat messages and queues them for the agent.
type MessageIntake struct {
	messages Store[domain.Message]
	queue    JobQueue
	archive  Archiver
	events   *observability.EventLogger
	metrics  *observability.Collector
}

// NewMessageIntake creates the intake service. archive and metrics may be nil.
func NewMessageIntake(messages Store[domain.Message], queue JobQueue, archive Archiver, events *observability.EventLogger, metrics *observability.Collector) *MessageIntake {
	if events == nil {
		events = observability.NewEventLogger(nil)
	}
	return &MessageIntake{messages: messages, queue: queue, archive: archive, events: events, metrics: metrics}
}

// Receive archives the raw payload, stores the message in the received state
// pointing at the archive and enqueues its processing job. When the job
// cannot be queued the message is marked failed and the queue error is
// returned, so the webhook can ask for a redelivery.
func (s *MessageIntake) Receive(ctx context.Context, in domain.MessageInput) (domain.Message, error) {
	msg, err := domain.NewMessage(in)
	if err != nil {
		return domain.Message{}, err
	}

	details := observability.Details{"userId": msg.UserID, "messageId": msg.MessageID}
	if s.archive != nil {
		raw := in.Raw
		if len(raw) == 0 {
			if raw, err = json.Marshal(in); err != nil {
				return domain.Message{}, fmt.Errorf("encode message %s: %w", msg.MessageID, err)
			}
		}
		key, err := s.archive.Archive(ctx, msg.UserID, msg.MessageID, raw, msg.CreatedAt)
		if err != nil {
			return domain.Message{}, err
		}
		msg.S3Key = key
		details["s3Key"] = key
	}

	err = s.events.Measure(ctx, "store_message", details, func(ctx context.Context) error {
		return s.messages.Put(ctx, msg)
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("store message %s: %w", msg.MessageID, err)
	}
	s.metrics.CountMessageReceived()

	if err := s.queue.Enqueue(ctx, domain.JobFor(msg)); err != nil {
		s.events.LogError(ctx, "enqueue_failed", err, details)
		updates := dynamo.Updates{
			dynamo.AttrStatus:       domain.MessageFailed,
			dynamo.AttrErrorMessage: err.Error(),
			dynamo.AttrProcessedAt:  time.Now().UTC(),
		}
		if uerr := s.messages.Update(ctx, dynamo.UserPK(msg.UserID), dynamo.MessageSK(msg.Timestamp, msg.MessageID), updates); uerr != nil {
			s.events.LogError(ctx, "message_status_update_failed", uerr, details)
		}
		s.metrics.CountMessageFinished(domain.MessageFailed.String())
		return domain.Message{}, fmt.Errorf("enqueue message %s: %w", msg.MessageID, err)
	}

	s.events.LogEvent(ctx, "message_received", details, zapcore.InfoLevel)
	return msg, nil
}
