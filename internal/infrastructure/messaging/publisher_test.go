package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"brain2-assistant/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventBridge struct {
	inputs []*eventbridge.PutEventsInput
	out    *eventbridge.PutEventsOutput
	err    error
}

func (f *fakeEventBridge) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	if f.out != nil {
		return f.out, nil
	}
	return &eventbridge.PutEventsOutput{}, nil
}

func TestEnqueue(t *testing.T) {
	job := domain.ProcessingJob{UserID: "u1", MessageID: "m1", Timestamp: "2026-01-31T10:30:00Z"}

	t.Run("Should publish the job as event detail", func(t *testing.T) {
		client := &fakeEventBridge{}
		p := NewEventBridgePublisher(client, "brain2-bus", "", nil)

		require.NoError(t, p.Enqueue(context.Background(), job))
		require.Len(t, client.inputs, 1)
		entry := client.inputs[0].Entries[0]
		assert.Equal(t, "brain2-bus", aws.ToString(entry.EventBusName))
		assert.Equal(t, DefaultSource, aws.ToString(entry.Source))
		assert.Equal(t, DetailTypeMessage, aws.ToString(entry.DetailType))

		decoded, err := DecodeJob(json.RawMessage(aws.ToString(entry.Detail)))
		require.NoError(t, err)
		assert.Equal(t, job, decoded)
	})

	t.Run("Should report rejected entries", func(t *testing.T) {
		client := &fakeEventBridge{out: &eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries:          []types.PutEventsResultEntry{{ErrorCode: aws.String("ThrottlingException")}},
		}}
		err := NewEventBridgePublisher(client, "", "", nil).Enqueue(context.Background(), job)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ThrottlingException")
	})

	t.Run("Should wrap client errors", func(t *testing.T) {
		cause := errors.New("network down")
		err := NewEventBridgePublisher(&fakeEventBridge{err: cause}, "", "", nil).Enqueue(context.Background(), job)
		assert.ErrorIs(t, err, cause)
	})
}

func TestDecodeJob(t *testing.T) {
	_, err := DecodeJob(json.RawMessage(`{"user_id":"u1"}`))
	assert.Error(t, err)

	_, err = DecodeJob(json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestNotifyReminder(t *testing.T) {
	client := &fakeEventBridge{}
	p := NewEventBridgePublisher(client, "brain2-bus", "", nil)
	r := domain.Reminder{
		UserID:       "u1",
		ReminderID:   "r1",
		Text:         "stretch",
		ScheduledFor: time.Date(2026, 1, 31, 11, 30, 0, 0, time.UTC),
	}

	require.NoError(t, p.NotifyReminder(context.Background(), r))
	require.Len(t, client.inputs, 1)
	entry := client.inputs[0].Entries[0]
	assert.Equal(t, DetailTypeReminder, aws.ToString(entry.DetailType))

	var detail ReminderDue
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, ReminderDue{UserID: "u1", ReminderID: "r1", Text: "stretch", ScheduledFor: "2026-01-31T11:30:00Z"}, detail)
}
