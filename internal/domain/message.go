// Package domain contains the entities the assistant persists: inbound chat
// messages and the tasks, todos and reminders the agent derives from them.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageRetention is how long a message survives before the store's TTL
// mechanism may purge it.
const MessageRetention = 30 * 24 * time.Hour

// SecondaryKey is the optional GSI1 key pair carried by an entity. A nil
// *SecondaryKey keeps the entity out of the sparse index entirely.
type SecondaryKey struct {
	PK string
	SK string
}

// Message is one inbound chat message.
type Message struct {
	UserID       string
	Timestamp    string
	MessageID    string
	Text         string
	ChatID       string
	Source       string
	Status       MessageStatus
	CreatedAt    time.Time
	ProcessedAt  *time.Time
	ErrorMessage string
	S3Key        string
	Index        *SecondaryKey
}

// MessageInput carries the fields required to record a new message.
type MessageInput struct {
	UserID     string    `json:"user_id" validate:"required,keypart"`
	MessageID  string    `json:"message_id" validate:"omitempty,keypart"`
	Text       string    `json:"text" validate:"required"`
	ChatID     string    `json:"chat_id"`
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`

	// Raw is the inbound payload exactly as delivered, archived before the
	// message is stored.
	Raw []byte `json:"-"`
}

// NewMessage validates the input and builds a message in the received state.
func NewMessage(in MessageInput) (Message, error) {
	if err := validateInput("message", in); err != nil {
		return Message{}, err
	}

	received := in.ReceivedAt
	if received.IsZero() {
		received = time.Now()
	}
	received = received.UTC().Truncate(time.Second)

	id := in.MessageID
	if id == "" {
		id = uuid.New().String()
	}

	return Message{
		UserID:    in.UserID,
		Timestamp: FormatTimestamp(received),
		MessageID: id,
		Text:      in.Text,
		ChatID:    in.ChatID,
		Source:    in.Source,
		Status:    MessageReceived,
		CreatedAt: received,
	}, nil
}

// ExpiresAt is the epoch second after which the message may be purged. It is
// derived from the creation time alone so rewrites never extend a message's
// life. A message without CreatedAt falls back to its Timestamp, which
// records the same instant.
func (m Message) ExpiresAt() int64 {
	created := m.CreatedAt
	if created.IsZero() {
		if ts, err := ParseTimestamp(m.Timestamp); err == nil {
			created = ts
		}
	}
	return created.Add(MessageRetention).Unix()
}
