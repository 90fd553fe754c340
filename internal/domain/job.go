package domain

// ProcessingJob is the queue payload that asks the processor to run the agent
// over one stored message. Its fields locate the message record.
type ProcessingJob struct {
	UserID    string `json:"user_id"`
	MessageID string `json:"message_id"`
	Timestamp string `json:"timestamp"`
}

// JobFor builds the processing job of a stored message.
func JobFor(m Message) ProcessingJob {
	return ProcessingJob{UserID: m.UserID, MessageID: m.MessageID, Timestamp: m.Timestamp}
}
