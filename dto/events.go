package dto

import "time"

// BatchCompletedEvent is published to the event exchange when a streaming
// run finishes.
type BatchCompletedEvent struct {
	BatchID      string    `json:"batchId"`
	SenderID     string    `json:"senderId"`
	SuccessCount int       `json:"successCount"`
	FailureCount int       `json:"failureCount"`
	CompletedAt  time.Time `json:"completedAt"`
}

// RecipientBouncedEvent is published for every recipient flipped by the
// bounce reconciler.
type RecipientBouncedEvent struct {
	BatchID     string    `json:"batchId"`
	RecipientID string    `json:"recipientId"`
	Email       string    `json:"email"`
	MessageID   string    `json:"messageId"`
	DetectedAt  time.Time `json:"detectedAt"`
}
