package interfaces

import (
	"context"

	"github.com/sendframe/sendframe/dto"
)

// BatchService is the batch transmission engine.
type BatchService interface {
	// Run executes a full streaming run of the batch: drains the eligible
	// set (PENDING and FAILED recipients) sequentially, records every
	// outcome, then triggers best-effort bounce reconciliation. Events are
	// pushed to sink; sink must never block.
	Run(ctx context.Context, batchID string, sink dto.ProgressSink)
	// ProcessChunk sends one bounded group of PENDING recipients
	// concurrently and returns the tally. Suitable for repeated invocation
	// by an external scheduler.
	ProcessChunk(ctx context.Context, batchID string) (*dto.ChunkResult, error)
	// AddRecipients appends PENDING recipients, grows the batch total and
	// reopens a COMPLETED batch. Returns the number appended.
	AddRecipients(ctx context.Context, batchID string, records []dto.RecipientRecord) (int, error)
	// EditRecipient rewrites a recipient's address. SENT recipients are
	// immutable; a FAILED recipient is reset to PENDING for retry.
	EditRecipient(ctx context.Context, batchID, recipientID, newEmail string) error
}

// BounceService reconciles delivery outcomes from bounce mail.
type BounceService interface {
	// CheckBounces scans the sender's inbound mailbox for recent
	// delivery-failure notifications and retroactively fails the matched
	// recipients. Idempotent against an unchanged mailbox.
	CheckBounces(ctx context.Context, senderID string) (*dto.BounceResult, error)
	// SweepAllSenders runs CheckBounces across every registered sender,
	// continuing past per-sender failures.
	SweepAllSenders(ctx context.Context) error
}

// EventsPublisher pushes domain events to the message broker, best effort.
type EventsPublisher interface {
	PublishEvent(ctx context.Context, routingKey string, payload interface{}) error
	Close() error
}
