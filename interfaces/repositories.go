package interfaces

import (
	"context"
	"time"

	"github.com/sendframe/sendframe/internal/enum"
	"github.com/sendframe/sendframe/internal/models"
)

type SenderRepository interface {
	Create(ctx context.Context, sender *models.Sender) error
	GetByID(ctx context.Context, id string) (*models.Sender, error)
	GetByOwner(ctx context.Context, ownerID string) ([]models.Sender, error)
	GetAll(ctx context.Context) ([]models.Sender, error)
	Delete(ctx context.Context, id string) error
}

type TemplateRepository interface {
	Create(ctx context.Context, template *models.Template) error
	GetByID(ctx context.Context, id string) (*models.Template, error)
	GetByOwner(ctx context.Context, ownerID string) ([]models.Template, error)
	Update(ctx context.Context, template *models.Template) error
	Delete(ctx context.Context, id string) error
}

type BatchRepository interface {
	Create(ctx context.Context, batch *models.Batch) error
	GetByID(ctx context.Context, id string) (*models.Batch, error)
	// GetWithRelations preloads the batch's sender and template.
	GetWithRelations(ctx context.Context, id string) (*models.Batch, error)
	GetByOwner(ctx context.Context, ownerID string) ([]models.Batch, error)
	UpdateStatus(ctx context.Context, id string, status enum.BatchStatus) error
	// ReopenIfCompleted transitions COMPLETED back to PENDING; any other
	// status is left untouched.
	ReopenIfCompleted(ctx context.Context, id string) error
	// IncrementCounters applies atomic deltas to the running aggregates.
	// Deltas may be negative (bounce reconciliation, failed-recipient reset).
	IncrementCounters(ctx context.Context, id string, successDelta, failureDelta int) error
	IncrementTotal(ctx context.Context, id string, delta int) error
}

type RecipientRepository interface {
	CreateMany(ctx context.Context, recipients []*models.Recipient) error
	GetByID(ctx context.Context, id string) (*models.Recipient, error)
	GetByBatch(ctx context.Context, batchID string) ([]models.Recipient, error)
	// GetByStatuses returns recipients of the batch whose status is in the
	// given set, in insertion order. limit <= 0 means no limit.
	GetByStatuses(ctx context.Context, batchID string, statuses []enum.RecipientStatus, limit int) ([]models.Recipient, error)
	GetByMessageID(ctx context.Context, messageID string) (*models.Recipient, error)
	MarkSent(ctx context.Context, id, messageID string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id, errorDetails string) error
	// ResetToPending clears error details and the sent metadata and
	// optionally rewrites the address (empty newEmail keeps the current one).
	ResetToPending(ctx context.Context, id, newEmail string) error
	CountByStatus(ctx context.Context, batchID string, status enum.RecipientStatus) (int64, error)
}

type BounceEventRepository interface {
	Create(ctx context.Context, event *models.BounceEvent) error
	GetBySender(ctx context.Context, senderID string) ([]models.BounceEvent, error)
}
