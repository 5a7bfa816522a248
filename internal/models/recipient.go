package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/sendframe/sendframe/internal/enum"
	"github.com/sendframe/sendframe/internal/utils"
)

// Recipient is one target within a batch.
//
// Legal status transitions:
//
//	PENDING -> SENT      transport accepted the message
//	PENDING -> FAILED    transport rejected or errored
//	FAILED  -> PENDING   explicit retry via edit or batch reopen
//	SENT    -> FAILED    bounce reconciliation only
//
// MessageID is the client-generated RFC 5322 id (angle brackets stripped)
// stored on SENT and used to correlate a later bounce back to this row.
type Recipient struct {
	ID           string               `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	BatchID      string               `gorm:"column:batch_id;type:varchar(50);index;not null" json:"batchId"`
	Email        string               `gorm:"column:email;type:varchar(255);not null" json:"email"`
	Variables    JSONMap              `gorm:"column:variables;type:jsonb" json:"variables"`
	Status       enum.RecipientStatus `gorm:"column:status;type:varchar(50);index;not null;default:'PENDING'" json:"status"`
	SentAt       *time.Time           `gorm:"column:sent_at;type:timestamp" json:"sentAt,omitempty"`
	ErrorDetails string               `gorm:"column:error_details;type:text" json:"errorDetails,omitempty"`
	MessageID    string               `gorm:"column:message_id;type:varchar(255);index" json:"messageId,omitempty"`
	CreatedAt    time.Time            `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Recipient) TableName() string {
	return "batch_recipients"
}

func (m *Recipient) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("rcpt", 16)
	}
	return nil
}
