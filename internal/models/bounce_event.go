package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/sendframe/sendframe/internal/utils"
)

// BounceEvent is an audit record written once per recipient flipped by the
// bounce reconciler. Re-running against an unchanged mailbox adds no rows,
// so the table doubles as a check that reconciliation stays idempotent.
type BounceEvent struct {
	ID            string         `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	SenderID      string         `gorm:"column:sender_id;type:varchar(50);index;not null" json:"senderId"`
	BatchID       string         `gorm:"column:batch_id;type:varchar(50);index;not null" json:"batchId"`
	RecipientID   string         `gorm:"column:recipient_id;type:varchar(50);index;not null" json:"recipientId"`
	MessageID     string         `gorm:"column:message_id;type:varchar(255);index;not null" json:"messageId"`
	BounceSubject string         `gorm:"column:bounce_subject;type:varchar(1000)" json:"bounceSubject"`
	References    pq.StringArray `gorm:"column:bounce_references;type:text[]" json:"references"`
	DetectedAt    time.Time      `gorm:"column:detected_at;type:timestamp;not null" json:"detectedAt"`
	CreatedAt     time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (BounceEvent) TableName() string {
	return "bounce_events"
}

func (m *BounceEvent) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("bnce", 16)
	}
	return nil
}
