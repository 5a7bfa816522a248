package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/sendframe/sendframe/internal/enum"
	"github.com/sendframe/sendframe/internal/utils"
)

// Batch is one send campaign: one sender, one template, many recipients.
//
// SuccessCount and FailureCount are running aggregates maintained with
// atomic column increments alongside each recipient status transition; they
// are never recomputed from recipient rows. The invariant
// SuccessCount+FailureCount <= TotalRecipients must hold at all times.
type Batch struct {
	ID              string           `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	OwnerID         string           `gorm:"column:owner_id;type:varchar(255);index;not null" json:"ownerId"`
	SenderID        string           `gorm:"column:sender_id;type:varchar(50);index;not null" json:"senderId"`
	TemplateID      string           `gorm:"column:template_id;type:varchar(50);index;not null" json:"templateId"`
	Status          enum.BatchStatus `gorm:"column:status;type:varchar(50);index;not null;default:'PENDING'" json:"status"`
	TotalRecipients int              `gorm:"column:total_recipients;not null;default:0" json:"totalRecipients"`
	SuccessCount    int              `gorm:"column:success_count;not null;default:0" json:"successCount"`
	FailureCount    int              `gorm:"column:failure_count;not null;default:0" json:"failureCount"`
	CreatedAt       time.Time        `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`

	Sender   *Sender   `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Template *Template `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
}

func (Batch) TableName() string {
	return "batches"
}

func (m *Batch) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("btch", 16)
	}
	return nil
}
