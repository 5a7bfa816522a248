package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/sendframe/sendframe/internal/enum"
	"github.com/sendframe/sendframe/internal/utils"
)

// Sender is an SMTP-capable identity used as the From address of a batch.
// The app password is stored AES-256-CBC encrypted alongside its IV; the
// engine only ever sees the decrypted value through the secret box.
type Sender struct {
	ID                string            `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	OwnerID           string            `gorm:"column:owner_id;type:varchar(255);index;not null" json:"ownerId"`
	Email             string            `gorm:"column:email;type:varchar(255);index;not null" json:"email"`
	Label             string            `gorm:"column:label;type:varchar(255)" json:"label"`
	EncryptedPassword string            `gorm:"column:encrypted_password;type:text;not null" json:"-"`
	IV                string            `gorm:"column:iv;type:varchar(64);not null" json:"-"`
	SmtpServer        string            `gorm:"column:smtp_server;type:varchar(255);not null" json:"smtpServer"`
	SmtpPort          int               `gorm:"column:smtp_port;not null" json:"smtpPort"`
	SmtpSecurity      enum.SmtpSecurity `gorm:"column:smtp_security;type:varchar(50);not null;default:'tls'" json:"smtpSecurity"`
	ImapServer        string            `gorm:"column:imap_server;type:varchar(255);not null" json:"imapServer"`
	ImapPort          int               `gorm:"column:imap_port;not null" json:"imapPort"`
	ImapTLS           bool              `gorm:"column:imap_tls;not null;default:true" json:"imapTls"`
	CreatedAt         time.Time         `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Sender) TableName() string {
	return "senders"
}

func (m *Sender) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("sndr", 16)
	}
	return nil
}

// FromName is the display name used as the message origin, falling back to
// the bare address when no label was set.
func (m *Sender) FromName() string {
	if m.Label != "" {
		return m.Label
	}
	return m.Email
}
