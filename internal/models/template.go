package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/sendframe/sendframe/internal/utils"
)

// Template holds a reusable subject and HTML body. Both may contain
// {{name}} placeholder tokens substituted per recipient at send time.
type Template struct {
	ID          string    `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	OwnerID     string    `gorm:"column:owner_id;type:varchar(255);index;not null" json:"ownerId"`
	Name        string    `gorm:"column:name;type:varchar(255);not null" json:"name"`
	Subject     string    `gorm:"column:subject;type:varchar(1000);not null" json:"subject"`
	HTMLContent string    `gorm:"column:html_content;type:text;not null" json:"htmlContent"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (Template) TableName() string {
	return "templates"
}

func (m *Template) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("tmpl", 16)
	}
	return nil
}
