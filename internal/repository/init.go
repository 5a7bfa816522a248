package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/sendframe/sendframe/interfaces"
	"github.com/sendframe/sendframe/internal/models"
)

type Repositories struct {
	db *gorm.DB

	SenderRepository      interfaces.SenderRepository
	TemplateRepository    interfaces.TemplateRepository
	BatchRepository       interfaces.BatchRepository
	RecipientRepository   interfaces.RecipientRepository
	BounceEventRepository interfaces.BounceEventRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:                    db,
		SenderRepository:      NewSenderRepository(db),
		TemplateRepository:    NewTemplateRepository(db),
		BatchRepository:       NewBatchRepository(db),
		RecipientRepository:   NewRecipientRepository(db),
		BounceEventRepository: NewBounceEventRepository(db),
	}
}

// Transaction runs fn against a repository set bound to one database
// transaction. Used where a recipient status write and the matching batch
// counter change must land together.
func (r *Repositories) Transaction(ctx context.Context, fn func(txRepos *Repositories) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(InitRepositories(tx))
	})
}

func MigrateDB(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Sender{},
		&models.Template{},
		&models.Batch{},
		&models.Recipient{},
		&models.BounceEvent{},
	)
}
