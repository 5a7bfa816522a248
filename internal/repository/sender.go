package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/sendframe/sendframe/interfaces"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/tracing"
)

type senderRepository struct {
	db *gorm.DB
}

func NewSenderRepository(db *gorm.DB) interfaces.SenderRepository {
	return &senderRepository{db: db}
}

func (r *senderRepository) Create(ctx context.Context, sender *models.Sender) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if sender == nil {
		return ErrInvalidInput
	}

	var count int64
	err := r.db.WithContext(ctx).Model(&models.Sender{}).
		Where("owner_id = ? AND email = ?", sender.OwnerID, sender.Email).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if count > 0 {
		return ErrSenderExists
	}

	result := r.db.WithContext(ctx).Create(sender)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
	}
	return result.Error
}

func (r *senderRepository) GetByID(ctx context.Context, id string) (*models.Sender, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var sender models.Sender
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&sender).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSenderNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &sender, nil
}

func (r *senderRepository) GetByOwner(ctx context.Context, ownerID string) ([]models.Sender, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderRepository.GetByOwner")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var senders []models.Sender
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&senders).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return senders, nil
}

func (r *senderRepository) GetAll(ctx context.Context) ([]models.Sender, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderRepository.GetAll")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var senders []models.Sender
	err := r.db.WithContext(ctx).Order("created_at asc").Find(&senders).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return senders, nil
}

func (r *senderRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Sender{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSenderNotFound
	}
	return nil
}
