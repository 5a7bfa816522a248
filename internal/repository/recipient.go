package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/sendframe/sendframe/interfaces"
	"github.com/sendframe/sendframe/internal/enum"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/tracing"
	"github.com/sendframe/sendframe/internal/utils"
)

type recipientRepository struct {
	db *gorm.DB
}

func NewRecipientRepository(db *gorm.DB) interfaces.RecipientRepository {
	return &recipientRepository{db: db}
}

func (r *recipientRepository) CreateMany(ctx context.Context, recipients []*models.Recipient) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "recipientRepository.CreateMany")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	span.LogKV("count", len(recipients))

	if len(recipients) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).CreateInBatches(recipients, 100)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
	}
	return result.Error
}

func (r *recipientRepository) GetByID(ctx context.Context, id string) (*models.Recipient, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "recipientRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var recipient models.Recipient
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&recipient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &recipient, nil
}

func (r *recipientRepository) GetByBatch(ctx context.Context, batchID string) ([]models.Recipient, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "recipientRepository.GetByBatch")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var recipients []models.Recipient
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at asc").
		Find(&recipients).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return recipients, nil
}

func (r *recipientRepository) GetByStatuses(ctx context.Context, batchID string, statuses []enum.RecipientStatus, limit int) ([]models.Recipient, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "recipientRepository.GetByStatuses")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	query := r.db.WithContext(ctx).
		Where("batch_id = ? AND status IN ?", batchID, statuses).
		Order("created_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var recipients []models.Recipient
	if err := query.Find(&recipients).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return recipients, nil
}

func (r *recipientRepository) GetByMessageID(ctx context.Context, messageID string) (*models.Recipient, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "recipientRepository.GetByMessageID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var recipient models.Recipient
	err := r.db.WithContext(ctx).
		Where("message_id = ?", utils.NormalizeMessageID(messageID)).
		First(&recipient).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecipientNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &recipient, nil
}

func (r *recipientRepository) MarkSent(ctx context.Context, id, messageID string, sentAt time.Time) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "recipientRepository.MarkSent")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.Recipient{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        enum.RecipientStatusSent,
			"message_id":    utils.NormalizeMessageID(messageID),
			"sent_at":       sentAt,
			"error_details": "",
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecipientNotFound
	}
	return nil
}

func (r *recipientRepository) MarkFailed(ctx context.Context, id, errorDetails string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "recipientRepository.MarkFailed")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	result := r.db.WithContext(ctx).
		Model(&models.Recipient{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        enum.RecipientStatusFailed,
			"error_details": errorDetails,
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecipientNotFound
	}
	return nil
}

func (r *recipientRepository) ResetToPending(ctx context.Context, id, newEmail string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "recipientRepository.ResetToPending")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	updates := map[string]interface{}{
		"status":        enum.RecipientStatusPending,
		"error_details": "",
		"message_id":    "",
		"sent_at":       nil,
	}
	if newEmail != "" {
		updates["email"] = newEmail
	}

	result := r.db.WithContext(ctx).
		Model(&models.Recipient{}).
		Where("id = ?", id).
		Updates(updates)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecipientNotFound
	}
	return nil
}

func (r *recipientRepository) CountByStatus(ctx context.Context, batchID string, status enum.RecipientStatus) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "recipientRepository.CountByStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Recipient{}).
		Where("batch_id = ? AND status = ?", batchID, status).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}
