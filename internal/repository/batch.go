package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/sendframe/sendframe/interfaces"
	"github.com/sendframe/sendframe/internal/enum"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/tracing"
)

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) interfaces.BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, batch *models.Batch) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "batchRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if batch == nil {
		return ErrInvalidInput
	}

	result := r.db.WithContext(ctx).Create(batch)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
	}
	return result.Error
}

func (r *batchRepository) GetByID(ctx context.Context, id string) (*models.Batch, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "batchRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var batch models.Batch
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) GetWithRelations(ctx context.Context, id string) (*models.Batch, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "batchRepository.GetWithRelations")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var batch models.Batch
	err := r.db.WithContext(ctx).
		Preload("Sender").
		Preload("Template").
		Where("id = ?", id).
		First(&batch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &batch, nil
}

func (r *batchRepository) GetByOwner(ctx context.Context, ownerID string) ([]models.Batch, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "batchRepository.GetByOwner")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var batches []models.Batch
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&batches).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return batches, nil
}

func (r *batchRepository) UpdateStatus(ctx context.Context, id string, status enum.BatchStatus) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "batchRepository.UpdateStatus")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)
	span.LogKV("status", status.String())

	result := r.db.WithContext(ctx).
		Model(&models.Batch{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func (r *batchRepository) ReopenIfCompleted(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "batchRepository.ReopenIfCompleted")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	// Conditional update so a PROCESSING batch is never demoted.
	result := r.db.WithContext(ctx).
		Model(&models.Batch{}).
		Where("id = ? AND status = ?", id, enum.BatchStatusCompleted).
		Update("status", enum.BatchStatusPending)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
	}
	return result.Error
}

func (r *batchRepository) IncrementCounters(ctx context.Context, id string, successDelta, failureDelta int) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "batchRepository.IncrementCounters")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)
	span.LogKV("successDelta", successDelta, "failureDelta", failureDelta)

	updates := map[string]interface{}{}
	if successDelta != 0 {
		updates["success_count"] = gorm.Expr("success_count + ?", successDelta)
	}
	if failureDelta != 0 {
		updates["failure_count"] = gorm.Expr("failure_count + ?", failureDelta)
	}
	if len(updates) == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.Batch{}).
		Where("id = ?", id).
		UpdateColumns(updates)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBatchNotFound
	}
	return nil
}

func (r *batchRepository) IncrementTotal(ctx context.Context, id string, delta int) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "batchRepository.IncrementTotal")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)
	span.LogKV("delta", delta)

	if delta == 0 {
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.Batch{}).
		Where("id = ?", id).
		UpdateColumn("total_recipients", gorm.Expr("total_recipients + ?", delta))
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrBatchNotFound
	}
	return nil
}
