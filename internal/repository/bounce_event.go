package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/sendframe/sendframe/interfaces"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/tracing"
)

type bounceEventRepository struct {
	db *gorm.DB
}

func NewBounceEventRepository(db *gorm.DB) interfaces.BounceEventRepository {
	return &bounceEventRepository{db: db}
}

func (r *bounceEventRepository) Create(ctx context.Context, event *models.BounceEvent) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "bounceEventRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if event == nil {
		return ErrInvalidInput
	}

	result := r.db.WithContext(ctx).Create(event)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
	}
	return result.Error
}

func (r *bounceEventRepository) GetBySender(ctx context.Context, senderID string) ([]models.BounceEvent, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "bounceEventRepository.GetBySender")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var events []models.BounceEvent
	err := r.db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		Order("detected_at desc").
		Find(&events).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return events, nil
}
