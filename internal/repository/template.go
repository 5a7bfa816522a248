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

type templateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) interfaces.TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(ctx context.Context, template *models.Template) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "templateRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if template == nil {
		return ErrInvalidInput
	}

	result := r.db.WithContext(ctx).Create(template)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
	}
	return result.Error
}

func (r *templateRepository) GetByID(ctx context.Context, id string) (*models.Template, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "templateRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	var template models.Template
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&template).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTemplateNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &template, nil
}

func (r *templateRepository) GetByOwner(ctx context.Context, ownerID string) ([]models.Template, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "templateRepository.GetByOwner")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var templates []models.Template
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at desc").
		Find(&templates).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return templates, nil
}

func (r *templateRepository) Update(ctx context.Context, template *models.Template) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "templateRepository.Update")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if template == nil || template.ID == "" {
		return ErrInvalidInput
	}

	result := r.db.WithContext(ctx).Save(template)
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
	}
	return result.Error
}

func (r *templateRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "templateRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)
	tracing.TagEntity(span, id)

	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Template{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTemplateNotFound
	}
	return nil
}
