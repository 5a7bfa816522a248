package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/sendframe/sendframe/api/errors"
	interr "github.com/sendframe/sendframe/internal/errors"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/repository"
	"github.com/sendframe/sendframe/internal/tracing"
	"github.com/sendframe/sendframe/internal/utils"
	"github.com/sendframe/sendframe/services/renderer"
)

type TemplateHandler struct {
	repos *repository.Repositories
}

func NewTemplateHandler(repos *repository.Repositories) *TemplateHandler {
	return &TemplateHandler{repos: repos}
}

type templateRequest struct {
	Name        string `json:"name" binding:"required"`
	Subject     string `json:"subject" binding:"required"`
	HTMLContent string `json:"htmlContent" binding:"required"`
}

func (h *TemplateHandler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "TemplateHandler.Create")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		ownerID := utils.GetOwnerIdFromContext(ctx)
		if ownerID == "" {
			apierrors.Respond(c, interr.ErrOwnerMissing)
			return
		}

		var req templateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		template := &models.Template{
			OwnerID:     ownerID,
			Name:        req.Name,
			Subject:     req.Subject,
			HTMLContent: req.HTMLContent,
		}
		if err := h.repos.TemplateRepository.Create(ctx, template); err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusCreated, template)
	}
}

func (h *TemplateHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "TemplateHandler.List")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		templates, err := h.repos.TemplateRepository.GetByOwner(ctx, utils.GetOwnerIdFromContext(ctx))
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, templates)
	}
}

func (h *TemplateHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "TemplateHandler.Get")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("id"))

		template, err := h.ownedTemplate(c)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, template)
	}
}

func (h *TemplateHandler) Update() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "TemplateHandler.Update")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("id"))

		template, err := h.ownedTemplate(c)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		var req templateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		template.Name = req.Name
		template.Subject = req.Subject
		template.HTMLContent = req.HTMLContent
		if err := h.repos.TemplateRepository.Update(ctx, template); err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, template)
	}
}

func (h *TemplateHandler) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "TemplateHandler.Delete")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("id"))

		template, err := h.ownedTemplate(c)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		if err := h.repos.TemplateRepository.Delete(ctx, template.ID); err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}

// Variables reports the distinct {{name}} placeholders found in the
// template's subject and body, for building recipient import forms.
func (h *TemplateHandler) Variables() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "TemplateHandler.Variables")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("id"))

		template, err := h.ownedTemplate(c)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		variables := renderer.Variables(template.Subject, template.HTMLContent)
		c.JSON(http.StatusOK, gin.H{"variables": variables})
	}
}

func (h *TemplateHandler) ownedTemplate(c *gin.Context) (*models.Template, error) {
	ctx := c.Request.Context()

	template, err := h.repos.TemplateRepository.GetByID(ctx, c.Param("id"))
	if err != nil {
		return nil, err
	}
	if template.OwnerID != utils.GetOwnerIdFromContext(ctx) {
		return nil, repository.ErrTemplateNotFound
	}
	return template, nil
}
