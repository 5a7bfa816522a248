package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/sendframe/sendframe/api/errors"
	"github.com/sendframe/sendframe/interfaces"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/repository"
	"github.com/sendframe/sendframe/internal/tracing"
	"github.com/sendframe/sendframe/internal/utils"
)

type BounceHandler struct {
	repos   *repository.Repositories
	bounces interfaces.BounceService
}

func NewBounceHandler(repos *repository.Repositories, bounces interfaces.BounceService) *BounceHandler {
	return &BounceHandler{repos: repos, bounces: bounces}
}

// Check runs bounce reconciliation for one sender on demand and returns
// the recipients it flipped.
func (h *BounceHandler) Check() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "BounceHandler.Check")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("id"))

		sender, err := h.ownedSender(c)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		result, err := h.bounces.CheckBounces(ctx, sender.ID)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// History lists the audit records of past bounce reconciliations for a
// sender.
func (h *BounceHandler) History() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "BounceHandler.History")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("id"))

		sender, err := h.ownedSender(c)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		events, err := h.repos.BounceEventRepository.GetBySender(ctx, sender.ID)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, events)
	}
}

func (h *BounceHandler) ownedSender(c *gin.Context) (*models.Sender, error) {
	ctx := c.Request.Context()

	sender, err := h.repos.SenderRepository.GetByID(ctx, c.Param("id"))
	if err != nil {
		return nil, err
	}
	if sender.OwnerID != utils.GetOwnerIdFromContext(ctx) {
		return nil, repository.ErrSenderNotFound
	}
	return sender, nil
}
