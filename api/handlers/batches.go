package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/sendframe/sendframe/api/errors"
	"github.com/sendframe/sendframe/dto"
	"github.com/sendframe/sendframe/interfaces"
	interr "github.com/sendframe/sendframe/internal/errors"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/repository"
	"github.com/sendframe/sendframe/internal/tracing"
	"github.com/sendframe/sendframe/internal/utils"
)

// progressBuffer bounds the SSE event queue of one streaming run. The send
// loop never blocks on a slow consumer; overflow events are dropped.
const progressBuffer = 256

type BatchHandler struct {
	repos   *repository.Repositories
	batches interfaces.BatchService
}

func NewBatchHandler(repos *repository.Repositories, batches interfaces.BatchService) *BatchHandler {
	return &BatchHandler{repos: repos, batches: batches}
}

type createBatchRequest struct {
	SenderID   string                `json:"senderId" binding:"required"`
	TemplateID string                `json:"templateId" binding:"required"`
	Recipients []dto.RecipientRecord `json:"recipients" binding:"required,min=1"`
}

// Create sets up a batch and its initial recipient rows in one transaction.
func (h *BatchHandler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "BatchHandler.Create")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		ownerID := utils.GetOwnerIdFromContext(ctx)
		if ownerID == "" {
			apierrors.Respond(c, interr.ErrOwnerMissing)
			return
		}

		var req createBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		sender, err := h.repos.SenderRepository.GetByID(ctx, req.SenderID)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}
		template, err := h.repos.TemplateRepository.GetByID(ctx, req.TemplateID)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}
		if sender.OwnerID != ownerID || template.OwnerID != ownerID {
			apierrors.Respond(c, interr.ErrNotOwned)
			return
		}

		recipients := make([]*models.Recipient, 0, len(req.Recipients))
		for _, record := range req.Recipients {
			if record.Email == "" {
				continue
			}
			recipients = append(recipients, &models.Recipient{
				Email:     record.Email,
				Variables: models.JSONMap(record.Variables),
			})
		}
		if len(recipients) == 0 {
			apierrors.Respond(c, repository.ErrInvalidInput)
			return
		}

		batch := &models.Batch{
			OwnerID:         ownerID,
			SenderID:        sender.ID,
			TemplateID:      template.ID,
			TotalRecipients: len(recipients),
		}

		err = h.repos.Transaction(ctx, func(txRepos *repository.Repositories) error {
			if err := txRepos.BatchRepository.Create(ctx, batch); err != nil {
				return err
			}
			for _, recipient := range recipients {
				recipient.BatchID = batch.ID
			}
			return txRepos.RecipientRepository.CreateMany(ctx, recipients)
		})
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusCreated, batch)
	}
}

func (h *BatchHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "BatchHandler.List")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		batches, err := h.repos.BatchRepository.GetByOwner(ctx, utils.GetOwnerIdFromContext(ctx))
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, batches)
	}
}

// Get returns the batch with its sender, template and recipient rows.
func (h *BatchHandler) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "BatchHandler.Get")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("id"))

		batch, err := h.ownedBatch(c, true)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		recipients, err := h.repos.RecipientRepository.GetByBatch(ctx, batch.ID)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"batch": batch, "recipients": recipients})
	}
}

// Stream executes a full streaming run, pushing one SSE event per
// recipient outcome. The run keeps going even if the client disconnects;
// durable state does not depend on anyone watching.
func (h *BatchHandler) Stream() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "BatchHandler.Stream")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("id"))

		batch, err := h.ownedBatch(c, false)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.Writer.Header().Set("Content-Type", "text/event-stream")
		c.Writer.Header().Set("Cache-Control", "no-cache")
		c.Writer.Header().Set("Connection", "keep-alive")

		progress := make(chan dto.ProgressEvent, progressBuffer)
		sink := func(event dto.ProgressEvent) {
			select {
			case progress <- event:
			default:
				// Slow consumer; drop rather than stall the run.
			}
		}

		// The run is detached from the request context so a dropped
		// connection cannot abort sends midway.
		runCtx := utils.WithOwnerId(context.Background(), utils.GetOwnerIdFromContext(ctx))
		go func() {
			defer close(progress)
			h.batches.Run(runCtx, batch.ID, sink)
		}()

		c.Stream(func(w io.Writer) bool {
			event, ok := <-progress
			if !ok {
				return false
			}
			c.SSEvent(string(event.Type), event)
			return true
		})
	}
}

// SendChunk processes one bounded group of pending recipients and reports
// the tally, for callers that drive a batch with repeated requests.
func (h *BatchHandler) SendChunk() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "BatchHandler.SendChunk")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("id"))

		batch, err := h.ownedBatch(c, false)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		result, err := h.batches.ProcessChunk(ctx, batch.ID)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

type addRecipientsRequest struct {
	Recipients []dto.RecipientRecord `json:"recipients" binding:"required,min=1"`
}

func (h *BatchHandler) AddRecipients() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "BatchHandler.AddRecipients")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("id"))

		batch, err := h.ownedBatch(c, false)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		var req addRecipientsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		added, err := h.batches.AddRecipients(ctx, batch.ID, req.Recipients)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"added": added})
	}
}

type editRecipientRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *BatchHandler) EditRecipient() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "BatchHandler.EditRecipient")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("recipientId"))

		batch, err := h.ownedBatch(c, false)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		var req editRecipientRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		err = h.batches.EditRecipient(ctx, batch.ID, c.Param("recipientId"), req.Email)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	}
}

func (h *BatchHandler) ownedBatch(c *gin.Context, withRelations bool) (*models.Batch, error) {
	ctx := c.Request.Context()

	var batch *models.Batch
	var err error
	if withRelations {
		batch, err = h.repos.BatchRepository.GetWithRelations(ctx, c.Param("id"))
	} else {
		batch, err = h.repos.BatchRepository.GetByID(ctx, c.Param("id"))
	}
	if err != nil {
		return nil, err
	}
	if batch.OwnerID != utils.GetOwnerIdFromContext(ctx) {
		return nil, repository.ErrBatchNotFound
	}
	return batch, nil
}
