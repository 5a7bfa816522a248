package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/sendframe/sendframe/api/errors"
	"github.com/sendframe/sendframe/internal/crypto"
	"github.com/sendframe/sendframe/internal/enum"
	interr "github.com/sendframe/sendframe/internal/errors"
	"github.com/sendframe/sendframe/internal/models"
	"github.com/sendframe/sendframe/internal/repository"
	"github.com/sendframe/sendframe/internal/tracing"
	"github.com/sendframe/sendframe/internal/utils"
)

type SenderHandler struct {
	repos     *repository.Repositories
	secretBox *crypto.SecretBox
}

func NewSenderHandler(repos *repository.Repositories, secretBox *crypto.SecretBox) *SenderHandler {
	return &SenderHandler{repos: repos, secretBox: secretBox}
}

type createSenderRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Label        string `json:"label"`
	Password     string `json:"password" binding:"required"`
	SmtpServer   string `json:"smtpServer" binding:"required"`
	SmtpPort     int    `json:"smtpPort" binding:"required"`
	SmtpSecurity string `json:"smtpSecurity"`
	ImapServer   string `json:"imapServer" binding:"required"`
	ImapPort     int    `json:"imapPort" binding:"required"`
	ImapTLS      *bool  `json:"imapTls"`
}

// Create registers a sender identity. The app password is encrypted before
// it touches the database and never appears in any response.
func (h *SenderHandler) Create() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "SenderHandler.Create")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		ownerID := utils.GetOwnerIdFromContext(ctx)
		if ownerID == "" {
			apierrors.Respond(c, interr.ErrOwnerMissing)
			return
		}

		var req createSenderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		security := enum.SmtpSecurity(req.SmtpSecurity)
		if security != enum.SmtpSecurityStartTLS {
			security = enum.SmtpSecurityTLS
		}

		encrypted, iv, err := h.secretBox.Encrypt(req.Password)
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		sender := &models.Sender{
			OwnerID:           ownerID,
			Email:             req.Email,
			Label:             req.Label,
			EncryptedPassword: encrypted,
			IV:                iv,
			SmtpServer:        req.SmtpServer,
			SmtpPort:          req.SmtpPort,
			SmtpSecurity:      security,
			ImapServer:        req.ImapServer,
			ImapPort:          req.ImapPort,
			ImapTLS:           utils.GetOrDefault(req.ImapTLS, true),
		}

		if err := h.repos.SenderRepository.Create(ctx, sender); err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusCreated, sender)
	}
}

func (h *SenderHandler) List() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "SenderHandler.List")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		senders, err := h.repos.SenderRepository.GetByOwner(ctx, utils.GetOwnerIdFromContext(ctx))
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, senders)
	}
}

func (h *SenderHandler) Delete() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := tracing.StartTracerSpan(ctx, "SenderHandler.Delete")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)
		tracing.TagEntity(span, c.Param("id"))

		sender, err := h.repos.SenderRepository.GetByID(ctx, c.Param("id"))
		if err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}
		if sender.OwnerID != utils.GetOwnerIdFromContext(ctx) {
			apierrors.Respond(c, repository.ErrSenderNotFound)
			return
		}

		if err := h.repos.SenderRepository.Delete(ctx, sender.ID); err != nil {
			tracing.TraceErr(span, err)
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}
