package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sendframe/sendframe/internal/utils"
)

const OwnerIDHeader = "X-OWNER-ID"

// OwnerContextMiddleware binds the calling owner's id into the request
// context. Every resource handler scopes reads and writes to this owner.
func OwnerContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerID := c.GetHeader(OwnerIDHeader)
		if ownerID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing owner id"})
			c.Abort()
			return
		}

		ctx := utils.WithOwnerId(c.Request.Context(), ownerID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
