package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/customeros/mailsync/internal/utils"
)

func TenantValidationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := firstHeader(c, utils.TenantHeaders)
		if tenant == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant header is required"})
			c.Abort()
			return
		}

		// Store in gin context for later use
		c.Set("TenantName", tenant)
		c.Next()
	}
}

func firstHeader(c *gin.Context, headers []string) string {
	for _, header := range headers {
		if value := c.GetHeader(header); value != "" {
			return value
		}
	}
	return ""
}
