package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/customeros/mailsync/internal/utils"
)

func UserIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Store in gin context for later use
		c.Set("UserId", firstHeader(c, utils.UserIdHeaders))
		c.Set("UserEmail", firstHeader(c, utils.UserEmailHeaders))
		c.Next()
	}
}
