package middleware

import (
	"github.com/gin-gonic/gin"

	"siteauth/backend/internal/audit"
)

// ClientIP makes the caller's address available to security events recorded
// anywhere below the handler.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}
