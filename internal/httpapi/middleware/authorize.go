package middleware

import (
	"github.com/gin-gonic/gin"

	accountdomain "siteauth/backend/internal/account/domain"
	"siteauth/backend/internal/audit"
	"siteauth/backend/internal/platform/rbac"
)

// RequirePermission rejects callers whose role and plan do not grant perm.
// Must run after RequireAuth or RequireAPIKey.
func RequirePermission(events audit.Recorder, perm accountdomain.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := rbac.RequirePermission(c.Request.Context(), events, perm); err != nil {
			WriteError(c, err)
			return
		}
		c.Next()
	}
}
