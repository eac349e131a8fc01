package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	accountdomain "siteauth/backend/internal/account/domain"
	"siteauth/backend/internal/httpapi/middleware"
)

// WhoAmI handles GET /machine/whoami for API-key callers.
func (h HandlerSet) WhoAmI(c *gin.Context) {
	p := middleware.Principal(c)
	c.JSON(http.StatusOK, gin.H{
		"account_id": p.AccountID,
		"email":      p.Email,
		"role":       string(p.Role),
		"plan":       string(p.Plan),
		"api_key_id": p.APIKeyID,
	})
}

// Personalized handles GET /catalog/personalized. Anonymous callers get the
// generic catalog flag; signed-in callers see their plan.
func (h HandlerSet) Personalized(c *gin.Context) {
	p := middleware.Principal(c)
	if p == nil {
		c.JSON(http.StatusOK, gin.H{"anonymous": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"anonymous": false,
		"plan":      string(p.Plan),
		"premium":   p.Allows(accountdomain.PermPremiumContent),
	})
}
