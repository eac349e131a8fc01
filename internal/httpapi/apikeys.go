package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/httpapi/middleware"
)

// CreateAPIKey handles POST /api-keys.
func (h HandlerSet) CreateAPIKey(c *gin.Context) {
	var req createAPIKeyRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.ExpiresIn < 0 {
		middleware.WriteError(c, apperr.Validation("expires_in must not be negative"))
		return
	}
	var expiresAt *time.Time
	if req.ExpiresIn > 0 {
		t := time.Now().UTC().Add(time.Duration(req.ExpiresIn) * time.Second)
		expiresAt = &t
	}

	raw, k, err := h.apiKeys.Create(c.Request.Context(), middleware.Principal(c).AccountID, req.Name, expiresAt)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, createAPIKeyResponse{APIKey: toAPIKeyResponse(k), Key: raw})
}

// ListAPIKeys handles GET /api-keys.
func (h HandlerSet) ListAPIKeys(c *gin.Context) {
	keys, err := h.apiKeys.List(c.Request.Context(), middleware.Principal(c).AccountID)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	out := make([]apiKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toAPIKeyResponse(k))
	}
	c.JSON(http.StatusOK, gin.H{"api_keys": out})
}

// RevokeAPIKey handles DELETE /api-keys/:id.
func (h HandlerSet) RevokeAPIKey(c *gin.Context) {
	if err := h.apiKeys.Revoke(c.Request.Context(), middleware.Principal(c).AccountID, c.Param("id")); err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
