package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/httpapi/middleware"
	identityservice "siteauth/backend/internal/identity/service"
)

func deviceMeta(c *gin.Context) identityservice.DeviceMeta {
	return identityservice.DeviceMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.WriteError(c, apperr.Validation("invalid request body"))
		return false
	}
	return true
}

// Register handles POST /auth/register.
func (h HandlerSet) Register(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, deviceMeta(c))
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toAuthResponse(res))
}

// Login handles POST /auth/login.
func (h HandlerSet) Login(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, deviceMeta(c))
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuthResponse(res))
}

// Refresh handles POST /auth/refresh.
func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAuthResponse(res))
}

// Logout handles POST /auth/logout.
func (h HandlerSet) Logout(c *gin.Context) {
	p := middleware.Principal(c)
	if err := h.auth.Logout(c.Request.Context(), p.AccountID, p.SessionID); err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LogoutAll handles POST /auth/logout-all.
func (h HandlerSet) LogoutAll(c *gin.Context) {
	p := middleware.Principal(c)
	if _, err := h.auth.LogoutAll(c.Request.Context(), p.AccountID); err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ChangePassword handles POST /auth/password.
func (h HandlerSet) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	p := middleware.Principal(c)
	if err := h.auth.ChangePassword(c.Request.Context(), p.AccountID, p.SessionID, req.CurrentPassword, req.NewPassword); err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me handles GET /auth/me.
func (h HandlerSet) Me(c *gin.Context) {
	acc, err := h.auth.Account(c.Request.Context(), middleware.Principal(c).AccountID)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, toAccountResponse(acc))
}

// ListSessions handles GET /auth/sessions.
func (h HandlerSet) ListSessions(c *gin.Context) {
	p := middleware.Principal(c)
	list, err := h.auth.ListSessions(c.Request.Context(), p.AccountID)
	if err != nil {
		middleware.WriteError(c, err)
		return
	}
	out := make([]sessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, toSessionResponse(s, p.SessionID))
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// RevokeSession handles DELETE /auth/sessions/:id.
func (h HandlerSet) RevokeSession(c *gin.Context) {
	p := middleware.Principal(c)
	if err := h.auth.RevokeSession(c.Request.Context(), p.AccountID, c.Param("id")); err != nil {
		middleware.WriteError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
