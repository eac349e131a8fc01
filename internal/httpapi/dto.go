package httpapi

import (
	"time"

	accountdomain "siteauth/backend/internal/account/domain"
	apikeydomain "siteauth/backend/internal/apikey/domain"
	identityservice "siteauth/backend/internal/identity/service"
	sessiondomain "siteauth/backend/internal/session/domain"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type createAPIKeyRequest struct {
	Name string `json:"name"`
	// ExpiresIn is the key lifetime in seconds; zero or absent never expires.
	ExpiresIn int64 `json:"expires_in"`
}

type accountResponse struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      string     `json:"role"`
	Plan      string     `json:"plan"`
	Status    string     `json:"status"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type authResponse struct {
	Account          accountResponse `json:"account"`
	AccessToken      string          `json:"access_token"`
	RefreshToken     string          `json:"refresh_token"`
	TokenType        string          `json:"token_type"`
	AccessExpiresAt  time.Time       `json:"access_expires_at"`
	RefreshExpiresAt time.Time       `json:"refresh_expires_at"`
	SessionID        string          `json:"session_id"`
}

type sessionResponse struct {
	ID        string    `json:"id"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}

type apiKeyResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Prefix    string     `json:"prefix"`
	IsActive  bool       `json:"is_active"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type createAPIKeyResponse struct {
	APIKey apiKeyResponse `json:"api_key"`
	// Key is the raw credential. It is shown once and cannot be recovered.
	Key string `json:"key"`
}

func toAccountResponse(a *accountdomain.Account) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Email:     a.Email,
		Role:      string(a.Role),
		Plan:      string(a.Plan),
		Status:    string(a.Status),
		LastLogin: a.LastLogin,
		CreatedAt: a.CreatedAt,
	}
}

func toAuthResponse(r *identityservice.AuthResult) authResponse {
	return authResponse{
		Account:          toAccountResponse(r.Account),
		AccessToken:      r.Tokens.AccessToken,
		RefreshToken:     r.Tokens.RefreshToken,
		TokenType:        "Bearer",
		AccessExpiresAt:  r.Tokens.AccessExpiresAt,
		RefreshExpiresAt: r.Tokens.RefreshExpiresAt,
		SessionID:        r.SessionID,
	}
}

func toSessionResponse(s *sessiondomain.Session, currentID string) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		IP:        s.IP,
		UserAgent: s.UserAgent,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		Current:   s.ID == currentID,
	}
}

func toAPIKeyResponse(k *apikeydomain.APIKey) apiKeyResponse {
	return apiKeyResponse{
		ID:        k.ID,
		Name:      k.Name,
		Prefix:    k.Prefix,
		IsActive:  k.IsActive,
		LastUsed:  k.LastUsed,
		ExpiresAt: k.ExpiresAt,
		CreatedAt: k.CreatedAt,
	}
}
