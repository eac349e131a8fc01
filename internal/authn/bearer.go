package authn

import (
	"strings"

	"siteauth/backend/internal/apperr"
)

const bearerPrefix = "bearer "

// BearerToken extracts the token from an Authorization header value. An empty
// header yields "" and no error; anything other than "Bearer <token>" is a
// MalformedToken.
func BearerToken(header string) (string, error) {
	v := strings.TrimSpace(header)
	if v == "" {
		return "", nil
	}
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return "", apperr.ErrMalformedToken
	}
	token := strings.TrimSpace(v[len(bearerPrefix):])
	if token == "" {
		return "", apperr.ErrMalformedToken
	}
	return token, nil
}
