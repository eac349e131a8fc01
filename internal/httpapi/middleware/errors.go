package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"siteauth/backend/internal/apperr"
)

const productionKey = "siteauth.production"

// ErrorBody is the failure envelope of every endpoint.
type ErrorBody struct {
	ErrorKind  string `json:"error_kind"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

// Environment tells WriteError whether internal causes may be shown.
func Environment(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(productionKey, production)
		c.Next()
	}
}

// WriteError aborts the request with err's status and envelope. 429s also get
// a Retry-After header.
func WriteError(c *gin.Context, err error) {
	e := apperr.From(err)
	status := apperr.HTTPStatus(e)
	body := ErrorBody{
		ErrorKind: string(e.Kind),
		Code:      string(e.Code),
		Message:   e.PublicMessage(c.GetBool(productionKey)),
	}
	if e.Kind == apperr.KindRateLimited {
		body.RetryAfter = e.RetryAfterSeconds()
		c.Header("Retry-After", strconv.Itoa(body.RetryAfter))
	}
	c.AbortWithStatusJSON(status, body)
}
