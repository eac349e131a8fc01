package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"siteauth/backend/internal/apperr"
)

// Recovery turns a handler panic into a logged 500 with the standard error body.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Interface("error", r).
					Str("request_id", c.Writer.Header().Get(requestIDHeader)).
					Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorBody{
					ErrorKind: string(apperr.KindInternal),
					Code:      string(apperr.CodeInternal),
					Message:   "internal error",
				})
			}
		}()
		c.Next()
	}
}
