package middleware

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"siteauth/backend/internal/apperr"
	"siteauth/backend/internal/audit"
	auditdomain "siteauth/backend/internal/audit/domain"
	"siteauth/backend/internal/ratelimit"
)

// Limiter counts one request per identity key.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// RateLimit throttles per principal, or per client IP for anonymous callers.
// When the counter store fails the request is let through and the failure logged.
func RateLimit(l Limiter, events audit.Recorder, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ratelimit.IPKey(c.ClientIP())
		accountID := ""
		if p := Principal(c); p != nil {
			key = p.RateLimitKey()
			accountID = p.AccountID
		}

		d, err := l.Allow(c.Request.Context(), key)
		if err != nil && !errors.Is(err, apperr.ErrRateLimited) {
			log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))

		if err != nil {
			if events != nil {
				events.Record(c.Request.Context(), auditdomain.EventRateLimited, accountID, map[string]string{"key": key, "path": c.FullPath()})
			}
			WriteError(c, err)
			return
		}
		c.Next()
	}
}
