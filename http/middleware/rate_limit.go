package middlewares

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-vm-orchestrator/registry"
	"github.com/tnqbao/gau-vm-orchestrator/utils"
)

// RequestCounter counts hits against a fixed window.
type RequestCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

type WarningLogger interface {
	WarningWithContextf(ctx context.Context, format string, args ...any)
}

// RateLimitMiddleware allows RateLimit.Requests per RateLimit.Window for each
// authenticated user, or client IP when there is none. Counter failures let
// the request through.
func RateLimitMiddleware(counter RequestCounter, store *registry.Store, logger WarningLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		limit := store.Snapshot().Settings().RateLimit

		subject := c.GetString("user_id")
		if subject == "" {
			subject = c.ClientIP()
		}

		count, err := counter.Hit(ctx, "rate_limit:"+subject, limit.Window)
		if err != nil {
			logger.WarningWithContextf(ctx, "[RateLimit] Failed to count request for %s: %v", subject, err)
			c.Next()
			return
		}

		remaining := max(int64(limit.Requests)-count, 0)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Requests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit.Requests) {
			logger.WarningWithContextf(ctx, "[RateLimit] %s exceeded %d requests per %s", subject, limit.Requests, limit.Window)
			utils.JSON429(c, "Rate limit exceeded", map[string]any{
				"limit":          limit.Requests,
				"window_seconds": int(limit.Window.Seconds()),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
