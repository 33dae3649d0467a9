package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/immutable/seaport/internal/config"
)

// RateLimitMiddleware applies one global token bucket to the whole gateway.
// Settlement serializes on the engine mutex anyway, so a single limiter is
// enough to keep a burst of callers from queueing up behind it.
func RateLimitMiddleware(cfg *config.Config) gin.HandlerFunc {
	var limiter *rate.Limiter
	if cfg != nil && cfg.RateLimit.Enabled && cfg.RateLimit.RPS > 0 {
		burst := cfg.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), burst)
	}

	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		if !limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": "1s",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
