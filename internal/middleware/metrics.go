package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/immutable/seaport/internal/pkg/metrics"
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start).Seconds()

		// The route template keeps label cardinality bounded; unmatched
		// requests fall back to the raw path.
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}
		metrics.LatencyBucket.WithLabelValues(endpoint).Observe(duration)
	}
}
