package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/immutable/seaport/internal/config"
)

const HeaderAPIKey = "X-API-Key"

// AuthMiddleware gates the /v1 surface behind a single shared API key. With
// require_api_key disabled the gateway is open, which is the expected mode
// for local development against the in-memory ledger.
func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || !cfg.Auth.RequireAPIKey {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderAPIKey)
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.Auth.APIKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
