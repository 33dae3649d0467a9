package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/immutable/seaport/internal/config"
)

const HeaderAdminKey = "X-Admin-Key"

// AdminMiddleware guards operator endpoints: dev-ledger minting, balance
// inspection, and the settlement halt switch. An unset admin key disables the
// whole admin surface rather than leaving it open.
func AdminMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg == nil || cfg.Auth.AdminKey == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin key not configured"})
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(c.GetHeader(HeaderAdminKey)), []byte(cfg.Auth.AdminKey)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid admin key"})
			c.Abort()
			return
		}
		c.Next()
	}
}
