package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/immutable/seaport/internal/pkg/apperrors"
)

// ReadOnlyMiddleware rejects mutating verbs when enabled. Lifting a halt is
// still allowed so an operator can recover without flipping config first.
func ReadOnlyMiddleware(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}

		if c.Request.Method == http.MethodDelete && c.FullPath() == "/v1/admin/halt" {
			c.Next()
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		default:
			c.Error(apperrors.New(apperrors.ErrReadOnly, "read-only mode enabled", nil))
			c.Abort()
			return
		}
	}
}
