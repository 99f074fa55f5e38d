// api/middleware/principal.go

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	logger "github.com/aegis-governance/aegis/api/logging"
)

// Principal reads the caller identity injected by the authenticating
// gateway in front of this service. Requests arriving without it are
// rejected; token verification itself happens upstream.
func Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		principalID := c.GetHeader("X-Principal-ID")
		if principalID == "" {
			logger.Warn("Request without principal identity",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		c.Set("principalID", principalID)
		c.Set("principalRole", c.GetHeader("X-Principal-Role"))
		c.Next()
	}
}

// RequireRole gates admin surfaces on the role claim forwarded by the
// gateway.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("principalRole")
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		logger.Warn("Principal lacks required role",
			zap.String("principalID", c.GetString("principalID")),
			zap.String("role", role),
			zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		c.Abort()
	}
}
