// api/controller/health_controller.go
package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aegis-governance/aegis/api/audit"
	"github.com/aegis-governance/aegis/api/db"
	"github.com/aegis-governance/aegis/api/policy"
)

type HealthController struct {
	store *policy.Store
	queue audit.FallbackQueue
}

func NewHealthController(store *policy.Store, queue audit.FallbackQueue) *HealthController {
	return &HealthController{
		store: store,
		queue: queue,
	}
}

// RegisterRoutes registers the API routes
func (hc *HealthController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/health", hc.GetHealth)
}

// GetHealth endpoint
func (hc *HealthController) GetHealth(c *gin.Context) {
	status := http.StatusOK
	components := gin.H{}

	if err := db.RedisClient.Ping(c).Err(); err != nil {
		components["redis"] = "down"
		status = http.StatusServiceUnavailable
	} else {
		components["redis"] = "up"
	}

	if version := hc.store.ActiveVersion(); version != "" {
		components["ruleset"] = version
	} else {
		components["ruleset"] = "none"
		status = http.StatusServiceUnavailable
	}

	if depth, err := hc.queue.Depth(c); err == nil {
		components["audit_fallback_depth"] = depth
	}

	c.JSON(status, gin.H{
		"status":     http.StatusText(status),
		"components": components,
	})
}
