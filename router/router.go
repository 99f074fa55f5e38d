// api/router/router.go

package router

import (
	"time"

	"github.com/aegis-governance/aegis/api/controller"
	"github.com/aegis-governance/aegis/api/middleware"
	"github.com/gin-gonic/gin"
)

func SetupRouter(
	controllers *controller.Controllers,
	rateLimitRequests int,
	rateLimitDuration time.Duration,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger())

	// Health is unauthenticated: load balancers probe it.
	probe := router.Group("/api/v1")
	controllers.Health.RegisterRoutes(probe)

	api := router.Group("/api/v1")
	api.Use(middleware.Principal())
	api.Use(middleware.RateLimiter(rateLimitRequests, rateLimitDuration))

	controllers.Governance.RegisterRoutes(api)
	controllers.Feedback.RegisterRoutes(api)

	admin := api.Group("")
	admin.Use(middleware.RequireRole("governance-admin", "compliance-officer"))
	controllers.RuleSet.RegisterRoutes(admin)
	controllers.Audit.RegisterRoutes(admin)

	return router
}
