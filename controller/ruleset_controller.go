// api/controller/ruleset_controller.go
package controller

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aegis-governance/aegis/api/db"
	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	logger "github.com/aegis-governance/aegis/api/logging"
	"github.com/aegis-governance/aegis/api/policy"
	"github.com/aegis-governance/aegis/api/util"
)

// RuleSetController administers the active policy rule set. Activation is
// atomic: in-flight evaluations keep the set they started with.
type RuleSetController struct {
	store *policy.Store
}

func NewRuleSetController(store *policy.Store) *RuleSetController {
	return &RuleSetController{
		store: store,
	}
}

// RegisterRoutes registers the API routes
func (rc *RuleSetController) RegisterRoutes(r *gin.RouterGroup) {
	rulesets := r.Group("/rulesets")
	{
		rulesets.POST("/activate", rc.ActivateRuleSet)
		rulesets.GET("/active", rc.GetActiveRuleSet)
	}
}

// ActivateRuleSet endpoint. The body is a YAML rule set document; it is
// validated in full before it replaces the active set, and cached in Redis
// so a restart can recover it without the file.
func (rc *RuleSetController) ActivateRuleSet(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil || len(data) == 0 {
		util.RespondWithError(c, http.StatusBadRequest, "Empty rule set body", err)
		return
	}

	rs, err := policy.Parse(data)
	if err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid rule set", err)
		return
	}
	if err := rc.store.Swap(rs); err != nil {
		if errors.Is(err, aegis_errors.ErrPolicyLoad) {
			util.RespondWithError(c, http.StatusBadRequest, "Rule set failed validation", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to activate rule set", err)
		}
		return
	}

	if err := db.CacheRuleSet(c, rs); err != nil {
		logger.Warn("Failed to cache activated rule set",
			zap.String("version", rs.Version),
			zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"version": rs.Version,
		"rules":   len(rs.Rules),
	})
}

// GetActiveRuleSet endpoint
func (rc *RuleSetController) GetActiveRuleSet(c *gin.Context) {
	rs := rc.store.Active()
	if rs == nil {
		util.RespondWithError(c, http.StatusNotFound, "No active rule set", aegis_errors.ErrRuleSetNotFound)
		return
	}
	c.JSON(http.StatusOK, rs)
}
