// api/controller/governance_controller.go
package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	"github.com/aegis-governance/aegis/api/model"
	"github.com/aegis-governance/aegis/api/pipeline"
	"github.com/aegis-governance/aegis/api/util"
)

type GovernanceController struct {
	orchestrator *pipeline.Orchestrator
}

func NewGovernanceController(orchestrator *pipeline.Orchestrator) *GovernanceController {
	return &GovernanceController{
		orchestrator: orchestrator,
	}
}

// RegisterRoutes registers the API routes
func (gc *GovernanceController) RegisterRoutes(r *gin.RouterGroup) {
	governance := r.Group("/governance")
	{
		governance.POST("/process", gc.ProcessRequest)
	}
}

type processRequest struct {
	Prompt    string            `json:"prompt" binding:"required"`
	ModelID   string            `json:"model_id"`
	SessionID string            `json:"session_id"`
	Context   map[string]string `json:"context"`
}

type processResponse struct {
	RequestID string               `json:"request_id"`
	AuditID   string               `json:"audit_id"`
	SessionID string               `json:"session_id"`
	Decision  model.Outcome        `json:"decision"`
	RiskScore int                  `json:"risk_score"`
	State     string               `json:"state"`
	Response  string               `json:"response,omitempty"`
	Signals   []model.Signal       `json:"signals,omitempty"`
	Advisory  *model.Advisory      `json:"advisory,omitempty"`
	Verdicts  []model.StageVerdict `json:"verdicts"`
}

// ProcessRequest endpoint
func (gc *GovernanceController) ProcessRequest(c *gin.Context) {
	var body processRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		util.RespondWithError(c, http.StatusBadRequest, "Invalid governance request", err)
		return
	}

	principalID := util.GetPrincipalIDFromContext(c)
	if principalID == "" {
		util.RespondWithError(c, http.StatusUnauthorized, "Unauthorized", aegis_errors.ErrUnauthorized)
		return
	}
	role := util.GetPrincipalRoleFromContext(c)

	req := model.NewGovernanceRequest(body.Prompt, principalID, role, body.ModelID, body.Context, body.SessionID)
	result, err := gc.orchestrator.Process(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, aegis_errors.ErrValidation) {
			util.RespondWithError(c, http.StatusBadRequest, "Invalid governance request", err)
		} else {
			util.RespondWithError(c, http.StatusInternalServerError, "Failed to process request", aegis_errors.ErrInternalServer)
		}
		return
	}

	c.JSON(http.StatusOK, processResponse{
		RequestID: result.RequestID,
		AuditID:   result.AuditID,
		SessionID: result.SessionID,
		Decision:  result.Final.Outcome,
		RiskScore: result.Final.RiskScore,
		State:     result.State,
		Response:  result.Response,
		Signals:   result.Final.Signals,
		Advisory:  result.Advisory,
		Verdicts:  result.Verdicts,
	})
}
