// api/controller/controllers.go
package controller

import (
	"github.com/aegis-governance/aegis/api/audit"
	"github.com/aegis-governance/aegis/api/feedback"
	"github.com/aegis-governance/aegis/api/pipeline"
	"github.com/aegis-governance/aegis/api/policy"
)

type Controllers struct {
	Governance *GovernanceController
	RuleSet    *RuleSetController
	Audit      *AuditController
	Feedback   *FeedbackController
	Health     *HealthController
}

func InitializeControllers(
	orchestrator *pipeline.Orchestrator,
	store *policy.Store,
	auditService audit.Service,
	feedbackService feedback.Service,
	fallbackQueue audit.FallbackQueue,
) *Controllers {
	return &Controllers{
		Governance: NewGovernanceController(orchestrator),
		RuleSet:    NewRuleSetController(store),
		Audit:      NewAuditController(auditService),
		Feedback:   NewFeedbackController(feedbackService),
		Health:     NewHealthController(store, fallbackQueue),
	}
}
