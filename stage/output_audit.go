// api/stage/output_audit.go
package stage

import (
	"context"
	"strings"

	"github.com/aegis-governance/aegis/api/classify"
	"github.com/aegis-governance/aegis/api/model"
	"github.com/aegis-governance/aegis/api/policy"
	"github.com/aegis-governance/aegis/api/risk"
)

// OutputAuditor reviews the generated response with the same scoring and
// rule machinery as the prompt guard, plus a fairness heuristic. It only
// runs when the prompt guard did not block.
type OutputAuditor struct {
	scorer     *risk.Scorer
	rules      *policy.Store
	classifier classify.Classifier
	cfg        Config
}

func NewOutputAuditor(scorer *risk.Scorer, rules *policy.Store, classifier classify.Classifier, cfg Config) *OutputAuditor {
	return &OutputAuditor{scorer: scorer, rules: rules, classifier: classifier, cfg: cfg}
}

// Audit produces the output-audit verdict for a generated response.
func (a *OutputAuditor) Audit(ctx context.Context, response string, reqContext map[string]string) model.StageVerdict {
	verdict := runChecks(ctx, checkInput{
		stage:      model.StageOutputAudit,
		text:       response,
		context:    reqContext,
		scorer:     a.scorer,
		rules:      a.rules,
		classifier: a.classifier,
		cfg:        a.cfg,
	})
	return applyFairnessHeuristic(verdict, response, a.cfg)
}

// applyFairnessHeuristic raises each risk signal one severity level when the
// response correlates risk signals with protected-attribute keywords, and
// appends a FAIRNESS_FLAG signal. The incoming verdict is not mutated; a new
// one is built before anything observes it.
func applyFairnessHeuristic(verdict model.StageVerdict, response string, cfg Config) model.StageVerdict {
	if len(verdict.Signals) == 0 {
		return verdict
	}

	lower := strings.ToLower(response)
	matched := ""
	for _, kw := range risk.ProtectedAttributeKeywords() {
		if strings.Contains(lower, kw) {
			matched = kw
			break
		}
	}
	if matched == "" {
		return verdict
	}

	raised := make([]model.Signal, 0, len(verdict.Signals)+1)
	for _, s := range verdict.Signals {
		s.Severity = s.Severity.Raise()
		raised = append(raised, s)
	}
	raised = append(raised, model.Signal{
		ID:          model.SignalFairnessFlag,
		Severity:    model.SeverityMedium,
		Description: "Risk signals correlate with protected attribute: " + matched,
		Position:    strings.Index(lower, matched),
	})

	score := risk.ScoreValue(raised)
	outcome := model.MostRestrictive(verdict.Outcome, outcomeFromScore(score, cfg))

	return model.StageVerdict{
		Stage:     verdict.Stage,
		Outcome:   outcome,
		RiskScore: score,
		Signals:   raised,
		Duration:  verdict.Duration,
	}
}
