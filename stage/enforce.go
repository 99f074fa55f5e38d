// api/stage/enforce.go
package stage

import (
	"time"

	"github.com/aegis-governance/aegis/api/model"
)

// Enforcer merges the prompt-guard and output-audit verdicts into the final
// decision. It is pure: no external calls, no shared state, so it cannot
// fail for infrastructure reasons.
type Enforcer struct {
	regulated map[string]struct{}
	// whitelist maps a regulated domain to the signal IDs allowed to stay
	// at warn instead of escalating to block.
	whitelist map[string]map[string]struct{}
}

func NewEnforcer(regulatedDomains []string, domainWhitelist map[string][]string) *Enforcer {
	regulated := make(map[string]struct{}, len(regulatedDomains))
	for _, d := range regulatedDomains {
		regulated[d] = struct{}{}
	}
	whitelist := make(map[string]map[string]struct{}, len(domainWhitelist))
	for domain, ids := range domainWhitelist {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			set[id] = struct{}{}
		}
		whitelist[domain] = set
	}
	return &Enforcer{regulated: regulated, whitelist: whitelist}
}

// Merge computes the final verdict: the most restrictive of the two stage
// outcomes and the maximum of the two scores. In a regulated domain a warn
// escalates to block unless the triggering (highest-severity) signal is
// whitelisted for that domain.
func (e *Enforcer) Merge(prompt, output model.StageVerdict, reqContext map[string]string) model.StageVerdict {
	start := time.Now()

	outcome := model.MostRestrictive(prompt.Outcome, output.Outcome)
	score := prompt.RiskScore
	if output.RiskScore > score {
		score = output.RiskScore
	}

	signals := make([]model.Signal, 0, len(prompt.Signals)+len(output.Signals))
	signals = append(signals, prompt.Signals...)
	signals = append(signals, output.Signals...)

	final := model.StageVerdict{
		Stage:     model.StageEnforcement,
		Outcome:   outcome,
		RiskScore: score,
		Signals:   signals,
	}

	if outcome == model.OutcomeWarn {
		if domain, regulated := e.regulatedDomain(reqContext); regulated && !e.triggerWhitelisted(domain, final) {
			final.Outcome = model.OutcomeBlock
		}
	}

	final.Duration = time.Since(start)
	return final
}

func (e *Enforcer) regulatedDomain(reqContext map[string]string) (string, bool) {
	domain := reqContext["domain"]
	if domain == "" {
		return "", false
	}
	_, ok := e.regulated[domain]
	return domain, ok
}

func (e *Enforcer) triggerWhitelisted(domain string, verdict model.StageVerdict) bool {
	trigger, ok := verdict.HighestSeveritySignal()
	if !ok {
		return false
	}
	allowed, ok := e.whitelist[domain]
	if !ok {
		return false
	}
	_, whitelisted := allowed[trigger.ID]
	return whitelisted
}
