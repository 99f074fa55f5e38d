// api/stage/advisory.go
package stage

import (
	"github.com/aegis-governance/aegis/api/model"
)

type advisoryEntry struct {
	explanation  string
	alternatives []string
}

// Advisor turns a non-allow verdict into human-readable guidance. Lookup is
// keyed by the highest-severity triggered signal; an unmapped signal always
// resolves to the generic fallback, so Advise has no error path.
type Advisor struct {
	entries map[string]advisoryEntry
}

func NewAdvisor() *Advisor {
	return &Advisor{entries: defaultAdvisoryEntries()}
}

// AddEntry registers or overrides guidance for a signal ID. Intended for
// deployment-specific tables loaded at startup.
func (a *Advisor) AddEntry(signalID, explanation string, alternatives []string) {
	a.entries[signalID] = advisoryEntry{explanation: explanation, alternatives: alternatives}
}

// Advise selects guidance for the final verdict. Never fails.
func (a *Advisor) Advise(final model.StageVerdict) model.Advisory {
	signalID := ""
	if trigger, ok := final.HighestSeveritySignal(); ok {
		signalID = trigger.ID
	}
	if entry, ok := a.entries[signalID]; ok {
		return model.Advisory{
			SignalID:     signalID,
			Explanation:  entry.explanation,
			Alternatives: entry.alternatives,
		}
	}
	return model.Advisory{
		SignalID:     signalID,
		Explanation:  "Your request could not be completed as submitted because it conflicts with the organization's AI usage policy.",
		Alternatives: []string{"Remove sensitive or restricted content and resubmit", "Contact your compliance team for guidance"},
	}
}

func defaultAdvisoryEntries() map[string]advisoryEntry {
	return map[string]advisoryEntry{
		"PII_MATCH": {
			explanation: "The text contains a payment-card-shaped number. Card numbers may not be sent to generative models.",
			alternatives: []string{
				"Replace the card number with a masked placeholder such as ****-1234",
				"Use anonymized or synthetic data for examples",
			},
		},
		"PII_SSN": {
			explanation: "The text contains a social-security-number-shaped string, which is restricted personal data.",
			alternatives: []string{
				"Remove the identifier and describe the record generically",
				"Use pseudonymized identifiers",
			},
		},
		"PII_EMAIL": {
			explanation: "The text contains an email address; personal contact data requires consent before processing.",
			alternatives: []string{
				"Replace real addresses with example.com placeholders",
			},
		},
		"INJECTION_OVERRIDE": {
			explanation: "The prompt attempts to override system instructions, which is not permitted.",
			alternatives: []string{
				"State your request directly without instruction-override language",
			},
		},
		"KEYWORD_HARMFUL": {
			explanation: "The text references harmful-content topics the policy does not allow to be processed.",
			alternatives: []string{
				"If you are researching safety topics, route the request through the approved review workflow",
			},
		},
		"KEYWORD_REGULATORY": {
			explanation: "The text references activity restricted under financial-regulation policy.",
			alternatives: []string{
				"Consult the compliance team before requesting analysis of regulated activity",
			},
		},
		model.SignalFairnessFlag: {
			explanation: "The generated response correlated risk signals with protected attributes and was withheld under the fairness policy.",
			alternatives: []string{
				"Rephrase the request to avoid conclusions about protected groups",
			},
		},
		model.SignalTimeout: {
			explanation: "A governance check did not complete in time, so the request was blocked as a precaution.",
			alternatives: []string{
				"Retry the request; persistent failures indicate a platform issue",
			},
		},
		model.SignalUpstreamDown: {
			explanation: "A required upstream capability was unavailable, so the request was handled conservatively.",
			alternatives: []string{
				"Retry the request once the platform reports healthy",
			},
		},
	}
}
