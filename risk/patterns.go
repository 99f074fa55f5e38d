// api/risk/patterns.go
package risk

import (
	"regexp"

	"github.com/aegis-governance/aegis/api/model"
)

// denyPattern is one explicit denylist entry. Denylist matches are always
// the first signal group in a score.
type denyPattern struct {
	id       string
	severity model.Severity
	desc     string
	re       *regexp.Regexp
}

var denylist = []denyPattern{
	{
		id:       "PII_MATCH",
		severity: model.SeverityCritical,
		desc:     "Credit-card-shaped number detected",
		re:       regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`),
	},
	{
		id:       "PII_SSN",
		severity: model.SeverityCritical,
		desc:     "Social-security-number-shaped string detected",
		re:       regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		id:       "PII_EMAIL",
		severity: model.SeverityHigh,
		desc:     "Email address detected",
		re:       regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`),
	},
	{
		id:       "PII_PHONE",
		severity: model.SeverityHigh,
		desc:     "Phone-number-shaped string detected",
		re:       regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`),
	},
	{
		id:       "INJECTION_OVERRIDE",
		severity: model.SeverityHigh,
		desc:     "Instruction override language detected",
		re:       regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|your)\s+(instructions?|rules?|guidelines?)`),
	},
	{
		id:       "PROMPT_EXFIL",
		severity: model.SeverityMedium,
		desc:     "Attempt to reveal system prompt or instructions",
		re:       regexp.MustCompile(`(?i)(show|reveal|display|print|repeat)\s+(me\s+)?(your|the)\s+(system\s+)?(prompt|instructions?)`),
	},
}

// keywordCategory is a heuristic keyword group. Heuristic matches form the
// second signal group, after denylist matches.
type keywordCategory struct {
	id       string
	severity model.Severity
	desc     string
	keywords []string
}

var keywordCategories = []keywordCategory{
	{
		id:       "KEYWORD_PRIVACY",
		severity: model.SeverityMedium,
		desc:     "Privacy-sensitive terminology detected",
		keywords: []string{
			"ssn", "social security", "credit card", "password",
			"date of birth", "medical record", "patient data",
			"bank account",
		},
	},
	{
		id:       "KEYWORD_SECURITY",
		severity: model.SeverityMedium,
		desc:     "Security-threat terminology detected",
		keywords: []string{
			"exploit", "backdoor", "malware", "phishing", "ddos",
			"sql injection", "buffer overflow",
		},
	},
	{
		id:       "KEYWORD_HARMFUL",
		severity: model.SeverityHigh,
		desc:     "Harmful-content terminology detected",
		keywords: []string{
			"suicide", "self-harm", "weapon", "bomb", "terrorism",
			"hate speech",
		},
	},
	{
		id:       "KEYWORD_REGULATORY",
		severity: model.SeverityMedium,
		desc:     "Regulatory-violation terminology detected",
		keywords: []string{
			"insider trading", "market manipulation", "money laundering",
			"tax evasion",
		},
	},
	{
		id:       "KEYWORD_BIAS",
		severity: model.SeverityLow,
		desc:     "Bias-related terminology detected",
		keywords: []string{
			"stereotype", "prejudice", "racism", "sexism", "ageism",
		},
	},
}

// protectedAttributeKeywords feed the output-audit fairness heuristic:
// signals whose matched text correlates with these terms get their severity
// raised one level.
var protectedAttributeKeywords = []string{
	"race", "gender", "religion", "ethnicity", "nationality",
	"disability", "age", "sexual orientation",
}

// ProtectedAttributeKeywords exposes the fairness keyword list to the
// output-audit stage.
func ProtectedAttributeKeywords() []string {
	return protectedAttributeKeywords
}

// piiEntityTypes are classifier entity types treated as PII signals.
var piiEntityTypes = map[string]struct{}{
	"EMAIL":                             {},
	"PHONE":                             {},
	"SSN":                               {},
	"CREDIT_DEBIT_NUMBER":               {},
	"BANK_ACCOUNT_NUMBER":               {},
	"ADDRESS":                           {},
	"NAME":                              {},
	"DATE_TIME":                         {},
	"PASSPORT_NUMBER":                   {},
	"DRIVER_ID":                         {},
	"BANK_ROUTING":                      {},
	"CREDIT_DEBIT_CVV":                  {},
	"CREDIT_DEBIT_EXPIRY":               {},
	"INTERNATIONAL_BANK_ACCOUNT_NUMBER": {},
}
