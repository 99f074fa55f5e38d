// api/policy/ruleset.go
package policy

import (
	"fmt"
	"regexp"
	"sort"

	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	"github.com/aegis-governance/aegis/api/model"
)

// Rule is one declarative governance rule. The optional Context map is the
// rule's applicability predicate: every listed key must equal the request's
// context tag of the same name. A key absent from the request context simply
// does not match; it never errors.
type Rule struct {
	ID          string            `json:"id" yaml:"id"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Context     map[string]string `json:"context,omitempty" yaml:"context,omitempty"`
	Predicate   Predicate         `json:"predicate" yaml:"predicate"`
	Severity    model.Severity    `json:"severity" yaml:"severity"`
	Action      model.Outcome     `json:"action" yaml:"action"`
}

func (r Rule) contextMatches(requestContext map[string]string) bool {
	for key, want := range r.Context {
		got, ok := requestContext[key]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// RuleSet is an immutable, versioned collection of rules. Sets are
// normalized (rules sorted by ID, patterns compiled) at validation time and
// never modified afterwards; updates swap in a whole new set.
type RuleSet struct {
	Version string `json:"version" yaml:"version"`
	Rules   []Rule `json:"rules" yaml:"rules"`

	compiled map[string]*regexp.Regexp
}

// Validate normalizes the set in place: rules are sorted by ID ascending
// (the deterministic evaluation order) and every pattern is compiled.
// A validation failure leaves nothing partially applied.
func (rs *RuleSet) Validate() error {
	if rs.Version == "" {
		return fmt.Errorf("%w: missing version", aegis_errors.ErrPolicyLoad)
	}
	if len(rs.Rules) == 0 {
		return fmt.Errorf("%w: rule set %q has no rules", aegis_errors.ErrPolicyLoad, rs.Version)
	}

	patterns := make(map[string]*regexp.Regexp)
	seen := make(map[string]struct{}, len(rs.Rules))
	for _, rule := range rs.Rules {
		if rule.ID == "" {
			return fmt.Errorf("%w: rule with empty id", aegis_errors.ErrPolicyLoad)
		}
		if _, dup := seen[rule.ID]; dup {
			return fmt.Errorf("%w: duplicate rule id %q", aegis_errors.ErrPolicyLoad, rule.ID)
		}
		seen[rule.ID] = struct{}{}
		if !rule.Severity.Valid() {
			return fmt.Errorf("%w: rule %q has invalid severity %q", aegis_errors.ErrPolicyLoad, rule.ID, rule.Severity)
		}
		if !rule.Action.Valid() {
			return fmt.Errorf("%w: rule %q has invalid action %q", aegis_errors.ErrPolicyLoad, rule.ID, rule.Action)
		}
		if err := rule.Predicate.validate(patterns); err != nil {
			return fmt.Errorf("%w: rule %q: %v", aegis_errors.ErrPolicyLoad, rule.ID, err)
		}
	}

	sort.Slice(rs.Rules, func(i, j int) bool { return rs.Rules[i].ID < rs.Rules[j].ID })
	rs.compiled = patterns
	return nil
}

// TriggeredRule records one rule that fired during evaluation.
type TriggeredRule struct {
	RuleID      string         `json:"rule_id"`
	Description string         `json:"description,omitempty"`
	Severity    model.Severity `json:"severity"`
	Action      model.Outcome  `json:"action"`
}

// Evaluate runs the facts through the rule set in rule-id ascending order.
// A triggered rule with action block short-circuits the remaining rules of
// this evaluation (worst-case latency bound); evaluation in other stages is
// unaffected because each stage evaluates independently.
func Evaluate(facts Facts, rs *RuleSet) []TriggeredRule {
	if rs == nil {
		return nil
	}
	var triggered []TriggeredRule
	for _, rule := range rs.Rules {
		if !rule.contextMatches(facts.Context) {
			continue
		}
		if !rule.Predicate.match(facts, rs.compiled) {
			continue
		}
		triggered = append(triggered, TriggeredRule{
			RuleID:      rule.ID,
			Description: rule.Description,
			Severity:    rule.Severity,
			Action:      rule.Action,
		})
		if rule.Action == model.OutcomeBlock {
			break
		}
	}
	return triggered
}
