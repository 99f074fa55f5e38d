// api/policy/predicate.go
package policy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aegis-governance/aegis/api/model"
)

// PredicateKind tags the closed variant set a rule predicate may use.
// Predicates are data, evaluated by dispatch on the kind tag; rule authors
// never supply executable code.
type PredicateKind string

const (
	KindPattern   PredicateKind = "pattern"
	KindEntity    PredicateKind = "entity"
	KindThreshold PredicateKind = "threshold"
	KindComposite PredicateKind = "composite"
)

// Metrics a threshold predicate may compare against.
const (
	MetricRiskScore   = "risk_score"
	MetricSignalCount = "signal_count"
)

// Predicate is one node of a rule's matching condition.
type Predicate struct {
	Kind PredicateKind `json:"kind" yaml:"kind"`

	// pattern
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// entity
	EntityTypes []string `json:"entity_types,omitempty" yaml:"entity_types,omitempty"`

	// threshold
	Metric   string  `json:"metric,omitempty" yaml:"metric,omitempty"`
	Operator string  `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    float64 `json:"value,omitempty" yaml:"value,omitempty"`

	// signal match: either predicate kind may also name signal IDs it
	// requires among the scored signals.
	SignalIDs []string `json:"signal_ids,omitempty" yaml:"signal_ids,omitempty"`

	// composite
	Op       string      `json:"op,omitempty" yaml:"op,omitempty"` // "and" | "or"
	Children []Predicate `json:"children,omitempty" yaml:"children,omitempty"`
}

// Facts is the immutable evaluation input assembled by a stage: the scored
// text, the request context tags, and the risk-scorer output.
type Facts struct {
	Text        string
	Context     map[string]string
	RiskScore   int
	Signals     []model.Signal
	EntityTypes []string
}

func (f Facts) hasSignal(id string) bool {
	for _, s := range f.Signals {
		if s.ID == id {
			return true
		}
	}
	return false
}

func (f Facts) hasEntity(entityType string) bool {
	for _, t := range f.EntityTypes {
		if strings.EqualFold(t, entityType) {
			return true
		}
	}
	// Classifier-derived entity signals count as entity facts too.
	return f.hasSignal("PII_ENTITY_" + strings.ToUpper(entityType))
}

// match evaluates the predicate against the facts using compiled patterns
// from the owning rule set.
func (p Predicate) match(facts Facts, compiled map[string]*regexp.Regexp) bool {
	switch p.Kind {
	case KindPattern:
		re, ok := compiled[p.Pattern]
		if !ok {
			return false
		}
		if !re.MatchString(facts.Text) {
			return false
		}
		return p.signalsPresent(facts)
	case KindEntity:
		for _, t := range p.EntityTypes {
			if facts.hasEntity(t) {
				return p.signalsPresent(facts)
			}
		}
		return false
	case KindThreshold:
		var observed float64
		switch p.Metric {
		case MetricRiskScore:
			observed = float64(facts.RiskScore)
		case MetricSignalCount:
			observed = float64(len(facts.Signals))
		default:
			return false
		}
		if !compare(observed, p.Operator, p.Value) {
			return false
		}
		return p.signalsPresent(facts)
	case KindComposite:
		if len(p.Children) == 0 {
			return false
		}
		if strings.EqualFold(p.Op, "or") {
			for _, c := range p.Children {
				if c.match(facts, compiled) {
					return true
				}
			}
			return false
		}
		for _, c := range p.Children {
			if !c.match(facts, compiled) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (p Predicate) signalsPresent(facts Facts) bool {
	for _, id := range p.SignalIDs {
		if !facts.hasSignal(id) {
			return false
		}
	}
	return true
}

func compare(observed float64, operator string, value float64) bool {
	switch operator {
	case "gte", ">=":
		return observed >= value
	case "gt", ">":
		return observed > value
	case "lte", "<=":
		return observed <= value
	case "lt", "<":
		return observed < value
	case "eq", "==":
		return observed == value
	default:
		return false
	}
}

// validate checks the predicate tree is well formed and collects patterns
// for compilation.
func (p Predicate) validate(patterns map[string]*regexp.Regexp) error {
	switch p.Kind {
	case KindPattern:
		if p.Pattern == "" {
			return fmt.Errorf("pattern predicate requires a pattern")
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %w", p.Pattern, err)
		}
		patterns[p.Pattern] = re
	case KindEntity:
		if len(p.EntityTypes) == 0 {
			return fmt.Errorf("entity predicate requires entity_types")
		}
	case KindThreshold:
		if p.Metric != MetricRiskScore && p.Metric != MetricSignalCount {
			return fmt.Errorf("unknown threshold metric %q", p.Metric)
		}
		if !validOperator(p.Operator) {
			return fmt.Errorf("unknown threshold operator %q", p.Operator)
		}
	case KindComposite:
		if !strings.EqualFold(p.Op, "and") && !strings.EqualFold(p.Op, "or") {
			return fmt.Errorf("composite predicate op must be and/or, got %q", p.Op)
		}
		if len(p.Children) == 0 {
			return fmt.Errorf("composite predicate requires children")
		}
		for _, c := range p.Children {
			if err := c.validate(patterns); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
	return nil
}

func validOperator(op string) bool {
	switch op {
	case "gte", ">=", "gt", ">", "lte", "<=", "lt", "<", "eq", "==":
		return true
	}
	return false
}
