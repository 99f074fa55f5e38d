// api/risk/scorer.go
package risk

import (
	"sort"
	"strings"

	"github.com/aegis-governance/aegis/api/model"
)

// ScorerConfig holds the tunables the governance policy leaves open.
type ScorerConfig struct {
	MaxTextLength        int
	ToxicityThreshold    float64
	EntityScoreThreshold float64
}

// Scorer maps (text, context, optional classification) to a 0..100 risk
// score plus an ordered signal list. It is deterministic and side-effect
// free: identical inputs always yield identical outputs.
type Scorer struct {
	cfg ScorerConfig
}

func NewScorer(cfg ScorerConfig) *Scorer {
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = 20000
	}
	if cfg.ToxicityThreshold <= 0 {
		cfg.ToxicityThreshold = 0.7
	}
	if cfg.EntityScoreThreshold <= 0 {
		cfg.EntityScoreThreshold = 0.8
	}
	return &Scorer{cfg: cfg}
}

// Score evaluates text against the denylist, the keyword heuristics, and,
// when present, the external classification. Signal order is fixed:
// denylist matches first, then heuristic matches, then classifier-derived
// matches; within a group, higher severity first, severity ties broken by
// earliest match position. Empty or whitespace-only text scores 0 with no
// signals. Oversized text is scored on the retained prefix only and tagged
// with a TRUNCATED signal; it never errors.
func (s *Scorer) Score(text string, context map[string]string, cls *model.Classification) (int, []model.Signal) {
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	truncated := false
	if len(text) > s.cfg.MaxTextLength {
		text = text[:s.cfg.MaxTextLength]
		truncated = true
	}

	signals := sortGroup(s.denylistSignals(text))
	signals = append(signals, sortGroup(s.heuristicSignals(text))...)
	if cls != nil {
		signals = append(signals, sortGroup(s.classifierSignals(cls))...)
	}
	if truncated {
		signals = append(signals, model.Signal{
			ID:          model.SignalTruncated,
			Severity:    model.SeverityLow,
			Description: "Input exceeded maximum length; only the retained prefix was scored",
			Position:    s.cfg.MaxTextLength,
		})
	}

	return scoreFromSignals(signals), signals
}

func (s *Scorer) denylistSignals(text string) []model.Signal {
	var out []model.Signal
	for _, p := range denylist {
		if loc := p.re.FindStringIndex(text); loc != nil {
			out = append(out, model.Signal{
				ID:          p.id,
				Severity:    p.severity,
				Description: p.desc,
				Position:    loc[0],
			})
		}
	}
	return out
}

func (s *Scorer) heuristicSignals(text string) []model.Signal {
	lower := strings.ToLower(text)
	var out []model.Signal
	for _, cat := range keywordCategories {
		first := -1
		var matched []string
		for _, kw := range cat.keywords {
			if idx := strings.Index(lower, kw); idx >= 0 {
				matched = append(matched, kw)
				if first < 0 || idx < first {
					first = idx
				}
			}
		}
		if len(matched) > 0 {
			out = append(out, model.Signal{
				ID:          cat.id,
				Severity:    cat.severity,
				Description: cat.desc + ": " + strings.Join(matched, ", "),
				Position:    first,
			})
		}
	}
	return out
}

func (s *Scorer) classifierSignals(cls *model.Classification) []model.Signal {
	var out []model.Signal
	for _, e := range cls.Entities {
		if e.Score < s.cfg.EntityScoreThreshold {
			continue
		}
		if _, ok := piiEntityTypes[e.Type]; !ok {
			continue
		}
		out = append(out, model.Signal{
			ID:          "PII_ENTITY_" + e.Type,
			Severity:    model.SeverityHigh,
			Description: "Classifier detected PII entity of type " + e.Type,
			Position:    e.Offset,
		})
	}
	for _, c := range cls.Categories {
		if c.Score < s.cfg.ToxicityThreshold {
			continue
		}
		out = append(out, model.Signal{
			ID:          "TOXICITY_" + strings.ToUpper(c.Name),
			Severity:    model.SeverityHigh,
			Description: "Classifier flagged content category " + c.Name,
			Position:    -1,
		})
	}
	return out
}

// ClassifierSignals derives the classifier signal group alone, ordered the
// same way Score orders it. Stages that fetch the classification
// concurrently with local scoring use this to join the two halves.
func (s *Scorer) ClassifierSignals(cls *model.Classification) []model.Signal {
	if cls == nil {
		return nil
	}
	return sortGroup(s.classifierSignals(cls))
}

// ScoreValue recomputes the saturating 0..100 score for a signal list.
func ScoreValue(signals []model.Signal) int {
	return scoreFromSignals(signals)
}

// sortGroup orders one signal group by severity descending, breaking ties by
// earliest match position. Sorting is stable so equal entries keep their
// definition order.
func sortGroup(signals []model.Signal) []model.Signal {
	sort.SliceStable(signals, func(i, j int) bool {
		a, b := signals[i], signals[j]
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		return earlier(a.Position, b.Position)
	})
	return signals
}

func earlier(a, b int) bool {
	if a < 0 {
		return false
	}
	if b < 0 {
		return true
	}
	return a < b
}

// severityWeights translate signal severities into score contributions.
// The overall score saturates at 100.
var severityWeights = map[model.Severity]int{
	model.SeverityCritical: 40,
	model.SeverityHigh:     25,
	model.SeverityMedium:   15,
	model.SeverityLow:      5,
}

func scoreFromSignals(signals []model.Signal) int {
	total := 0
	for _, sig := range signals {
		total += severityWeights[sig.Severity]
	}
	if total > 100 {
		total = 100
	}
	return total
}
