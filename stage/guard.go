// api/stage/guard.go
package stage

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aegis-governance/aegis/api/classify"
	logger "github.com/aegis-governance/aegis/api/logging"
	"github.com/aegis-governance/aegis/api/model"
	"github.com/aegis-governance/aegis/api/policy"
	"github.com/aegis-governance/aegis/api/risk"
)

// Config holds the stage tunables shared by prompt guard and output audit.
type Config struct {
	WarnThreshold     int
	BlockThreshold    int
	ClassifierTimeout time.Duration
}

// PromptGuard screens the inbound prompt before any model invocation.
// A block verdict makes the orchestrator skip generation entirely.
type PromptGuard struct {
	scorer     *risk.Scorer
	rules      *policy.Store
	classifier classify.Classifier
	cfg        Config
}

func NewPromptGuard(scorer *risk.Scorer, rules *policy.Store, classifier classify.Classifier, cfg Config) *PromptGuard {
	return &PromptGuard{scorer: scorer, rules: rules, classifier: classifier, cfg: cfg}
}

// Check produces the prompt-guard verdict. The denylist/heuristic scoring
// pass and the external classifier call run concurrently and are joined
// before the verdict is assembled; a classifier failure degrades scoring to
// local-only mode with an UPSTREAM_DOWN signal rather than failing.
func (g *PromptGuard) Check(ctx context.Context, req model.GovernanceRequest) model.StageVerdict {
	return runChecks(ctx, checkInput{
		stage:      model.StagePromptGuard,
		text:       req.Prompt,
		context:    req.Context,
		scorer:     g.scorer,
		rules:      g.rules,
		classifier: g.classifier,
		cfg:        g.cfg,
	})
}

type checkInput struct {
	stage      string
	text       string
	context    map[string]string
	scorer     *risk.Scorer
	rules      *policy.Store
	classifier classify.Classifier
	cfg        Config
}

// runChecks is the scoring+evaluation core shared by both guard stages.
func runChecks(ctx context.Context, in checkInput) model.StageVerdict {
	start := time.Now()

	var (
		localSignals []model.Signal
		cls          *model.Classification
		clsErr       error
	)

	grp, grpCtx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		_, localSignals = in.scorer.Score(in.text, in.context, nil)
		return nil
	})
	if in.classifier != nil {
		grp.Go(func() error {
			clsCtx := grpCtx
			if in.cfg.ClassifierTimeout > 0 {
				var cancel context.CancelFunc
				clsCtx, cancel = context.WithTimeout(grpCtx, in.cfg.ClassifierTimeout)
				defer cancel()
			}
			cls, clsErr = in.classifier.Classify(clsCtx, in.text)
			return nil
		})
	}
	_ = grp.Wait()

	signals := mergeSignals(localSignals, in.scorer.ClassifierSignals(cls))
	if clsErr != nil {
		logger.Warn("Classifier unavailable, degrading to local-only scoring",
			zap.String("stage", in.stage),
			zap.Error(clsErr))
		signals = append(signals, model.Signal{
			ID:          model.SignalUpstreamDown,
			Severity:    model.SeverityLow,
			Description: "Content-classification capability unavailable; denylist/heuristic mode only",
			Position:    -1,
		})
	}

	facts := policy.Facts{
		Text:        in.text,
		Context:     in.context,
		RiskScore:   risk.ScoreValue(signals),
		Signals:     signals,
		EntityTypes: entityTypes(cls),
	}
	triggered := policy.Evaluate(facts, in.rules.Active())

	outcome := outcomeFromScore(facts.RiskScore, in.cfg)
	for _, t := range triggered {
		outcome = model.MostRestrictive(outcome, t.Action)
		signals = append(signals, model.Signal{
			ID:          t.RuleID,
			Severity:    t.Severity,
			Description: t.Description,
			Position:    -1,
		})
	}

	return model.StageVerdict{
		Stage:     in.stage,
		Outcome:   outcome,
		RiskScore: risk.ScoreValue(signals),
		Signals:   signals,
		Duration:  time.Since(start),
	}
}

// mergeSignals inserts the classifier group before any trailing TRUNCATED
// signal so the fixed order (denylist, heuristic, classifier) holds.
func mergeSignals(local, classifier []model.Signal) []model.Signal {
	if len(classifier) == 0 {
		return local
	}
	cut := len(local)
	for i, s := range local {
		if s.ID == model.SignalTruncated {
			cut = i
			break
		}
	}
	merged := make([]model.Signal, 0, len(local)+len(classifier))
	merged = append(merged, local[:cut]...)
	merged = append(merged, classifier...)
	merged = append(merged, local[cut:]...)
	return merged
}

func entityTypes(cls *model.Classification) []string {
	if cls == nil {
		return nil
	}
	out := make([]string, 0, len(cls.Entities))
	for _, e := range cls.Entities {
		out = append(out, e.Type)
	}
	return out
}

func outcomeFromScore(score int, cfg Config) model.Outcome {
	switch {
	case cfg.BlockThreshold > 0 && score >= cfg.BlockThreshold:
		return model.OutcomeBlock
	case cfg.WarnThreshold > 0 && score >= cfg.WarnThreshold:
		return model.OutcomeWarn
	default:
		return model.OutcomeAllow
	}
}
