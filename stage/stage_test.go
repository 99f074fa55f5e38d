// api/stage/stage_test.go
package stage_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	logger "github.com/aegis-governance/aegis/api/logging"
	"github.com/aegis-governance/aegis/api/model"
	"github.com/aegis-governance/aegis/api/policy"
	"github.com/aegis-governance/aegis/api/risk"
	"github.com/aegis-governance/aegis/api/stage"
	mock_test "github.com/aegis-governance/aegis/api/test/mock"
)

func TestMain(m *testing.M) {
	logger.InitLogger("")
	os.Exit(m.Run())
}

var testCfg = stage.Config{WarnThreshold: 40, BlockThreshold: 75}

func emptyStore(t *testing.T) *policy.Store {
	t.Helper()
	return policy.NewStore()
}

func storeWith(t *testing.T, rules ...policy.Rule) *policy.Store {
	t.Helper()
	store := policy.NewStore()
	require.NoError(t, store.Swap(&policy.RuleSet{Version: "test", Rules: rules}))
	return store
}

func request(prompt string, reqContext map[string]string) model.GovernanceRequest {
	return model.NewGovernanceRequest(prompt, "user-1", "analyst", "", reqContext, "session-1")
}

func TestPromptGuard(t *testing.T) {
	scorer := risk.NewScorer(risk.ScorerConfig{})

	t.Run("CleanPromptAllows", func(t *testing.T) {
		guard := stage.NewPromptGuard(scorer, emptyStore(t), nil, testCfg)
		verdict := guard.Check(context.Background(), request("Summarize this contract clause.", nil))
		assert.Equal(t, model.StagePromptGuard, verdict.Stage)
		assert.Equal(t, model.OutcomeAllow, verdict.Outcome)
		assert.Equal(t, 0, verdict.RiskScore)
		assert.Empty(t, verdict.Signals)
	})

	t.Run("TriggeredBlockRuleWins", func(t *testing.T) {
		rule := policy.Rule{
			ID:          "CARD-BLOCK",
			Description: "no card numbers",
			Predicate:   policy.Predicate{Kind: policy.KindPattern, Pattern: `\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`},
			Severity:    model.SeverityCritical,
			Action:      model.OutcomeBlock,
		}
		guard := stage.NewPromptGuard(scorer, storeWith(t, rule), nil, testCfg)

		verdict := guard.Check(context.Background(), request("charge 4111 1111 1111 1111 please", nil))
		assert.Equal(t, model.OutcomeBlock, verdict.Outcome)

		ids := signalIDs(verdict.Signals)
		assert.Contains(t, ids, "PII_MATCH")
		assert.Contains(t, ids, "CARD-BLOCK")
	})

	t.Run("ScoreThresholdsDriveOutcome", func(t *testing.T) {
		guard := stage.NewPromptGuard(scorer, emptyStore(t), nil, testCfg)

		// One critical signal: 40 = warn threshold.
		verdict := guard.Check(context.Background(), request("ssn 123-45-6789", nil))
		assert.Equal(t, model.OutcomeWarn, verdict.Outcome)

		// Stacked criticals push past the block threshold.
		verdict = guard.Check(context.Background(), request("4111 1111 1111 1111 and 123-45-6789", nil))
		assert.Equal(t, model.OutcomeBlock, verdict.Outcome)
	})

	t.Run("ClassifierFailureDegrades", func(t *testing.T) {
		classifier := new(mock_test.MockClassifier)
		classifier.On("Classify", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		guard := stage.NewPromptGuard(scorer, emptyStore(t), classifier, testCfg)
		verdict := guard.Check(context.Background(), request("Summarize this contract clause.", nil))

		require.Len(t, verdict.Signals, 1)
		assert.Equal(t, model.SignalUpstreamDown, verdict.Signals[0].ID)
		assert.Equal(t, model.SeverityLow, verdict.Signals[0].Severity)
		assert.Equal(t, model.OutcomeAllow, verdict.Outcome)
	})

	t.Run("ClassifierEntitiesJoinLocalSignals", func(t *testing.T) {
		classifier := new(mock_test.MockClassifier)
		classifier.On("Classify", mock.Anything, mock.Anything).Return(&model.Classification{
			Entities: []model.Entity{{Type: "EMAIL", Score: 0.95, Offset: 3}},
		}, nil)

		guard := stage.NewPromptGuard(scorer, emptyStore(t), classifier, testCfg)
		verdict := guard.Check(context.Background(), request("my email please", nil))
		assert.Contains(t, signalIDs(verdict.Signals), "PII_ENTITY_EMAIL")
	})
}

func TestOutputAuditor(t *testing.T) {
	scorer := risk.NewScorer(risk.ScorerConfig{})

	t.Run("FairnessHeuristicRaisesSeverities", func(t *testing.T) {
		auditor := stage.NewOutputAuditor(scorer, emptyStore(t), nil, testCfg)

		// "stereotype" yields a low KEYWORD_BIAS signal; "gender" is a
		// protected attribute, so the severity is raised and a fairness
		// flag appended.
		verdict := auditor.Audit(context.Background(), "a stereotype about gender roles", nil)

		ids := signalIDs(verdict.Signals)
		require.Contains(t, ids, "KEYWORD_BIAS")
		require.Contains(t, ids, model.SignalFairnessFlag)
		for _, s := range verdict.Signals {
			if s.ID == "KEYWORD_BIAS" {
				assert.Equal(t, model.SeverityMedium, s.Severity)
			}
		}
	})

	t.Run("NoSignalsNoFairnessFlag", func(t *testing.T) {
		auditor := stage.NewOutputAuditor(scorer, emptyStore(t), nil, testCfg)
		verdict := auditor.Audit(context.Background(), "gender is mentioned but nothing risky", nil)
		assert.NotContains(t, signalIDs(verdict.Signals), model.SignalFairnessFlag)
	})
}

func TestEnforcerMerge(t *testing.T) {
	enforcer := stage.NewEnforcer([]string{"healthcare", "finance"}, map[string][]string{
		"finance": {"KEYWORD_REGULATORY"},
	})

	verdict := func(outcome model.Outcome, score int, signals ...model.Signal) model.StageVerdict {
		return model.StageVerdict{Stage: model.StagePromptGuard, Outcome: outcome, RiskScore: score, Signals: signals}
	}

	t.Run("MostRestrictiveOutcome", func(t *testing.T) {
		cases := []struct {
			prompt, output, want model.Outcome
		}{
			{model.OutcomeAllow, model.OutcomeAllow, model.OutcomeAllow},
			{model.OutcomeAllow, model.OutcomeWarn, model.OutcomeWarn},
			{model.OutcomeWarn, model.OutcomeAllow, model.OutcomeWarn},
			{model.OutcomeAllow, model.OutcomeBlock, model.OutcomeBlock},
			{model.OutcomeBlock, model.OutcomeAllow, model.OutcomeBlock},
			{model.OutcomeWarn, model.OutcomeBlock, model.OutcomeBlock},
			{model.OutcomeBlock, model.OutcomeBlock, model.OutcomeBlock},
		}
		for _, tc := range cases {
			final := enforcer.Merge(verdict(tc.prompt, 0), verdict(tc.output, 0), nil)
			assert.Equal(t, tc.want, final.Outcome, "prompt=%s output=%s", tc.prompt, tc.output)
			assert.Equal(t, model.StageEnforcement, final.Stage)
		}
	})

	t.Run("MaxScoreAndConcatenatedSignals", func(t *testing.T) {
		a := model.Signal{ID: "A", Severity: model.SeverityLow}
		b := model.Signal{ID: "B", Severity: model.SeverityLow}
		final := enforcer.Merge(verdict(model.OutcomeWarn, 55, a), verdict(model.OutcomeAllow, 30, b), nil)
		assert.Equal(t, 55, final.RiskScore)
		assert.Equal(t, []string{"A", "B"}, signalIDs(final.Signals))
	})

	t.Run("RegulatedDomainEscalatesWarn", func(t *testing.T) {
		sig := model.Signal{ID: "KEYWORD_PRIVACY", Severity: model.SeverityMedium}
		final := enforcer.Merge(verdict(model.OutcomeWarn, 40, sig), verdict(model.OutcomeAllow, 0), map[string]string{"domain": "healthcare"})
		assert.Equal(t, model.OutcomeBlock, final.Outcome)
	})

	t.Run("UnregulatedDomainKeepsWarn", func(t *testing.T) {
		sig := model.Signal{ID: "KEYWORD_PRIVACY", Severity: model.SeverityMedium}
		final := enforcer.Merge(verdict(model.OutcomeWarn, 40, sig), verdict(model.OutcomeAllow, 0), map[string]string{"domain": "marketing"})
		assert.Equal(t, model.OutcomeWarn, final.Outcome)
	})

	t.Run("WhitelistedSignalKeepsWarn", func(t *testing.T) {
		sig := model.Signal{ID: "KEYWORD_REGULATORY", Severity: model.SeverityMedium}
		final := enforcer.Merge(verdict(model.OutcomeWarn, 40, sig), verdict(model.OutcomeAllow, 0), map[string]string{"domain": "finance"})
		assert.Equal(t, model.OutcomeWarn, final.Outcome)

		// The whitelist is per domain: the same signal escalates elsewhere.
		final = enforcer.Merge(verdict(model.OutcomeWarn, 40, sig), verdict(model.OutcomeAllow, 0), map[string]string{"domain": "healthcare"})
		assert.Equal(t, model.OutcomeBlock, final.Outcome)
	})
}

func TestAdvisor(t *testing.T) {
	advisor := stage.NewAdvisor()

	t.Run("KnownSignal", func(t *testing.T) {
		final := model.StageVerdict{Signals: []model.Signal{
			{ID: "PII_MATCH", Severity: model.SeverityCritical},
			{ID: "KEYWORD_PRIVACY", Severity: model.SeverityMedium},
		}}
		advisory := advisor.Advise(final)
		assert.Equal(t, "PII_MATCH", advisory.SignalID)
		assert.NotEmpty(t, advisory.Explanation)
		assert.NotEmpty(t, advisory.Alternatives)
	})

	t.Run("UnknownSignalFallsBack", func(t *testing.T) {
		final := model.StageVerdict{Signals: []model.Signal{{ID: "NEVER_MAPPED", Severity: model.SeverityHigh}}}
		advisory := advisor.Advise(final)
		assert.Equal(t, "NEVER_MAPPED", advisory.SignalID)
		assert.NotEmpty(t, advisory.Explanation)
	})

	t.Run("NoSignalsStillAdvises", func(t *testing.T) {
		advisory := advisor.Advise(model.StageVerdict{})
		assert.Equal(t, "", advisory.SignalID)
		assert.NotEmpty(t, advisory.Explanation)
	})

	t.Run("DeploymentOverride", func(t *testing.T) {
		advisor.AddEntry("NEVER_MAPPED", "custom guidance", []string{"do X"})
		final := model.StageVerdict{Signals: []model.Signal{{ID: "NEVER_MAPPED", Severity: model.SeverityHigh}}}
		advisory := advisor.Advise(final)
		assert.Equal(t, "custom guidance", advisory.Explanation)
	})
}

func signalIDs(signals []model.Signal) []string {
	ids := make([]string, 0, len(signals))
	for _, s := range signals {
		ids = append(ids, s.ID)
	}
	return ids
}
