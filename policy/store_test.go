// api/policy/store_test.go
package policy_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	logger "github.com/aegis-governance/aegis/api/logging"
	"github.com/aegis-governance/aegis/api/model"
	"github.com/aegis-governance/aegis/api/policy"
)

func TestMain(m *testing.M) {
	logger.InitLogger("")
	os.Exit(m.Run())
}

func TestStoreSwap(t *testing.T) {
	store := policy.NewStore()
	assert.Nil(t, store.Active())
	assert.Equal(t, "", store.ActiveVersion())

	first := &policy.RuleSet{Version: "v1", Rules: []policy.Rule{
		patternRule("R1", "alpha", model.SeverityLow, model.OutcomeWarn),
	}}
	require.NoError(t, store.Swap(first))
	assert.Equal(t, "v1", store.ActiveVersion())

	t.Run("InvalidSetLeavesActiveUntouched", func(t *testing.T) {
		broken := &policy.RuleSet{Version: "v2", Rules: []policy.Rule{
			patternRule("R1", "([unclosed", model.SeverityLow, model.OutcomeWarn),
		}}
		err := store.Swap(broken)
		assert.ErrorIs(t, err, aegis_errors.ErrPolicyLoad)
		assert.Equal(t, "v1", store.ActiveVersion())
	})

	t.Run("InFlightEvaluationKeepsItsSet", func(t *testing.T) {
		held := store.Active()

		second := &policy.RuleSet{Version: "v2", Rules: []policy.Rule{
			patternRule("R1", "beta", model.SeverityLow, model.OutcomeWarn),
		}}
		require.NoError(t, store.Swap(second))
		assert.Equal(t, "v2", store.ActiveVersion())

		// The set captured before the swap still evaluates its own rules.
		triggered := policy.Evaluate(policy.Facts{Text: "alpha"}, held)
		assert.Len(t, triggered, 1)
	})

	t.Run("OnSwapHookFires", func(t *testing.T) {
		notified := ""
		store.OnSwap(func(rs *policy.RuleSet) { notified = rs.Version })

		third := &policy.RuleSet{Version: "v3", Rules: []policy.Rule{
			patternRule("R1", "gamma", model.SeverityLow, model.OutcomeWarn),
		}}
		require.NoError(t, store.Swap(third))
		assert.Equal(t, "v3", notified)
	})
}
