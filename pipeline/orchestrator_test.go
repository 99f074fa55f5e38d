// api/pipeline/orchestrator_test.go
package pipeline_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/aegis-governance/aegis/api/classify"
	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	logger "github.com/aegis-governance/aegis/api/logging"
	"github.com/aegis-governance/aegis/api/model"
	"github.com/aegis-governance/aegis/api/pipeline"
	"github.com/aegis-governance/aegis/api/policy"
	"github.com/aegis-governance/aegis/api/risk"
	"github.com/aegis-governance/aegis/api/stage"
	mock_test "github.com/aegis-governance/aegis/api/test/mock"
)

func TestMain(m *testing.M) {
	logger.InitLogger("")
	os.Exit(m.Run())
}

type fixture struct {
	generator  *mock_test.MockGenerator
	classifier *mock_test.MockClassifier
	recorder   *mock_test.MockAuditService
	orch       *pipeline.Orchestrator
}

func newFixture(t *testing.T, cfg pipeline.Config, classifier *mock_test.MockClassifier) *fixture {
	t.Helper()

	scorer := risk.NewScorer(risk.ScorerConfig{})
	store := policy.NewStore()
	stageCfg := stage.Config{WarnThreshold: 40, BlockThreshold: 75, ClassifierTimeout: time.Second}

	var cls classify.Classifier
	if classifier != nil {
		cls = classifier
	}

	generator := new(mock_test.MockGenerator)
	recorder := new(mock_test.MockAuditService)

	orch := pipeline.NewOrchestrator(
		stage.NewPromptGuard(scorer, store, cls, stageCfg),
		stage.NewOutputAuditor(scorer, store, cls, stageCfg),
		stage.NewEnforcer([]string{"healthcare", "finance"}, nil),
		stage.NewAdvisor(),
		generator,
		recorder,
		nil,
		cfg,
	)
	return &fixture{generator: generator, classifier: classifier, recorder: recorder, orch: orch}
}

func governanceRequest(prompt string) model.GovernanceRequest {
	return model.NewGovernanceRequest(prompt, "user-1", "analyst", "", nil, "session-1")
}

func TestOrchestratorProcess(t *testing.T) {
	t.Run("AllowedRunReachesDone", func(t *testing.T) {
		f := newFixture(t, pipeline.Config{}, nil)
		f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("Here is a summary.", nil)
		f.recorder.On("Record", mock.Anything, mock.Anything).Return("audit-1")

		result, err := f.orch.Process(context.Background(), governanceRequest("Summarize this contract clause."))
		require.NoError(t, err)

		assert.Equal(t, model.OutcomeAllow, result.Final.Outcome)
		assert.Equal(t, "Here is a summary.", result.Response)
		assert.Equal(t, pipeline.StateDone, result.State)
		assert.Equal(t, "audit-1", result.AuditID)
		assert.Nil(t, result.Advisory)

		f.generator.AssertNumberOfCalls(t, "Generate", 1)
		f.recorder.AssertNumberOfCalls(t, "Record", 1)
	})

	t.Run("BlockedPromptShortCircuitsGeneration", func(t *testing.T) {
		f := newFixture(t, pipeline.Config{}, nil)
		f.recorder.On("Record", mock.Anything, mock.Anything).Return("audit-2")

		// Two critical denylist hits push the prompt past the block
		// threshold before any model call.
		result, err := f.orch.Process(context.Background(), governanceRequest("card 4111 1111 1111 1111 ssn 123-45-6789"))
		require.NoError(t, err)

		assert.Equal(t, model.OutcomeBlock, result.Final.Outcome)
		assert.Empty(t, result.Response)
		assert.Equal(t, pipeline.StateDone, result.State)
		require.NotNil(t, result.Advisory)
		assert.NotEmpty(t, result.Advisory.Explanation)

		f.generator.AssertNotCalled(t, "Generate")
		f.recorder.AssertNumberOfCalls(t, "Record", 1)
	})

	t.Run("GeneratorFailureBlocksWithoutRetry", func(t *testing.T) {
		f := newFixture(t, pipeline.Config{}, nil)
		f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", aegis_errors.ErrModelUnavailable)
		f.recorder.On("Record", mock.Anything, mock.Anything).Return("audit-3")

		result, err := f.orch.Process(context.Background(), governanceRequest("Summarize this contract clause."))
		require.NoError(t, err)

		assert.Equal(t, model.OutcomeBlock, result.Final.Outcome)
		assert.Equal(t, pipeline.StateFailed, result.State)
		assert.Contains(t, finalSignalIDs(result), model.SignalUpstreamDown)

		f.generator.AssertNumberOfCalls(t, "Generate", 1)
		f.recorder.AssertNumberOfCalls(t, "Record", 1)
	})

	t.Run("GenerationTimeoutTagsTimeout", func(t *testing.T) {
		f := newFixture(t, pipeline.Config{GenerationTimeout: 20 * time.Millisecond}, nil)
		f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { time.Sleep(60 * time.Millisecond) }).
			Return("", context.DeadlineExceeded)
		f.recorder.On("Record", mock.Anything, mock.Anything).Return("audit-4")

		result, err := f.orch.Process(context.Background(), governanceRequest("Summarize this contract clause."))
		require.NoError(t, err)

		assert.Equal(t, model.OutcomeBlock, result.Final.Outcome)
		assert.Contains(t, finalSignalIDs(result), model.SignalTimeout)
		f.generator.AssertNumberOfCalls(t, "Generate", 1)
	})

	t.Run("StuckStageFailsClosed", func(t *testing.T) {
		classifier := new(mock_test.MockClassifier)
		classifier.On("Classify", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { time.Sleep(200 * time.Millisecond) }).
			Return(nil, context.DeadlineExceeded)

		f := newFixture(t, pipeline.Config{StageTimeout: 20 * time.Millisecond}, classifier)
		f.recorder.On("Record", mock.Anything, mock.Anything).Return("audit-5")

		result, err := f.orch.Process(context.Background(), governanceRequest("Summarize this contract clause."))
		require.NoError(t, err)

		assert.Equal(t, model.OutcomeBlock, result.Final.Outcome)
		assert.Equal(t, pipeline.StateFailed, result.State)
		assert.Contains(t, finalSignalIDs(result), model.SignalTimeout)
		f.generator.AssertNotCalled(t, "Generate")
		f.recorder.AssertNumberOfCalls(t, "Record", 1)
	})

	t.Run("CallerDisconnectFinishesStage", func(t *testing.T) {
		classifier := new(mock_test.MockClassifier)
		classifier.On("Classify", mock.Anything, mock.Anything).
			Run(func(mock.Arguments) { time.Sleep(100 * time.Millisecond) }).
			Return(nil, context.Canceled)

		f := newFixture(t, pipeline.Config{StageTimeout: time.Second}, classifier)
		f.recorder.On("Record", mock.Anything, mock.Anything).Return("audit-7")

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(10*time.Millisecond, cancel)

		// The guard stage is held open past the cancellation; its real
		// signals must still reach the audit record.
		result, err := f.orch.Process(ctx, governanceRequest("patient ssn is 123-45-6789, summarize the rest"))
		require.NoError(t, err)

		assert.Equal(t, pipeline.StateFailed, result.State)
		ids := finalSignalIDs(result)
		assert.Contains(t, ids, model.SignalClientCancelled)
		assert.Contains(t, ids, "PII_SSN")
		f.generator.AssertNotCalled(t, "Generate")
		f.recorder.AssertNumberOfCalls(t, "Record", 1)
	})

	t.Run("EmptyPromptRejected", func(t *testing.T) {
		f := newFixture(t, pipeline.Config{}, nil)
		_, err := f.orch.Process(context.Background(), governanceRequest(""))
		assert.ErrorIs(t, err, aegis_errors.ErrValidation)
		f.recorder.AssertNotCalled(t, "Record")
	})

	t.Run("WarnKeepsResponseWithAdvisory", func(t *testing.T) {
		f := newFixture(t, pipeline.Config{}, nil)
		f.generator.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("Summary of the record.", nil)
		f.recorder.On("Record", mock.Anything, mock.Anything).Return("audit-6")

		// A single critical hit lands exactly on the warn threshold.
		result, err := f.orch.Process(context.Background(), governanceRequest("patient ssn is 123-45-6789, summarize the rest"))
		require.NoError(t, err)

		assert.Equal(t, model.OutcomeWarn, result.Final.Outcome)
		assert.Equal(t, "Summary of the record.", result.Response)
		require.NotNil(t, result.Advisory)
	})
}

func finalSignalIDs(result *model.PipelineResult) []string {
	ids := make([]string, 0, len(result.Final.Signals))
	for _, s := range result.Final.Signals {
		ids = append(ids, s.ID)
	}
	return ids
}
