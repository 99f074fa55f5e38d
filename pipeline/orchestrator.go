// api/pipeline/orchestrator.go
package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aegis-governance/aegis/api/audit"
	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	"github.com/aegis-governance/aegis/api/generation"
	logger "github.com/aegis-governance/aegis/api/logging"
	"github.com/aegis-governance/aegis/api/model"
	"github.com/aegis-governance/aegis/api/stage"
	"github.com/aegis-governance/aegis/api/util"
)

// Run states, in the order a request moves through them.
const (
	StateReceived       = "RECEIVED"
	StatePromptGuarded  = "PROMPT_GUARDED"
	StateGenerated      = "GENERATED"
	StateShortCircuited = "SHORT_CIRCUITED"
	StateOutputAudited  = "OUTPUT_AUDITED"
	StateEnforced       = "ENFORCED"
	StateAdvised        = "ADVISED"
	StateRecorded       = "RECORDED"
	StateDone           = "DONE"
	StateFailed         = "FAILED"
)

type Config struct {
	StageTimeout      time.Duration
	GenerationTimeout time.Duration
}

// Orchestrator drives one request through prompt guard, generation, output
// audit, enforcement, advisory and recording. Every run, including a failed
// one, produces exactly one audit record.
type Orchestrator struct {
	guard     *stage.PromptGuard
	auditor   *stage.OutputAuditor
	enforcer  *stage.Enforcer
	advisor   *stage.Advisor
	generator generation.Generator
	recorder  audit.Service
	eventBus  *util.EventBus
	cfg       Config
}

func NewOrchestrator(
	guard *stage.PromptGuard,
	auditor *stage.OutputAuditor,
	enforcer *stage.Enforcer,
	advisor *stage.Advisor,
	generator generation.Generator,
	recorder audit.Service,
	eventBus *util.EventBus,
	cfg Config,
) *Orchestrator {
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = 5 * time.Second
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	return &Orchestrator{
		guard:     guard,
		auditor:   auditor,
		enforcer:  enforcer,
		advisor:   advisor,
		generator: generator,
		recorder:  recorder,
		eventBus:  eventBus,
		cfg:       cfg,
	}
}

// Process runs the full pipeline for one request. The returned result always
// carries a final verdict and an audit ID; the error is non-nil only for
// invalid input, never for a degraded or blocked run.
func (o *Orchestrator) Process(ctx context.Context, req model.GovernanceRequest) (*model.PipelineResult, error) {
	if req.Prompt == "" {
		return nil, aegis_errors.ErrValidation
	}

	result := &model.PipelineResult{
		RequestID:   req.RequestID,
		SessionID:   req.SessionID,
		PrincipalID: req.PrincipalID,
		Context:     req.Context,
		Prompt:      req.Prompt,
		State:       StateReceived,
		StartedAt:   time.Now().UTC(),
	}

	guardVerdict, guardFailed := o.runStage(ctx, model.StagePromptGuard, func(sctx context.Context) model.StageVerdict {
		return o.guard.Check(sctx, req)
	})
	result.Verdicts = append(result.Verdicts, guardVerdict)
	result.State = StatePromptGuarded
	if guardFailed {
		result.State = StateFailed
	}

	var outputVerdict model.StageVerdict
	switch {
	case guardFailed:
		// The run is already failed; the model is not invoked.
		outputVerdict = model.StageVerdict{Stage: model.StageOutputAudit, Outcome: model.OutcomeAllow}
	case guardVerdict.Outcome == model.OutcomeBlock:
		// The model is never invoked for a blocked prompt.
		result.State = StateShortCircuited
		outputVerdict = model.StageVerdict{Stage: model.StageOutputAudit, Outcome: model.OutcomeAllow}
	default:
		response, genVerdict := o.generate(ctx, req)
		if genVerdict != nil {
			outputVerdict = *genVerdict
			result.Verdicts = append(result.Verdicts, outputVerdict)
			result.State = StateFailed
		} else {
			result.Response = response
			result.State = StateGenerated

			var auditFailed bool
			outputVerdict, auditFailed = o.runStage(ctx, model.StageOutputAudit, func(sctx context.Context) model.StageVerdict {
				return o.auditor.Audit(sctx, response, req.Context)
			})
			result.Verdicts = append(result.Verdicts, outputVerdict)
			result.State = StateOutputAudited
			if auditFailed {
				result.State = StateFailed
			}
		}
	}

	result.Final = o.enforcer.Merge(guardVerdict, outputVerdict, req.Context)
	if result.State != StateFailed {
		result.State = StateEnforced
	}

	if result.Final.Outcome != model.OutcomeAllow {
		// Blocked and degraded responses never reach the caller.
		if result.Final.Outcome == model.OutcomeBlock {
			result.Response = ""
		}
		advisory := o.advisor.Advise(result.Final)
		result.Advisory = &advisory
		if result.State == StateEnforced {
			result.State = StateAdvised
		}
	}

	result.CompletedAt = time.Now().UTC()
	auditID := o.recorder.Record(ctx, result)
	result.AuditID = auditID
	if result.State != StateFailed {
		result.State = StateDone
	}

	if o.eventBus != nil {
		o.eventBus.Publish(context.Background(), util.EventPipelineCompleted, result)
	}
	logger.Info("Pipeline run completed",
		zap.String("requestID", req.RequestID),
		zap.String("auditID", auditID),
		zap.String("state", result.State),
		zap.String("outcome", string(result.Final.Outcome)),
		zap.Int("riskScore", result.Final.RiskScore))
	return result, nil
}

// runStage executes one stage under the stage timeout. A stage that does not
// finish in time fails closed: the verdict is a block carrying a TIMEOUT
// signal and the run is marked failed. A client disconnect instead lets the
// stage finish, so the audit record carries its real signals, then tags the
// verdict CLIENT_CANCELLED and fails the run.
func (o *Orchestrator) runStage(ctx context.Context, stageName string, fn func(context.Context) model.StageVerdict) (model.StageVerdict, bool) {
	sctx, cancel := context.WithTimeout(ctx, o.cfg.StageTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan model.StageVerdict, 1)
	go func() {
		done <- fn(sctx)
	}()

	select {
	case verdict := <-done:
		return verdict, false
	case <-sctx.Done():
		if ctx.Err() != nil {
			verdict := <-done
			verdict.Signals = append(verdict.Signals, model.Signal{
				ID:          model.SignalClientCancelled,
				Severity:    model.SeverityHigh,
				Description: "caller abandoned the request",
				Position:    -1,
			})
			verdict.Duration = time.Since(start)
			logger.Warn("Stage finished after caller disconnect",
				zap.String("stage", stageName))
			return verdict, true
		}
		logger.Warn("Stage failed closed",
			zap.String("stage", stageName),
			zap.String("signal", model.SignalTimeout))
		return model.StageVerdict{
			Stage:     stageName,
			Outcome:   model.OutcomeBlock,
			RiskScore: 100,
			Signals: []model.Signal{
				{ID: model.SignalTimeout, Severity: model.SeverityHigh, Description: "stage exceeded its deadline", Position: -1},
			},
			Duration: time.Since(start),
		}, true
	}
}

// generate invokes the model once. It is never retried: a failure yields a
// blocking verdict in place of the output audit, tagged by failure class.
func (o *Orchestrator) generate(ctx context.Context, req model.GovernanceRequest) (string, *model.StageVerdict) {
	gctx, cancel := context.WithTimeout(ctx, o.cfg.GenerationTimeout)
	defer cancel()

	start := time.Now()
	response, err := o.generator.Generate(gctx, req.Prompt, req.ModelID, req.Context)
	if err == nil {
		return response, nil
	}

	signalID := model.SignalUpstreamDown
	description := "model backend unavailable"
	switch {
	case ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled):
		signalID = model.SignalClientCancelled
		description = "caller abandoned the request"
	case errors.Is(err, aegis_errors.ErrStageTimeout) || errors.Is(gctx.Err(), context.DeadlineExceeded):
		signalID = model.SignalTimeout
		description = "model call exceeded its deadline"
	}
	logger.Error("Generation failed",
		zap.String("requestID", req.RequestID),
		zap.String("signal", signalID),
		zap.Error(err))

	return "", &model.StageVerdict{
		Stage:     model.StageOutputAudit,
		Outcome:   model.OutcomeBlock,
		RiskScore: 100,
		Signals: []model.Signal{
			{ID: signalID, Severity: model.SeverityHigh, Description: description, Position: -1},
		},
		Duration: time.Since(start),
	}
}
