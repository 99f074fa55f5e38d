// api/audit/service.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	logger "github.com/aegis-governance/aegis/api/logging"
	"github.com/aegis-governance/aegis/api/model"
	"github.com/aegis-governance/aegis/api/objectstore"
	"github.com/aegis-governance/aegis/api/util"
)

// ServiceConfig bounds the recorder. The write timeout caps how long a
// pipeline run waits on the store; everything past that happens off the
// request path.
type ServiceConfig struct {
	WriteTimeout    time.Duration
	RetryAttempts   int
	RetryBaseDelay  time.Duration
	InlineSizeLimit int
	DefaultTTL      time.Duration
	FrameworkTTLs   map[string]time.Duration
}

type Service interface {
	// Record persists the audit record for one completed pipeline run and
	// returns its audit ID. A store failure never propagates to the caller;
	// the record is retried in the background and finally parked in the
	// fallback queue.
	Record(ctx context.Context, result *model.PipelineResult) string
	GetRecord(ctx context.Context, auditID string) (*Record, error)
	Query(ctx context.Context, from, to time.Time, sessionID, userID string) ([]Record, error)
	Analytics(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error)
	// ReplayFallback drains the fallback queue back into the store and
	// reports how many records were replayed.
	ReplayFallback(ctx context.Context) (int, error)
}

type service struct {
	repo     Repository
	payloads objectstore.Store
	queue    FallbackQueue
	eventBus *util.EventBus
	cfg      ServiceConfig
}

func NewService(repo Repository, payloads objectstore.Store, queue FallbackQueue, eventBus *util.EventBus, cfg ServiceConfig) Service {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 5
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 200 * time.Millisecond
	}
	if cfg.InlineSizeLimit <= 0 {
		cfg.InlineSizeLimit = 8192
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 365 * 24 * time.Hour
	}
	return &service{repo: repo, payloads: payloads, queue: queue, eventBus: eventBus, cfg: cfg}
}

func (s *service) Record(ctx context.Context, result *model.PipelineResult) string {
	rec := s.buildRecord(ctx, result)

	wctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()

	if err := s.repo.Put(wctx, rec); err != nil {
		logger.Warn("Audit write failed, scheduling retry",
			zap.String("auditID", rec.AuditID),
			zap.Error(err))
		if s.eventBus != nil {
			s.eventBus.Publish(context.Background(), util.EventAuditWriteFailed, rec)
		}
		go s.retry(rec)
	}
	return rec.AuditID
}

// retry re-attempts the write with exponential backoff. When the budget is
// spent the record goes to the fallback queue so it is not lost.
func (s *service) retry(rec Record) {
	delay := s.cfg.RetryBaseDelay
	for attempt := 1; attempt <= s.cfg.RetryAttempts; attempt++ {
		time.Sleep(delay)
		delay *= 2

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
		err := s.repo.Put(ctx, rec)
		cancel()
		if err == nil {
			logger.Info("Audit write recovered",
				zap.String("auditID", rec.AuditID),
				zap.Int("attempt", attempt))
			return
		}
		logger.Warn("Audit write retry failed",
			zap.String("auditID", rec.AuditID),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	data, err := json.Marshal(rec)
	if err != nil {
		logger.Error("Failed to marshal audit record for fallback", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	if err := s.queue.Enqueue(ctx, data); err != nil {
		logger.Error("Failed to enqueue audit record to fallback queue",
			zap.String("auditID", rec.AuditID),
			zap.Error(err))
		return
	}
	logger.Warn("Audit record parked in fallback queue", zap.String("auditID", rec.AuditID))
}

func (s *service) buildRecord(ctx context.Context, result *model.PipelineResult) Record {
	now := time.Now().UTC()
	rec := Record{
		AuditID:        uuid.New().String(),
		RequestID:      result.RequestID,
		SessionID:      result.SessionID,
		UserID:         result.PrincipalID,
		Timestamp:      now,
		State:          result.State,
		FinalOutcome:   result.Final.Outcome,
		RiskScore:      result.Final.RiskScore,
		Verdicts:       result.Verdicts,
		Advisory:       result.Advisory,
		PromptHash:     HashPayload(result.Prompt),
		PromptLength:   len(result.Prompt),
		ResponseHash:   HashPayload(result.Response),
		ResponseLength: len(result.Response),
		ExpiresAt:      now.Add(s.retentionFor(result.Context)),
	}

	for _, sig := range result.Final.Signals {
		rec.SignalIDs = append(rec.SignalIDs, sig.ID)
	}
	rec.Anomalies = detectAnomalies(result)

	if s.payloads != nil && len(result.Prompt)+len(result.Response) > s.cfg.InlineSizeLimit {
		rec.PayloadRef = s.offloadPayload(ctx, rec.AuditID, result)
	}
	return rec
}

// offloadPayload puts an oversized prompt/response pair into the object
// store and returns its URI. An upload failure only costs the reference;
// the hashes in the record still identify the payload.
func (s *service) offloadPayload(ctx context.Context, auditID string, result *model.PipelineResult) string {
	doc, err := json.Marshal(map[string]string{
		"request_id": result.RequestID,
		"prompt":     result.Prompt,
		"response":   result.Response,
	})
	if err != nil {
		logger.Error("Failed to marshal payload for offload", zap.Error(err))
		return ""
	}
	uri, err := s.payloads.Put(ctx, "payloads/"+auditID+".json", doc)
	if err != nil {
		logger.Warn("Payload offload failed, keeping hashes only",
			zap.String("auditID", auditID),
			zap.Error(err))
		return ""
	}
	return uri
}

// retentionFor resolves the record TTL from the request's declared
// compliance framework, falling back to the default retention window.
func (s *service) retentionFor(reqContext map[string]string) time.Duration {
	if framework, ok := reqContext["compliance"]; ok {
		if ttl, ok := s.cfg.FrameworkTTLs[framework]; ok {
			return ttl
		}
	}
	return s.cfg.DefaultTTL
}

func detectAnomalies(result *model.PipelineResult) []string {
	var anomalies []string
	if result.Final.Outcome == model.OutcomeBlock {
		anomalies = append(anomalies, "policy_violation")
	}
	if result.Final.RiskScore >= 90 {
		anomalies = append(anomalies, "extreme_risk_score")
	}
	if len(result.Prompt) > 10000 {
		anomalies = append(anomalies, "oversized_prompt")
	}
	for _, sig := range result.Final.Signals {
		if sig.ID == model.SignalFairnessFlag {
			anomalies = append(anomalies, "fairness_flag")
			break
		}
	}
	return anomalies
}

func (s *service) GetRecord(ctx context.Context, auditID string) (*Record, error) {
	return s.repo.GetByID(ctx, auditID)
}

func (s *service) Query(ctx context.Context, from, to time.Time, sessionID, userID string) ([]Record, error) {
	return s.repo.Query(ctx, from, to, sessionID, userID)
}

func (s *service) Analytics(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error) {
	return s.repo.Aggregate(ctx, from, to)
}

func (s *service) ReplayFallback(ctx context.Context) (int, error) {
	replayed := 0
	for {
		data, err := s.queue.Dequeue(ctx)
		if err != nil {
			return replayed, err
		}
		if data == nil {
			return replayed, nil
		}

		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			logger.Error("Dropping unreadable fallback payload", zap.Error(err))
			continue
		}
		if err := s.repo.Put(ctx, rec); err != nil {
			// Store still down. Park the record again and stop.
			if qerr := s.queue.Enqueue(ctx, data); qerr != nil {
				logger.Error("Failed to re-enqueue fallback record",
					zap.String("auditID", rec.AuditID),
					zap.Error(qerr))
			}
			return replayed, fmt.Errorf("%w: %v", aegis_errors.ErrAuditWrite, err)
		}
		replayed++
	}
}
