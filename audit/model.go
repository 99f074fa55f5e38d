// api/audit/model.go
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/aegis-governance/aegis/api/model"
)

// Record is one durable, append-only audit row. Once written it is never
// updated; a correction is a new record whose CorrectsAuditID references
// the original.
type Record struct {
	AuditID         string               `json:"audit_id"`
	RequestID       string               `json:"request_id"`
	SessionID       string               `json:"session_id"`
	UserID          string               `json:"user_id"`
	Timestamp       time.Time            `json:"timestamp"`
	State           string               `json:"state"`
	FinalOutcome    model.Outcome        `json:"final_outcome"`
	RiskScore       int                  `json:"risk_score"`
	Verdicts        []model.StageVerdict `json:"verdicts"`
	Advisory        *model.Advisory      `json:"advisory,omitempty"`
	SignalIDs       []string             `json:"signal_ids"`
	PromptHash      string               `json:"prompt_hash"`
	PromptLength    int                  `json:"prompt_length"`
	ResponseHash    string               `json:"response_hash,omitempty"`
	ResponseLength  int                  `json:"response_length"`
	PayloadRef      string               `json:"payload_ref,omitempty"`
	Anomalies       []string             `json:"anomalies,omitempty"`
	CorrectsAuditID string               `json:"corrects_audit_id,omitempty"`
	ExpiresAt       time.Time            `json:"expires_at"`
}

// HashPayload redacts a payload to its SHA-256 digest. Raw prompt and
// response text never reach the audit store inline.
func HashPayload(payload string) string {
	if payload == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Feedback is an end-user quality rating attached to an existing audit
// record. The submitter is stored only as a SHA-256 hash.
type Feedback struct {
	FeedbackID  string    `json:"feedback_id"`
	AuditID     string    `json:"audit_id"`
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	UserHash    string    `json:"user_hash"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// AnalyticsSummary aggregates the audit trail for the dashboard endpoint.
type AnalyticsSummary struct {
	TotalRuns   int64            `json:"total_runs"`
	Decisions   map[string]int64 `json:"decisions"`
	TopSignals  []SignalCount    `json:"top_signals"`
	Anomalies   int64            `json:"anomalies"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// SignalCount is one entry of the top-signals aggregation.
type SignalCount struct {
	SignalID string `json:"signal_id"`
	Count    int64  `json:"count"`
}
