// api/model/verdict.go
package model

import "time"

// Outcome is the decision a stage (or the whole pipeline) reaches.
type Outcome string

const (
	OutcomeAllow Outcome = "allow"
	OutcomeWarn  Outcome = "warn"
	OutcomeBlock Outcome = "block"
)

// rank orders outcomes by restrictiveness: block > warn > allow.
func (o Outcome) rank() int {
	switch o {
	case OutcomeBlock:
		return 3
	case OutcomeWarn:
		return 2
	case OutcomeAllow:
		return 1
	default:
		return 0
	}
}

// MostRestrictive returns the stricter of the two outcomes.
func MostRestrictive(a, b Outcome) Outcome {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Valid reports whether o is one of the three known outcomes.
func (o Outcome) Valid() bool {
	return o.rank() > 0
}

// Severity grades a single detected signal.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Raise bumps a severity one level, saturating at critical.
func (s Severity) Raise() Severity {
	switch s {
	case SeverityLow:
		return SeverityMedium
	case SeverityMedium:
		return SeverityHigh
	case SeverityHigh, SeverityCritical:
		return SeverityCritical
	default:
		return s
	}
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

// Signal is a single detected risk indicator. Position is the byte offset of
// the earliest match in the scanned text, or -1 when positional information
// does not apply (classifier results, synthetic signals).
type Signal struct {
	ID          string   `json:"id"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Position    int      `json:"position"`
}

// Synthetic signal IDs appended by the orchestrator and stages.
const (
	SignalTruncated       = "TRUNCATED"
	SignalUpstreamDown    = "UPSTREAM_DOWN"
	SignalTimeout         = "TIMEOUT"
	SignalClientCancelled = "CLIENT_CANCELLED"
	SignalFairnessFlag    = "FAIRNESS_FLAG"
	SignalInternalError   = "INTERNAL_ERROR"
)

// StageVerdict is the append-only result of one pipeline stage. Once
// produced it is never mutated; enforcement builds a new verdict instead.
type StageVerdict struct {
	Stage     string        `json:"stage"`
	Outcome   Outcome       `json:"outcome"`
	RiskScore int           `json:"risk_score"`
	Signals   []Signal      `json:"signals"`
	Duration  time.Duration `json:"duration_ns"`
}

// HighestSeveritySignal returns the most severe signal of the verdict,
// breaking severity ties by earliest match position. ok is false when the
// verdict carries no signals.
func (v StageVerdict) HighestSeveritySignal() (Signal, bool) {
	if len(v.Signals) == 0 {
		return Signal{}, false
	}
	best := v.Signals[0]
	for _, s := range v.Signals[1:] {
		if s.Severity.Rank() > best.Severity.Rank() {
			best = s
			continue
		}
		if s.Severity.Rank() == best.Severity.Rank() && betterPosition(s.Position, best.Position) {
			best = s
		}
	}
	return best, true
}

func betterPosition(candidate, current int) bool {
	if candidate < 0 {
		return false
	}
	if current < 0 {
		return true
	}
	return candidate < current
}

// Advisory is the human-readable guidance attached to non-allow decisions.
type Advisory struct {
	SignalID     string   `json:"signal_id"`
	Explanation  string   `json:"explanation"`
	Alternatives []string `json:"alternatives"`
}

// Stage names, in pipeline order.
const (
	StagePromptGuard = "prompt_guard"
	StageOutputAudit = "output_audit"
	StageEnforcement = "policy_enforcement"
)

// PipelineResult aggregates every stage verdict for one request together
// with the final enforced decision. The orchestrator owns it until it is
// handed to the audit recorder.
type PipelineResult struct {
	RequestID   string            `json:"request_id"`
	AuditID     string            `json:"audit_id,omitempty"`
	SessionID   string            `json:"session_id"`
	PrincipalID string            `json:"principal_id"`
	Context     map[string]string `json:"context,omitempty"`
	Verdicts    []StageVerdict    `json:"verdicts"`
	Final       StageVerdict      `json:"final"`
	Advisory    *Advisory         `json:"advisory,omitempty"`
	Prompt      string            `json:"-"`
	Response    string            `json:"-"`
	State       string            `json:"state"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

// VerdictFor returns the verdict produced by the named stage.
func (r *PipelineResult) VerdictFor(stage string) (StageVerdict, bool) {
	for _, v := range r.Verdicts {
		if v.Stage == stage {
			return v, true
		}
	}
	return StageVerdict{}, false
}
