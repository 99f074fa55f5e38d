// api/model/request.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// GovernanceRequest is one inbound generation request entering the pipeline.
// It is created once per call and never mutated; the request ID is generated
// here and propagated through every stage and into the audit record.
type GovernanceRequest struct {
	RequestID   string            `json:"request_id"`
	SessionID   string            `json:"session_id"`
	PrincipalID string            `json:"principal_id"`
	Role        string            `json:"role"`
	Prompt      string            `json:"prompt"`
	ModelID     string            `json:"model_id,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
	ReceivedAt  time.Time         `json:"received_at"`
}

// NewGovernanceRequest stamps a request with its identifiers. An empty
// session ID gets a fresh one so audit records always group by session.
func NewGovernanceRequest(prompt, principalID, role, modelID string, context map[string]string, sessionID string) GovernanceRequest {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	return GovernanceRequest{
		RequestID:   uuid.New().String(),
		SessionID:   sessionID,
		PrincipalID: principalID,
		Role:        role,
		Prompt:      prompt,
		ModelID:     modelID,
		Context:     context,
		ReceivedAt:  time.Now().UTC(),
	}
}

// Domain returns the declared context domain tag, or "" when absent.
func (r GovernanceRequest) Domain() string {
	return r.Context["domain"]
}
