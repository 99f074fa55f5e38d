// api/errors/pipeline_errors.go
package errors

import "errors"

var (
	ErrValidation          = errors.New("malformed governance request")
	ErrUpstreamUnavailable = errors.New("upstream capability unavailable")
	ErrStageTimeout        = errors.New("pipeline stage timed out")
	ErrAuditWrite          = errors.New("audit write failed")
	ErrAuditNotFound       = errors.New("audit record not found")
	ErrPolicyLoad          = errors.New("policy rule set failed validation")
	ErrRuleSetNotFound     = errors.New("rule set version not found")
	ErrInternalServer      = errors.New("internal server error")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrRateLimited         = errors.New("generation capability rate limited")
	ErrModelUnavailable    = errors.New("generation model unavailable")
)
