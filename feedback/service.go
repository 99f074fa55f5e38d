// api/feedback/service.go
package feedback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aegis-governance/aegis/api/audit"
	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	logger "github.com/aegis-governance/aegis/api/logging"
	"github.com/aegis-governance/aegis/api/util"
)

// Service collects end-user quality ratings against completed runs.
// Feedback only attaches to an audit record that actually exists; the
// submitter identity is anonymized before storage.
type Service interface {
	Submit(ctx context.Context, auditID string, rating int, comment, userID string) (*audit.Feedback, error)
}

type service struct {
	repo     audit.Repository
	eventBus *util.EventBus
}

func NewService(repo audit.Repository, eventBus *util.EventBus) Service {
	return &service{repo: repo, eventBus: eventBus}
}

func (s *service) Submit(ctx context.Context, auditID string, rating int, comment, userID string) (*audit.Feedback, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", aegis_errors.ErrValidation)
	}

	// Reject feedback against runs that were never recorded.
	if _, err := s.repo.GetByID(ctx, auditID); err != nil {
		return nil, err
	}

	fb := audit.Feedback{
		FeedbackID:  uuid.New().String(),
		AuditID:     auditID,
		Rating:      rating,
		Comment:     comment,
		UserHash:    anonymize(userID),
		SubmittedAt: time.Now().UTC(),
	}
	if err := s.repo.PutFeedback(ctx, fb); err != nil {
		logger.Error("Failed to store feedback",
			zap.String("auditID", auditID),
			zap.Error(err))
		return nil, err
	}

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, util.EventFeedbackReceived, fb)
	}
	return &fb, nil
}

func anonymize(userID string) string {
	if userID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}
