// test/mock/audit.go
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/aegis-governance/aegis/api/audit"
	"github.com/aegis-governance/aegis/api/model"
)

// MockAuditRepository is a mock implementation of audit.Repository
type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Put(ctx context.Context, rec audit.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockAuditRepository) GetByID(ctx context.Context, auditID string) (*audit.Record, error) {
	args := m.Called(ctx, auditID)
	if rec := args.Get(0); rec != nil {
		return rec.(*audit.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) Query(ctx context.Context, from, to time.Time, sessionID, userID string) ([]audit.Record, error) {
	args := m.Called(ctx, from, to, sessionID, userID)
	if recs := args.Get(0); recs != nil {
		return recs.([]audit.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) Aggregate(ctx context.Context, from, to time.Time) (*audit.AnalyticsSummary, error) {
	args := m.Called(ctx, from, to)
	if summary := args.Get(0); summary != nil {
		return summary.(*audit.AnalyticsSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditRepository) PutFeedback(ctx context.Context, fb audit.Feedback) error {
	args := m.Called(ctx, fb)
	return args.Error(0)
}

// MockFallbackQueue is a mock implementation of audit.FallbackQueue
type MockFallbackQueue struct {
	mock.Mock
}

func (m *MockFallbackQueue) Enqueue(ctx context.Context, payload []byte) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

func (m *MockFallbackQueue) Dequeue(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if payload := args.Get(0); payload != nil {
		return payload.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFallbackQueue) Depth(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockAuditService is a mock implementation of audit.Service
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) Record(ctx context.Context, result *model.PipelineResult) string {
	args := m.Called(ctx, result)
	return args.String(0)
}

func (m *MockAuditService) GetRecord(ctx context.Context, auditID string) (*audit.Record, error) {
	args := m.Called(ctx, auditID)
	if rec := args.Get(0); rec != nil {
		return rec.(*audit.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditService) Query(ctx context.Context, from, to time.Time, sessionID, userID string) ([]audit.Record, error) {
	args := m.Called(ctx, from, to, sessionID, userID)
	if recs := args.Get(0); recs != nil {
		return recs.([]audit.Record), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditService) Analytics(ctx context.Context, from, to time.Time) (*audit.AnalyticsSummary, error) {
	args := m.Called(ctx, from, to)
	if summary := args.Get(0); summary != nil {
		return summary.(*audit.AnalyticsSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuditService) ReplayFallback(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
