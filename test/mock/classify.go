// test/mock/classify.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/aegis-governance/aegis/api/model"
)

// MockClassifier is a mock implementation of classify.Classifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, text string) (*model.Classification, error) {
	args := m.Called(ctx, text)
	if cls := args.Get(0); cls != nil {
		return cls.(*model.Classification), args.Error(1)
	}
	return nil, args.Error(1)
}
