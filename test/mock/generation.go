// test/mock/generation.go
package mock

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockGenerator is a mock implementation of generation.Generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt, modelID string, reqContext map[string]string) (string, error) {
	args := m.Called(ctx, prompt, modelID, reqContext)
	return args.String(0), args.Error(1)
}
