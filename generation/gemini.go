// api/generation/gemini.go
package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gemini "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	aegis_errors "github.com/aegis-governance/aegis/api/errors"
)

// GeminiGenerator fulfils the generation capability against the Gemini API.
type GeminiGenerator struct {
	client       *gemini.Client
	defaultModel string
}

func NewGeminiGenerator(ctx context.Context, apiKey, defaultModel string) (*GeminiGenerator, error) {
	client, err := gemini.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}
	return &GeminiGenerator{client: client, defaultModel: defaultModel}, nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}

// Generate runs one completion call. API failures are mapped onto the
// pipeline error taxonomy so the orchestrator can fail closed uniformly.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt, modelID string, _ map[string]string) (string, error) {
	if modelID == "" {
		modelID = g.defaultModel
	}

	model := g.client.GenerativeModel(modelID)
	resp, err := model.GenerateContent(ctx, gemini.Text(prompt))
	if err != nil {
		return "", mapGenerationError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty candidate list", aegis_errors.ErrModelUnavailable)
	}

	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(gemini.Text); ok {
			out += string(text)
		}
	}
	return out, nil
}

func mapGenerationError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", aegis_errors.ErrStageTimeout, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", aegis_errors.ErrRateLimited, err)
		case http.StatusServiceUnavailable, http.StatusInternalServerError:
			return fmt.Errorf("%w: %v", aegis_errors.ErrModelUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", aegis_errors.ErrUpstreamUnavailable, err)
}
