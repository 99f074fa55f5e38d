// api/generation/generator.go
package generation

import "context"

// Generator is the black-box text-completion capability consumed exactly
// once per request, between prompt guard and output audit. Implementations
// must honor context cancellation; the pipeline never retries generation.
type Generator interface {
	Generate(ctx context.Context, prompt, modelID string, context map[string]string) (string, error)
}
