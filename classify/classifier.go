// api/classify/classifier.go
package classify

import (
	"context"

	"github.com/aegis-governance/aegis/api/model"
)

// Classifier is the black-box content-classification capability: named
// entities, sentiment, and moderation categories for a text. It is an
// optional signal source: when the capability is down or unconfigured the
// risk scorer degrades to denylist/heuristic-only mode and the pipeline
// records an UPSTREAM_DOWN signal instead of failing.
type Classifier interface {
	Classify(ctx context.Context, text string) (*model.Classification, error)
}
