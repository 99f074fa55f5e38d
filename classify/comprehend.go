// api/classify/comprehend.go
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	"github.com/aws/aws-sdk-go-v2/service/comprehend/types"

	aegis_errors "github.com/aegis-governance/aegis/api/errors"
	"github.com/aegis-governance/aegis/api/model"
)

// Comprehend caps analyzed text at 5000 bytes per segment.
const maxSegmentBytes = 5000

// ComprehendClassifier backs the classification capability with AWS
// Comprehend: PII entity detection, sentiment, and toxic-content labels.
type ComprehendClassifier struct {
	client *comprehend.Client
}

func NewComprehendClassifier(ctx context.Context, region string) (*ComprehendClassifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return &ComprehendClassifier{client: comprehend.NewFromConfig(cfg)}, nil
}

func (c *ComprehendClassifier) Classify(ctx context.Context, text string) (*model.Classification, error) {
	if len(text) > maxSegmentBytes {
		text = text[:maxSegmentBytes]
	}

	pii, err := c.client.DetectPiiEntities(ctx, &comprehend.DetectPiiEntitiesInput{
		Text:         aws.String(text),
		LanguageCode: types.LanguageCodeEn,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: pii detection: %v", aegis_errors.ErrUpstreamUnavailable, err)
	}

	sentiment, err := c.client.DetectSentiment(ctx, &comprehend.DetectSentimentInput{
		Text:         aws.String(text),
		LanguageCode: types.LanguageCodeEn,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: sentiment detection: %v", aegis_errors.ErrUpstreamUnavailable, err)
	}

	toxic, err := c.client.DetectToxicContent(ctx, &comprehend.DetectToxicContentInput{
		LanguageCode: types.LanguageCodeEn,
		TextSegments: []types.TextSegment{{Text: aws.String(text)}},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: toxicity detection: %v", aegis_errors.ErrUpstreamUnavailable, err)
	}

	cls := &model.Classification{
		Sentiment: string(sentiment.Sentiment),
	}
	for _, e := range pii.Entities {
		cls.Entities = append(cls.Entities, model.Entity{
			Type:   string(e.Type),
			Score:  float64(aws.ToFloat32(e.Score)),
			Offset: int(aws.ToInt32(e.BeginOffset)),
		})
	}
	for _, labels := range toxic.ResultList {
		for _, l := range labels.Labels {
			cls.Categories = append(cls.Categories, model.ScoredCategory{
				Name:  strings.ToLower(string(l.Name)),
				Score: float64(aws.ToFloat32(l.Score)),
			})
		}
	}
	return cls, nil
}
