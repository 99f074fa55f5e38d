// api/model/classification.go
package model

// Classification is the output of the external content-classification
// capability. It is an optional signal source for the risk scorer; a nil
// classification degrades scoring to denylist/heuristic-only mode.
type Classification struct {
	Entities   []Entity         `json:"entities"`
	Sentiment  string           `json:"sentiment"`
	Categories []ScoredCategory `json:"categories"`
}

// Entity is a detected named entity (PII types among them).
type Entity struct {
	Type   string  `json:"type"`
	Score  float64 `json:"score"`
	Offset int     `json:"offset"`
}

// ScoredCategory is a moderation category with a confidence score.
type ScoredCategory struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}
