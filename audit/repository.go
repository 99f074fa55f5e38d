// api/audit/repository.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	aegis_errors "github.com/aegis-governance/aegis/api/errors"
)

type Repository interface {
	Put(ctx context.Context, rec Record) error
	GetByID(ctx context.Context, auditID string) (*Record, error)
	Query(ctx context.Context, from, to time.Time, sessionID, userID string) ([]Record, error)
	Aggregate(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error)
	PutFeedback(ctx context.Context, fb Feedback) error
}

type ElasticsearchRepository struct {
	esClient      *elasticsearch.Client
	index         string
	feedbackIndex string
}

// NewElasticsearchRepository creates a new repository with a given Elasticsearch client URL.
func NewElasticsearchRepository(esURL, index, feedbackIndex string) (*ElasticsearchRepository, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}
	esClient, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &ElasticsearchRepository{esClient: esClient, index: index, feedbackIndex: feedbackIndex}, nil
}

// Put indexes one audit record. The document ID is the audit ID, so a retry
// of a partially failed write overwrites the same document instead of
// producing a duplicate.
func (r *ElasticsearchRepository) Put(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      r.index,
		DocumentID: rec.AuditID,
		Body:       strings.NewReader(string(data)),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing audit record: %s", res.String())
	}

	return nil
}

// GetByID fetches a single audit record by its audit ID.
func (r *ElasticsearchRepository) GetByID(ctx context.Context, auditID string) (*Record, error) {
	req := esapi.GetRequest{
		Index:      r.index,
		DocumentID: auditID,
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, aegis_errors.ErrAuditNotFound
	}
	if res.IsError() {
		return nil, fmt.Errorf("error fetching audit record: %s", res.String())
	}

	var doc struct {
		Source Record `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc.Source, nil
}

// Query searches audit records within a time frame, optionally filtered by
// session ID and user ID.
func (r *ElasticsearchRepository) Query(ctx context.Context, from, to time.Time, sessionID, userID string) ([]Record, error) {
	must := []interface{}{
		map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{
					"gte": from.Format(time.RFC3339),
					"lte": to.Format(time.RFC3339),
				},
			},
		},
	}
	if sessionID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{
				"session_id": sessionID,
			},
		})
	}
	if userID != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{
				"user_id": userID,
			},
		})
	}

	query := map[string]interface{}{
		"size": 100,
		"sort": []interface{}{
			map[string]interface{}{"timestamp": map[string]interface{}{"order": "desc"}},
		},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": must,
			},
		},
	}

	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(r.index),
		r.esClient.Search.WithBody(strings.NewReader(buf.String())),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error searching audit records: %s", res.String())
	}

	var rmap map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&rmap); err != nil {
		return nil, err
	}

	hits := rmap["hits"].(map[string]interface{})["hits"].([]interface{})
	records := make([]Record, len(hits))
	for i, hit := range hits {
		source := hit.(map[string]interface{})["_source"]
		data, _ := json.Marshal(source)
		json.Unmarshal(data, &records[i])
	}

	return records, nil
}

// Aggregate computes the analytics summary over a time window using a
// terms aggregation on outcome and signal IDs.
func (r *ElasticsearchRepository) Aggregate(ctx context.Context, from, to time.Time) (*AnalyticsSummary, error) {
	query := map[string]interface{}{
		"size": 0,
		"query": map[string]interface{}{
			"range": map[string]interface{}{
				"timestamp": map[string]interface{}{
					"gte": from.Format(time.RFC3339),
					"lte": to.Format(time.RFC3339),
				},
			},
		},
		"aggs": map[string]interface{}{
			"by_outcome": map[string]interface{}{
				"terms": map[string]interface{}{"field": "final_outcome.keyword"},
			},
			"by_signal": map[string]interface{}{
				"terms": map[string]interface{}{"field": "signal_ids.keyword", "size": 10},
			},
			"anomalous": map[string]interface{}{
				"filter": map[string]interface{}{
					"exists": map[string]interface{}{"field": "anomalies"},
				},
			},
		},
	}

	var buf strings.Builder
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := r.esClient.Search(
		r.esClient.Search.WithContext(ctx),
		r.esClient.Search.WithIndex(r.index),
		r.esClient.Search.WithBody(strings.NewReader(buf.String())),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error aggregating audit records: %s", res.String())
	}

	var rmap struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			ByOutcome struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"by_outcome"`
			BySignal struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
				} `json:"buckets"`
			} `json:"by_signal"`
			Anomalous struct {
				DocCount int64 `json:"doc_count"`
			} `json:"anomalous"`
		} `json:"aggregations"`
	}
	if err := json.NewDecoder(res.Body).Decode(&rmap); err != nil {
		return nil, err
	}

	summary := &AnalyticsSummary{
		TotalRuns:   rmap.Hits.Total.Value,
		Decisions:   make(map[string]int64),
		Anomalies:   rmap.Aggregations.Anomalous.DocCount,
		GeneratedAt: time.Now().UTC(),
	}
	for _, b := range rmap.Aggregations.ByOutcome.Buckets {
		summary.Decisions[b.Key] = b.DocCount
	}
	for _, b := range rmap.Aggregations.BySignal.Buckets {
		summary.TopSignals = append(summary.TopSignals, SignalCount{SignalID: b.Key, Count: b.DocCount})
	}
	return summary, nil
}

// PutFeedback indexes one feedback entry alongside the audit trail.
func (r *ElasticsearchRepository) PutFeedback(ctx context.Context, fb Feedback) error {
	data, err := json.Marshal(fb)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      r.feedbackIndex,
		DocumentID: fb.FeedbackID,
		Body:       strings.NewReader(string(data)),
		Refresh:    "true",
	}

	res, err := req.Do(ctx, r.esClient)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing feedback: %s", res.String())
	}

	return nil
}
