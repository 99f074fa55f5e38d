// api/audit/fallback.go
package audit

import (
	"context"

	"github.com/aegis-governance/aegis/api/db"
)

// FallbackQueue buffers audit records that could not be written after the
// retry budget was spent. Queued records are replayed into the store once
// it recovers.
type FallbackQueue interface {
	Enqueue(ctx context.Context, payload []byte) error
	Dequeue(ctx context.Context) ([]byte, error)
	Depth(ctx context.Context) (int64, error)
}

// RedisFallbackQueue keeps the buffered records in a Redis list so they
// survive a process restart.
type RedisFallbackQueue struct {
	key string
}

func NewRedisFallbackQueue(key string) *RedisFallbackQueue {
	return &RedisFallbackQueue{key: key}
}

func (q *RedisFallbackQueue) Enqueue(ctx context.Context, payload []byte) error {
	return db.EnqueueFallback(ctx, q.key, payload)
}

func (q *RedisFallbackQueue) Dequeue(ctx context.Context) ([]byte, error) {
	return db.DequeueFallback(ctx, q.key)
}

func (q *RedisFallbackQueue) Depth(ctx context.Context) (int64, error) {
	return db.FallbackDepth(ctx, q.key)
}
