// Package cache stores raw remote payloads between catalog loads.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a byte cache with per-entry TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// WorkflowKey namespaces the cached workflow payload.
func WorkflowKey(workflowID string) string {
	return "hireflow:workflow:" + workflowID
}

// StagesKey namespaces the cached stage list payload.
func StagesKey(workflowID string) string {
	return "hireflow:stages:" + workflowID
}
