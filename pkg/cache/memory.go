package cache

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemorySize bounds the number of entries kept by Memory.
const DefaultMemorySize = 1024

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process Store backed by a size-bounded LRU. The LRU
// expires entries after maxTTL; a shorter ttl given to Set is checked on read.
type Memory struct {
	lru *expirable.LRU[string, entry]
	now func() time.Time
}

type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	size   int
	maxTTL time.Duration
}

// WithSize caps the number of entries; the least recently used are evicted first.
func WithSize(size int) MemoryOption {
	return func(c *memoryConfig) {
		c.size = size
	}
}

// WithMaxTTL expires every entry after ttl regardless of the ttl given to Set.
func WithMaxTTL(ttl time.Duration) MemoryOption {
	return func(c *memoryConfig) {
		c.maxTTL = ttl
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	cfg := memoryConfig{size: DefaultMemorySize}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.size <= 0 {
		cfg.size = DefaultMemorySize
	}

	return &Memory{
		lru: expirable.NewLRU[string, entry](cfg.size, nil, cfg.maxTTL),
		now: time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}

	// Expired entries stay until the LRU drops them; removing here could
	// race with a Set of the same key.
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		return nil, ErrMiss
	}

	return slices.Clone(e.value), nil
}

// Set stores value. A ttl of zero keeps the entry until it is deleted,
// evicted or reaches the max TTL.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: slices.Clone(value)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}

	m.lru.Add(key, e)

	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.lru.Remove(key)
	}

	return nil
}

// Len reports the number of entries held, expired or not.
func (m *Memory) Len() int {
	return m.lru.Len()
}

func (m *Memory) Close() error {
	m.lru.Purge()

	return nil
}
