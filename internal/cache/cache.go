// Package cache defines the byte-level stores backing the result cache.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store is one cache tier. A missing key is ok=false with a nil error.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// Memory is an in-process LRU with a single TTL for every entry; the ttl
// passed to Set is ignored.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

var _ Store = (*Memory)(nil)

func NewMemory(size int, ttl time.Duration) *Memory {
	if size <= 0 {
		size = 1024
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.lru.Add(key, val)
	return nil
}

func (m *Memory) Len() int { return m.lru.Len() }
