package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Memory is an in-process backend bounded by entry count, with per-entry TTL.
type Memory[V any] struct {
	lru *expirable.LRU[string, V]
}

// NewMemory creates a memory backend holding at most maxEntries values for ttl each.
func NewMemory[V any](maxEntries int, ttl time.Duration) *Memory[V] {
	return &Memory[V]{lru: expirable.NewLRU[string, V](maxEntries, nil, ttl)}
}

// Get implements Backend. Expired entries are reported as misses.
func (m *Memory[V]) Get(_ context.Context, key string) (V, bool, error) {
	v, ok := m.lru.Get(key)

	return v, ok, nil
}

// Set implements Backend.
func (m *Memory[V]) Set(_ context.Context, key string, value V) error {
	m.lru.Add(key, value)

	return nil
}

// Delete implements Backend.
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)

	return nil
}

// Len implements Backend.
func (m *Memory[V]) Len() int {
	return m.lru.Len()
}
