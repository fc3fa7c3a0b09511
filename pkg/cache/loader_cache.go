// Package cache provides a TTL loader cache over pluggable backends, using
// singleflight to coalesce concurrent loads for the same key.
package cache

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// Backend is a TTL key/value store. Implementations must never return an entry whose TTL has elapsed.
type Backend[V any] interface {
	Get(ctx context.Context, key string) (V, bool, error)
	Set(ctx context.Context, key string, value V) error
	Delete(ctx context.Context, key string) error
	Len() int
}

// LoaderCache loads values on miss via a callback and coalesces concurrent loads for the
// same key. Backend errors are logged and treated as misses; they never fail a Get.
type LoaderCache[V any] struct {
	backend Backend[V]
	group   singleflight.Group
	keep    func(V) bool
}

// Option configures a LoaderCache.
type Option[V any] func(*LoaderCache[V])

// WithStorePredicate stores loaded values only when keep returns true.
func WithStorePredicate[V any](keep func(V) bool) Option[V] {
	return func(c *LoaderCache[V]) {
		c.keep = keep
	}
}

// NewLoaderCache wraps backend.
func NewLoaderCache[V any](backend Backend[V], opts ...Option[V]) *LoaderCache[V] {
	c := &LoaderCache[V]{backend: backend}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get returns the value for key, loading it via load on cache miss.
func (c *LoaderCache[V]) Get(ctx context.Context, key string, load func(context.Context) (V, error)) (V, error) {
	v, _, err := c.GetWithStats(ctx, key, load)

	return v, err
}

// GetWithStats is like Get but also returns whether the value came from cache (hit) or was loaded (miss).
// Useful for metrics without pushing metrics into the cache package.
func (c *LoaderCache[V]) GetWithStats(ctx context.Context, key string, load func(context.Context) (V, error)) (V, bool, error) {
	v, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		slog.Warn("cache read failed, treating as miss", "key", key, "error", err)
	} else if ok {
		return v, true, nil
	}

	val, err, _ := c.group.Do(key, func() (any, error) {
		loaded, loadErr := load(ctx)
		if loadErr != nil {
			return zero[V](), loadErr
		}

		if c.keep == nil || c.keep(loaded) {
			if setErr := c.backend.Set(ctx, key, loaded); setErr != nil {
				slog.Warn("cache write failed", "key", key, "error", setErr)
			}
		}

		return loaded, nil
	})
	if err != nil {
		return zero[V](), false, err
	}

	return val.(V), false, nil
}

func zero[V any]() (z V) { return z }

// Invalidate removes the entry for key.
func (c *LoaderCache[V]) Invalidate(ctx context.Context, key string) {
	if err := c.backend.Delete(ctx, key); err != nil {
		slog.Warn("cache delete failed", "key", key, "error", err)
	}
}

// Len returns the number of entries in the backend, or -1 when the backend cannot tell.
func (c *LoaderCache[V]) Len() int {
	return c.backend.Len()
}
