package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CacheMetrics counts analysis cache lookups by cache name.
type CacheMetrics interface {
	RecordHit(ctx context.Context, cacheName string)
	RecordMiss(ctx context.Context, cacheName string)
	// RecordUncached counts loaded results that were not stored because they were partial.
	RecordUncached(ctx context.Context, cacheName string)
}

type cacheMetrics struct {
	hits     metric.Int64Counter
	misses   metric.Int64Counter
	uncached metric.Int64Counter
}

// NewCacheMetrics returns (nil, nil) when meter is nil.
func NewCacheMetrics(meter metric.Meter) (CacheMetrics, error) {
	if meter == nil {
		//nolint:nilnil // nil meter disables metrics
		return nil, nil
	}

	m := &cacheMetrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.hits, MetricNameCacheHits, "Analyses answered from the cache without calling any provider."},
		{&m.misses, MetricNameCacheMisses, "Analyses that missed the cache and fanned out to providers."},
		{&m.uncached, MetricNameCacheUncached, "Analyses with sub-call errors that were returned but not cached."},
	}

	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return nil, fmt.Errorf("create %s counter: %w", c.name, err)
		}

		*c.dst = counter
	}

	return m, nil
}

func cacheAttrs(name string) metric.AddOption {
	return metric.WithAttributes(attribute.String(AttrCache, NormalizeCacheName(name)))
}

func (c *cacheMetrics) RecordHit(ctx context.Context, cacheName string) {
	c.hits.Add(ctx, 1, cacheAttrs(cacheName))
}

func (c *cacheMetrics) RecordMiss(ctx context.Context, cacheName string) {
	c.misses.Add(ctx, 1, cacheAttrs(cacheName))
}

func (c *cacheMetrics) RecordUncached(ctx context.Context, cacheName string) {
	c.uncached.Add(ctx, 1, cacheAttrs(cacheName))
}
