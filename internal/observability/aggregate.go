package observability

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all keel metric collectors. When metrics are disabled, all fields are nil.
// Components that accept an interface (CacheMetrics, ProviderMetrics, EnhancementMetrics, APIMetrics)
// can receive the corresponding field; they already handle nil.
type Metrics struct {
	Cache        CacheMetrics
	Providers    ProviderMetrics
	Enhancements EnhancementMetrics
	API          APIMetrics
}

// NewMetrics creates every collector from the given meter.
// Returns (nil, nil) when meter is nil (metrics disabled).
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	cache, err := NewCacheMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("cache metrics: %w", err)
	}

	providers, err := NewProviderMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("provider metrics: %w", err)
	}

	enhancements, err := NewEnhancementMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("enhancement metrics: %w", err)
	}

	api, err := NewAPIMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("api metrics: %w", err)
	}

	return &Metrics{
		Cache:        cache,
		Providers:    providers,
		Enhancements: enhancements,
		API:          api,
	}, nil
}
