package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ProviderMetrics records outbound inference calls and breaker transitions.
type ProviderMetrics interface {
	RecordCall(ctx context.Context, provider, capability, outcome string, duration time.Duration)
	RecordBreakerTransition(ctx context.Context, provider, to string)
}

// providerMetrics implements ProviderMetrics.
type providerMetrics struct {
	calls       metric.Int64Counter
	duration    metric.Float64Histogram
	transitions metric.Int64Counter

	// last known breaker state per provider, exported through an observable gauge.
	mu     sync.Mutex
	states map[string]int64
}

// Breaker state gauge values.
var breakerStateValues = map[string]int64{
	"closed":    0,
	"half-open": 1,
	"open":      2,
}

// NewProviderMetrics creates ProviderMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewProviderMetrics(meter metric.Meter) (ProviderMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	calls, err := meter.Int64Counter(
		MetricNameProviderCalls,
		metric.WithDescription("Provider calls by provider, capability and outcome (success, error, rate_limited, circuit_open, timeout)"),
	)
	if err != nil {
		return nil, fmt.Errorf("create provider calls counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		MetricNameProviderCallDuration,
		metric.WithDescription("Provider call duration (seconds), including breaker timeout"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create provider call duration histogram: %w", err)
	}

	transitions, err := meter.Int64Counter(
		MetricNameBreakerTransitions,
		metric.WithDescription("Circuit breaker transitions by provider and target state"),
	)
	if err != nil {
		return nil, fmt.Errorf("create breaker transitions counter: %w", err)
	}

	m := &providerMetrics{
		calls:       calls,
		duration:    duration,
		transitions: transitions,
		states:      make(map[string]int64),
	}

	_, err = meter.Int64ObservableGauge(
		MetricNameBreakerState,
		metric.WithDescription("Circuit breaker state per provider (0=closed, 1=half-open, 2=open)"),
		metric.WithInt64Callback(m.observeStates),
	)
	if err != nil {
		return nil, fmt.Errorf("create breaker state gauge: %w", err)
	}

	return m, nil
}

func (m *providerMetrics) RecordCall(ctx context.Context, provider, capability, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(AttrProvider, NormalizeProvider(provider)),
		attribute.String(AttrCapability, NormalizeCapability(capability)),
		attribute.String(AttrOutcome, NormalizeOutcome(outcome)),
	)
	m.calls.Add(ctx, 1, attrs)
	m.duration.Record(ctx, duration.Seconds(), attrs)
}

func (m *providerMetrics) RecordBreakerTransition(ctx context.Context, provider, to string) {
	provider = NormalizeProvider(provider)

	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrProvider, provider),
		attribute.String(AttrState, to),
	))

	if v, ok := breakerStateValues[to]; ok {
		m.mu.Lock()
		m.states[provider] = v
		m.mu.Unlock()
	}
}

func (m *providerMetrics) observeStates(_ context.Context, o metric.Int64Observer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for provider, v := range m.states {
		o.Observe(v, metric.WithAttributes(attribute.String(AttrProvider, provider)))
	}

	return nil
}
