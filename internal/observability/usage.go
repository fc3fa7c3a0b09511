package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/keelwise/keel/internal/models"
)

// UsageTracker records usage events as metrics and debug logs. Unlike the other
// collectors it is always non-nil: without a meter it only logs.
type UsageTracker struct {
	events   metric.Int64Counter
	duration metric.Float64Histogram
}

// NewUsageTracker creates a UsageTracker. meter may be nil.
func NewUsageTracker(meter metric.Meter) (*UsageTracker, error) {
	t := &UsageTracker{}

	if meter == nil {
		return t, nil
	}

	var err error

	t.events, err = meter.Int64Counter(
		MetricNameUsageEvents,
		metric.WithDescription("Analysis and generation calls by service, provider and success"),
	)
	if err != nil {
		return nil, fmt.Errorf("create usage events counter: %w", err)
	}

	t.duration, err = meter.Float64Histogram(
		MetricNameUsageDuration,
		metric.WithDescription("End-to-end analysis or generation duration (seconds)"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create usage duration histogram: %w", err)
	}

	return t, nil
}

// Track records one usage event.
func (t *UsageTracker) Track(ctx context.Context, ev models.UsageEvent) {
	slog.DebugContext(ctx, "usage",
		"service", ev.Service,
		"provider", ev.Provider,
		"model", ev.Model,
		"duration_ms", ev.Duration.Milliseconds(),
		"success", ev.Success,
	)

	if t.events == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(AttrService, normalize(ev.Service, allowedServices, "other")),
		attribute.String(AttrProvider, NormalizeProvider(ev.Provider)),
		attribute.String(AttrSuccess, strconv.FormatBool(ev.Success)),
	)
	t.events.Add(ctx, 1, attrs)
	t.duration.Record(ctx, ev.Duration.Seconds(), attrs)
}
