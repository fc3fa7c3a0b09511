package observability

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// EnhancementMetrics records enhancement outcomes.
type EnhancementMetrics interface {
	// RecordEnhancement records one attempt; source is "ml", "template" or "none".
	RecordEnhancement(ctx context.Context, source string, enhanced bool)
}

type enhancementMetrics struct {
	total metric.Int64Counter
}

var allowedSources = map[string]bool{"ml": true, "template": true, "none": true}

// NewEnhancementMetrics creates EnhancementMetrics. Returns (nil, nil) when meter is nil (metrics disabled).
func NewEnhancementMetrics(meter metric.Meter) (EnhancementMetrics, error) {
	if meter == nil {
		//nolint:nilnil // intentional: callers use "if metrics != nil" when metrics disabled
		return nil, nil
	}

	total, err := meter.Int64Counter(
		MetricNameEnhancements,
		metric.WithDescription("Enhancement attempts by source (ml, template, none) and whether the response was rewritten"),
	)
	if err != nil {
		return nil, fmt.Errorf("create enhancements counter: %w", err)
	}

	return &enhancementMetrics{total: total}, nil
}

func (e *enhancementMetrics) RecordEnhancement(ctx context.Context, source string, enhanced bool) {
	e.total.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrSource, normalize(source, allowedSources, "other")),
		attribute.String(AttrEnhanced, strconv.FormatBool(enhanced)),
	))
}
