// Package observability provides OpenTelemetry metrics, tracing and log enrichment for keel.
package observability

// Metric names (Prometheus / OpenTelemetry).
const (
	MetricNameProviderCalls        = "keel_provider_calls_total"
	MetricNameProviderCallDuration = "keel_provider_call_duration_seconds"
	MetricNameBreakerTransitions   = "keel_breaker_transitions_total"
	MetricNameBreakerState         = "keel_breaker_state"
	MetricNameCacheHits            = "keel_cache_hits_total"
	MetricNameCacheMisses          = "keel_cache_misses_total"
	MetricNameCacheUncached        = "keel_cache_uncached_results_total"
	MetricNameUsageEvents          = "keel_usage_events_total"
	MetricNameUsageDuration        = "keel_usage_duration_seconds"
	MetricNameEnhancements         = "keel_enhancements_total"
	MetricNameHTTPRequests         = "keel_http_requests_total"
	MetricNameHTTPRequestDuration  = "keel_http_request_duration_seconds"
	MetricNameRequestBodyTooLarge  = "keel_request_body_too_large_total"
	MetricNameRequestsThrottled    = "keel_requests_throttled_total"
)

// Attribute keys.
const (
	AttrProvider   = "provider"
	AttrCapability = "capability"
	AttrOutcome    = "outcome"
	AttrService    = "service"
	AttrState      = "state"
	AttrSuccess    = "success"
	AttrSource     = "source"
	AttrEnhanced   = "enhanced"
	AttrMethod     = "method"
	AttrRoute      = "route"
	AttrStatus     = "status_class"
	AttrCache      = "cache"
)

// Provider call outcomes.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
	OutcomeCircuitOpen = "circuit_open"
	OutcomeTimeout     = "timeout"
)

var allowedProviders = map[string]bool{
	"huggingface": true,
	"openai":      true,
	"google":      true,
	"fallback":    true,
	"cache":       true,
	"template":    true,
}

var allowedCapabilities = map[string]bool{
	"intent":     true,
	"sentiment":  true,
	"entities":   true,
	"embeddings": true,
	"generation": true,
}

var allowedOutcomes = map[string]bool{
	OutcomeSuccess:     true,
	OutcomeError:       true,
	OutcomeRateLimited: true,
	OutcomeCircuitOpen: true,
	OutcomeTimeout:     true,
}

var allowedServices = map[string]bool{
	"analysis":    true,
	"enhancement": true,
}

var allowedCaches = map[string]bool{
	"analysis": true,
}

// normalize returns value if allowed, otherwise fallback (bounded cardinality).
func normalize(value string, allowed map[string]bool, fallback string) string {
	if allowed[value] {
		return value
	}

	return fallback
}

// NormalizeProvider returns provider if known, otherwise "other".
func NormalizeProvider(provider string) string {
	return normalize(provider, allowedProviders, "other")
}

// NormalizeCapability returns capability if known, otherwise "other".
func NormalizeCapability(capability string) string {
	return normalize(capability, allowedCapabilities, "other")
}

// NormalizeOutcome returns outcome if known, otherwise "other".
func NormalizeOutcome(outcome string) string {
	return normalize(outcome, allowedOutcomes, "other")
}

// NormalizeCacheName returns name if known, otherwise "other".
func NormalizeCacheName(name string) string {
	return normalize(name, allowedCaches, "other")
}
