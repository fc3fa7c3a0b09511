package observability

import (
	"os"
	"strconv"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// newSampler builds a sampler from the standard OTEL_TRACES_SAMPLER / OTEL_TRACES_SAMPLER_ARG variables.
// Empty or unknown values fall back to parentbased_always_on, the SDK default.
func newSampler() sdktrace.Sampler {
	ratio := sdktrace.TraceIDRatioBased(samplerRatio(os.Getenv("OTEL_TRACES_SAMPLER_ARG")))

	switch os.Getenv("OTEL_TRACES_SAMPLER") {
	case "always_on":
		return sdktrace.AlwaysSample()
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return ratio
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(ratio)
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

// samplerRatio parses a ratio in [0,1], defaulting to 1.
func samplerRatio(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f > 1 {
		return 1
	}

	return f
}
