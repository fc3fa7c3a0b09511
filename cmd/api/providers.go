package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/keelwise/keel/internal/config"
	"github.com/keelwise/keel/internal/googleai"
	"github.com/keelwise/keel/internal/huggingface"
	"github.com/keelwise/keel/internal/observability"
	"github.com/keelwise/keel/internal/openai"
	"github.com/keelwise/keel/internal/resilience"
	"github.com/keelwise/keel/internal/service"
)

// breakerConfig maps the CIRCUIT_BREAKER_* settings onto resilience.BreakerConfig.
func breakerConfig(cfg *config.Config) resilience.BreakerConfig {
	cb := cfg.CircuitBreaker

	return resilience.BreakerConfig{
		Timeout:                  cb.Timeout,
		ErrorThresholdPercentage: cb.ErrorThresholdPercentage,
		ResetTimeout:             cb.ResetTimeout,
		VolumeThreshold:          cb.VolumeThreshold,
		RollingWindow:            cb.RollingWindow,
	}
}

// breakerObserver logs every transition and feeds the breaker state gauge.
func breakerObserver(pm observability.ProviderMetrics) resilience.StateChangeFunc {
	return func(name string, from, to resilience.State) {
		slog.Warn("circuit breaker state change", "provider", name, "from", from.String(), "to", to.String())

		if pm != nil {
			pm.RecordBreakerTransition(context.Background(), name, to.String())
		}
	}
}

// buildProviders creates a guarded adapter for every provider with a credential.
// Providers without one are left out; the orchestrator reports them unavailable.
func buildProviders(ctx context.Context, cfg *config.Config, pm observability.ProviderMetrics) ([]service.ProviderGuard, error) {
	var providers []service.Provider

	if cfg.Enabled(config.ProviderHuggingFace) {
		hf := cfg.HuggingFace
		providers = append(providers, huggingface.NewClient(huggingface.ClientOptions{
			BaseURL:        hf.BaseURL,
			APIKey:         hf.APIKey,
			IntentModel:    hf.IntentModel,
			SentimentModel: hf.SentimentModel,
			EntityModel:    hf.EntityModel,
			EmbeddingModel: hf.EmbeddingModel,
			RetryMax:       hf.RetryMax,
			Timeout:        cfg.CircuitBreaker.Timeout,
		}))
	}

	if cfg.Enabled(config.ProviderOpenAI) {
		opts := []openai.ClientOption{
			openai.WithModel(cfg.OpenAI.Model),
			openai.WithEmbeddingModel(cfg.OpenAI.EmbeddingModel),
		}
		if cfg.OpenAI.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
		}

		providers = append(providers, openai.NewClient(cfg.OpenAI.APIKey, opts...))
	}

	if cfg.Enabled(config.ProviderGoogle) {
		g, err := googleai.NewClient(ctx, cfg.Google.APIKey,
			googleai.WithModel(cfg.Google.Model),
			googleai.WithEmbeddingModel(cfg.Google.EmbeddingModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create google client: %w", err)
		}

		providers = append(providers, g)
	}

	bc := breakerConfig(cfg)
	guards := make([]service.ProviderGuard, 0, len(providers))

	for _, p := range providers {
		guard := service.ProviderGuard{
			Provider: p,
			Breaker:  resilience.NewBreaker(p.Name(), bc, resilience.WithStateChange(breakerObserver(pm))),
		}

		if rl, ok := cfg.RateLimits[p.Name()]; ok {
			guard.Limiter = resilience.NewRateLimiter(rl.Points, rl.Duration)
		}

		guards = append(guards, guard)

		slog.Info("provider enabled", "provider", p.Name())
	}

	if len(guards) == 0 {
		slog.Warn("no inference providers configured", "fallback_enabled", cfg.FallbackEnabled)
	}

	return guards, nil
}
