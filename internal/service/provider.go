package service

import (
	"context"

	"github.com/keelwise/keel/internal/config"
	"github.com/keelwise/keel/internal/models"
	"github.com/keelwise/keel/internal/resilience"
)

// Provider is an inference backend. Calls for a capability the backend does not serve
// return keelerrors.ErrProviderUnavailable; Supports lets callers skip those without
// touching the limiter or breaker.
type Provider interface {
	Name() string
	Supports(capability string) bool
	ClassifyIntent(ctx context.Context, text string, labels []string) (*models.IntentResult, error)
	AnalyzeSentiment(ctx context.Context, text string) (*models.SentimentResult, error)
	ExtractEntities(ctx context.Context, text string) (*models.EntityResult, error)
	Embed(ctx context.Context, text string) (*models.EmbeddingResult, error)
	Generate(ctx context.Context, prompt models.Prompt) (*models.GenerationResult, error)
}

// ProviderGuard pairs a provider with its limiter and breaker. A nil Limiter means no
// rate limit; a nil Breaker is replaced with one using resilience.DefaultBreakerConfig.
type ProviderGuard struct {
	Provider Provider
	Limiter  *resilience.RateLimiter
	Breaker  *resilience.Breaker
}

// ProviderStatus is the health view of one guarded provider.
type ProviderStatus struct {
	Name         string              `json:"name"`
	Capabilities []string            `json:"capabilities"`
	Breaker      resilience.Snapshot `json:"breaker"`
	Remaining    int                 `json:"rate_limit_remaining"`
	Budget       int                 `json:"rate_limit_budget"`
}

// IntentLabels are the candidate labels sent to zero-shot intent classifiers.
// Pattern names come first so that a confident match lines up with the taxonomy.
var IntentLabels = []string{
	models.PatternProcrastination,
	models.PatternPerfectionism,
	models.PatternOverwhelm,
	models.PatternAcuteFrustration,
	models.PatternDecisionParalysis,
	models.PatternBurnout,
	IntentScheduling,
	IntentMaintenanceRequest,
	IntentGeneralInquiry,
}

// Non-pattern intents.
const (
	IntentScheduling         = "scheduling"
	IntentMaintenanceRequest = "maintenance_request"
	IntentGeneralInquiry     = "general_inquiry"
)

var allCapabilities = []string{
	config.CapabilityIntent,
	config.CapabilitySentiment,
	config.CapabilityEntities,
	config.CapabilityEmbeddings,
	config.CapabilityGeneration,
}
