package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/keelwise/keel/internal/config"
	"github.com/keelwise/keel/internal/keelerrors"
	"github.com/keelwise/keel/internal/models"
	"github.com/keelwise/keel/internal/observability"
	"github.com/keelwise/keel/internal/resilience"
	"github.com/keelwise/keel/pkg/cache"
)

const analysisCacheName = "analysis"

// Usage event services.
const (
	UsageServiceAnalysis    = "analysis"
	UsageServiceEnhancement = "enhancement"
)

// Generation skip/failure reasons.
const (
	ReasonAnalysisConfidenceLow = "Analysis confidence too low for generation"
	ReasonGenerationFailed      = "No generative provider produced an enhancement"
)

// ErrUnchangedGeneration is returned for a generation that is empty or identical to the original.
var ErrUnchangedGeneration = errors.New("generation empty or unchanged")

// ChainError reports that every provider in a capability's order failed or was skipped.
type ChainError struct {
	Capability string
	Attempts   []ProviderAttempt
}

// ProviderAttempt is one failed provider call.
type ProviderAttempt struct {
	Provider string
	Err      error
}

func (e *ChainError) Error() string {
	if len(e.Attempts) == 0 {
		return "no provider supports " + e.Capability
	}

	parts := make([]string, 0, len(e.Attempts))

	for _, a := range e.Attempts {
		msg := a.Err.Error()
		if !strings.HasPrefix(msg, a.Provider+":") {
			msg = a.Provider + ": " + msg
		}

		parts = append(parts, msg)
	}

	return strings.Join(parts, "; ")
}

// Unwrap exposes the individual provider errors to errors.Is.
func (e *ChainError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}

	return errs
}

// MLServiceParams configures MLService. Cache, metrics and Usage may be nil.
type MLServiceParams struct {
	Providers               []ProviderGuard
	ProviderOrder           map[string][]string
	FallbackEnabled         bool
	MinGenerationConfidence float64
	// BreakerConfig is used for guards that come without a breaker.
	BreakerConfig   resilience.BreakerConfig
	Cache           *cache.LoaderCache[*models.AnalysisResult]
	CacheMetrics    observability.CacheMetrics
	ProviderMetrics observability.ProviderMetrics
	Usage           UsageTracker
	Logger          *slog.Logger
}

// MLService fans messages out to inference providers behind per-provider rate limiters
// and circuit breakers, with rule-based fallbacks when every provider fails.
type MLService struct {
	providers       map[string]ProviderGuard
	order           map[string][]string
	fallback        bool
	minGeneration   float64
	cache           *cache.LoaderCache[*models.AnalysisResult]
	cacheMetrics    observability.CacheMetrics
	providerMetrics observability.ProviderMetrics
	usage           UsageTracker
	logger          *slog.Logger
}

// NewMLService builds the provider registry. Guards without a provider are ignored.
func NewMLService(p MLServiceParams) *MLService {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	usage := p.Usage
	if usage == nil {
		usage = noopUsageTracker{}
	}

	breakerCfg := p.BreakerConfig
	if breakerCfg.Timeout <= 0 {
		breakerCfg = resilience.DefaultBreakerConfig()
	}

	providers := make(map[string]ProviderGuard, len(p.Providers))

	for _, g := range p.Providers {
		if g.Provider == nil {
			continue
		}

		if g.Breaker == nil {
			g.Breaker = resilience.NewBreaker(g.Provider.Name(), breakerCfg)
		}

		providers[g.Provider.Name()] = g
	}

	order := p.ProviderOrder
	if order == nil {
		order = config.DefaultProviderOrder()
	}

	return &MLService{
		providers:       providers,
		order:           order,
		fallback:        p.FallbackEnabled,
		minGeneration:   p.MinGenerationConfidence,
		cache:           p.Cache,
		cacheMetrics:    p.CacheMetrics,
		providerMetrics: p.ProviderMetrics,
		usage:           usage,
		logger:          logger,
	}
}

// AnalyzeMessage runs intent, sentiment, entity and embedding analysis concurrently.
// Sub-analysis failures leave the field nil and are listed in Errors. The only error
// returned is keelerrors.ErrNoProviders, when nothing is configured and fallback is off.
func (s *MLService) AnalyzeMessage(ctx context.Context, message string, rc models.RequestContext) (*models.AnalysisResult, error) {
	if len(s.providers) == 0 && !s.fallback {
		return nil, keelerrors.NewNoProvidersError("")
	}

	start := time.Now()

	var (
		res *models.AnalysisResult
		hit bool
	)

	if s.cache != nil {
		key := AnalysisCacheKey(message, rc)

		var err error

		res, hit, err = s.cache.GetWithStats(ctx, key, func(ctx context.Context) (*models.AnalysisResult, error) {
			return s.analyze(ctx, message), nil
		})
		if err != nil {
			s.logger.Warn("analysis cache load failed", "error", err)

			res, hit = s.analyze(ctx, message), false
		}

		if s.cacheMetrics != nil {
			if hit {
				s.cacheMetrics.RecordHit(ctx, analysisCacheName)
			} else {
				s.cacheMetrics.RecordMiss(ctx, analysisCacheName)

				if len(res.Errors) > 0 {
					s.cacheMetrics.RecordUncached(ctx, analysisCacheName)
				}
			}
		}
	} else {
		res = s.analyze(ctx, message)
	}

	ev := models.UsageEvent{
		Service:  UsageServiceAnalysis,
		Duration: time.Since(start),
		Success:  len(res.Errors) == 0,
	}

	switch {
	case hit:
		ev.Provider = "cache"
	case res.Intent != nil:
		ev.Provider, ev.Model = res.Intent.Provider, res.Intent.Model
	default:
		ev.Provider = "none"
	}

	s.usage.Track(ctx, ev)

	return res, nil
}

// analyze performs the four sub-analyses and merges them into fixed fields.
func (s *MLService) analyze(ctx context.Context, message string) *models.AnalysisResult {
	start := time.Now()

	res := &models.AnalysisResult{
		ID:        uuid.Must(uuid.NewV7()),
		Message:   message,
		Timestamp: start.UTC(),
	}

	var (
		g                                    errgroup.Group
		intentErr, sentErr, entErr, embedErr error
	)

	g.Go(func() error {
		res.Intent, intentErr = s.ClassifyIntent(ctx, message)

		return nil
	})
	g.Go(func() error {
		res.Sentiment, sentErr = s.AnalyzeSentiment(ctx, message)

		return nil
	})
	g.Go(func() error {
		res.Entities, entErr = s.ExtractEntities(ctx, message)

		return nil
	})
	g.Go(func() error {
		res.Embeddings, embedErr = s.GenerateEmbeddings(ctx, message)

		return nil
	})

	_ = g.Wait()

	for _, sub := range []struct {
		kind   string
		err    error
		absent bool
	}{
		{config.CapabilityIntent, intentErr, res.Intent == nil},
		{config.CapabilitySentiment, sentErr, res.Sentiment == nil},
		{config.CapabilityEntities, entErr, res.Entities == nil},
		{config.CapabilityEmbeddings, embedErr, res.Embeddings == nil},
	} {
		switch {
		case sub.err != nil:
			res.Errors = append(res.Errors, sub.kind+": "+sub.err.Error())
		case sub.absent:
			res.Errors = append(res.Errors, sub.kind+": empty result")
		}
	}

	res.ProcessingTime = time.Since(start).Milliseconds()

	return res
}

// ClassifyIntent classifies text against IntentLabels.
func (s *MLService) ClassifyIntent(ctx context.Context, text string) (*models.IntentResult, error) {
	res, err := attempt(ctx, s, config.CapabilityIntent, func(ctx context.Context, p Provider) (*models.IntentResult, error) {
		return p.ClassifyIntent(ctx, text, IntentLabels)
	})
	if err == nil {
		return res, nil
	}

	if s.fallback {
		s.logger.Debug("intent: using rule-based fallback", "error", err)

		return fallbackIntent(text), nil
	}

	return nil, err
}

// AnalyzeSentiment returns a normalized sentiment.
func (s *MLService) AnalyzeSentiment(ctx context.Context, text string) (*models.SentimentResult, error) {
	res, err := attempt(ctx, s, config.CapabilitySentiment, func(ctx context.Context, p Provider) (*models.SentimentResult, error) {
		return p.AnalyzeSentiment(ctx, text)
	})
	if err == nil {
		return res, nil
	}

	if s.fallback {
		s.logger.Debug("sentiment: using rule-based fallback", "error", err)

		return fallbackSentiment(text), nil
	}

	return nil, err
}

// ExtractEntities returns named entities grouped by type.
func (s *MLService) ExtractEntities(ctx context.Context, text string) (*models.EntityResult, error) {
	res, err := attempt(ctx, s, config.CapabilityEntities, func(ctx context.Context, p Provider) (*models.EntityResult, error) {
		return p.ExtractEntities(ctx, text)
	})
	if err == nil {
		return res, nil
	}

	if s.fallback {
		s.logger.Debug("entities: using rule-based fallback", "error", err)

		return fallbackEntities(text), nil
	}

	return nil, err
}

// GenerateEmbeddings returns a dense vector for text. There is no rule-based fallback.
func (s *MLService) GenerateEmbeddings(ctx context.Context, text string) (*models.EmbeddingResult, error) {
	return attempt(ctx, s, config.CapabilityEmbeddings, func(ctx context.Context, p Provider) (*models.EmbeddingResult, error) {
		return p.Embed(ctx, text)
	})
}

// GenerateEnhancement asks the first available generative provider to rewrite original
// around the analysis. It never fails: on skip or failure the original text is returned
// with Enhanced=false and a reason.
func (s *MLService) GenerateEnhancement(
	ctx context.Context, original string, analysis *models.AnalysisResult, rc models.RequestContext,
) models.GenerationResult {
	if analysis.Confidence() < s.minGeneration {
		return models.GenerationResult{Response: original, Reason: ReasonAnalysisConfidenceLow}
	}

	prompt := BuildEnhancementPrompt(original, analysis, rc)
	start := time.Now()

	generate := func(ctx context.Context, p Provider) (*models.GenerationResult, error) {
		return p.Generate(ctx, prompt)
	}

	// An echoed or empty answer is rejected after the breaker has recorded a success.
	out, err := attemptChecked(ctx, s, config.CapabilityGeneration, generate, func(gen *models.GenerationResult) error {
		text := strings.TrimSpace(gen.Response)
		if text == "" || text == strings.TrimSpace(original) {
			return ErrUnchangedGeneration
		}

		gen.Response = text

		return nil
	})

	ev := models.UsageEvent{Service: UsageServiceEnhancement, Duration: time.Since(start), Success: err == nil}

	if err != nil {
		ev.Provider = "none"
		s.usage.Track(ctx, ev)
		s.logger.Info("enhancement generation failed", "error", err)

		return models.GenerationResult{Response: original, Reason: ReasonGenerationFailed}
	}

	ev.Provider, ev.Model = out.Provider, out.Model
	s.usage.Track(ctx, ev)

	return models.GenerationResult{
		Enhanced: true,
		Response: out.Response,
		Provider: out.Provider,
		Model:    out.Model,
	}
}

// ProviderStatuses reports breaker and limiter state per configured provider, sorted by name.
func (s *MLService) ProviderStatuses() []ProviderStatus {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}

	sort.Strings(names)

	out := make([]ProviderStatus, 0, len(names))

	for _, name := range names {
		g := s.providers[name]

		st := ProviderStatus{
			Name:      name,
			Breaker:   g.Breaker.Snapshot(),
			Remaining: -1,
			Budget:    -1,
		}

		for _, c := range allCapabilities {
			if g.Provider.Supports(c) {
				st.Capabilities = append(st.Capabilities, c)
			}
		}

		if g.Limiter != nil {
			st.Remaining = g.Limiter.Remaining(name)
			st.Budget = g.Limiter.Points()
		}

		out = append(out, st)
	}

	return out
}

// attempt walks the provider order for capability and returns the first success.
// Each try goes through the provider's limiter and then its breaker.
func attempt[T any](
	ctx context.Context, s *MLService, capability string, call func(context.Context, Provider) (T, error),
) (T, error) {
	return attemptChecked(ctx, s, capability, call, nil)
}

// attemptChecked is attempt with a check applied to each successful result outside the
// breaker. A rejected result moves on to the next provider without counting as a failure.
func attemptChecked[T any](
	ctx context.Context, s *MLService, capability string,
	call func(context.Context, Provider) (T, error), check func(T) error,
) (T, error) {
	var (
		zero  T
		chain = &ChainError{Capability: capability}
	)

	for _, name := range s.order[capability] {
		if err := ctx.Err(); err != nil {
			chain.Attempts = append(chain.Attempts, ProviderAttempt{Provider: name, Err: err})

			break
		}

		g, ok := s.providers[name]
		if !ok {
			chain.Attempts = append(chain.Attempts, ProviderAttempt{
				Provider: name,
				Err:      keelerrors.NewProviderUnavailableError(name, capability),
			})

			continue
		}

		if !g.Provider.Supports(capability) {
			continue
		}

		if g.Limiter != nil {
			if err := g.Limiter.Consume(name); err != nil {
				s.recordCall(ctx, name, capability, observability.OutcomeRateLimited, 0)
				chain.Attempts = append(chain.Attempts, ProviderAttempt{Provider: name, Err: err})

				continue
			}
		}

		start := time.Now()
		spanCtx, span := observability.StartProviderSpan(ctx, name, capability)

		res, err := resilience.Call(spanCtx, g.Breaker, func(ctx context.Context) (T, error) {
			return call(ctx, g.Provider)
		})

		observability.EndSpan(span, err)
		s.recordCall(ctx, name, capability, outcomeOf(err), time.Since(start))

		if err == nil && check != nil {
			if err = check(res); err != nil {
				s.logger.Info("provider result rejected", "provider", name, "capability", capability, "error", err)
				chain.Attempts = append(chain.Attempts, ProviderAttempt{Provider: name, Err: err})

				continue
			}
		}

		if err == nil {
			return res, nil
		}

		s.logger.Warn("provider call failed", "provider", name, "capability", capability, "error", err)
		chain.Attempts = append(chain.Attempts, ProviderAttempt{Provider: name, Err: err})
	}

	return zero, chain
}

func (s *MLService) recordCall(ctx context.Context, provider, capability, outcome string, d time.Duration) {
	if s.providerMetrics != nil {
		s.providerMetrics.RecordCall(ctx, provider, capability, outcome, d)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, keelerrors.ErrCircuitOpen):
		return observability.OutcomeCircuitOpen
	case errors.Is(err, keelerrors.ErrTimeout):
		return observability.OutcomeTimeout
	case errors.Is(err, keelerrors.ErrRateLimited):
		return observability.OutcomeRateLimited
	default:
		return observability.OutcomeError
	}
}

// AnalysisCacheKey hashes the normalized message together with the request context.
// Messages differing only in case or whitespace share a key.
func AnalysisCacheKey(message string, rc models.RequestContext) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(message)), " ")

	rcJSON, err := json.Marshal(rc)
	if err != nil {
		rcJSON = fmt.Appendf(nil, "%+v", rc)
	}

	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write(rcJSON)

	return "analysis:" + hex.EncodeToString(h.Sum(nil))
}
