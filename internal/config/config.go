// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names recognized in PROVIDER_ORDER_* and RATE_LIMIT_* variables.
const (
	ProviderHuggingFace = "huggingface"
	ProviderOpenAI      = "openai"
	ProviderGoogle      = "google"
)

// Capability names used for provider preference order.
const (
	CapabilityIntent     = "intent"
	CapabilitySentiment  = "sentiment"
	CapabilityEntities   = "entities"
	CapabilityEmbeddings = "embeddings"
	CapabilityGeneration = "generation"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

var knownProviders = []string{ProviderHuggingFace, ProviderOpenAI, ProviderGoogle}

var defaultProviderOrder = map[string][]string{
	CapabilityIntent:     {ProviderHuggingFace, ProviderOpenAI},
	CapabilitySentiment:  {ProviderHuggingFace, ProviderOpenAI},
	CapabilityEntities:   {ProviderHuggingFace},
	CapabilityEmbeddings: {ProviderOpenAI, ProviderHuggingFace, ProviderGoogle},
	CapabilityGeneration: {ProviderOpenAI, ProviderGoogle},
}

// DefaultProviderOrder returns a copy of the built-in preference order per capability.
func DefaultProviderOrder() map[string][]string {
	out := make(map[string][]string, len(defaultProviderOrder))
	for capability, providers := range defaultProviderOrder {
		out[capability] = append([]string(nil), providers...)
	}

	return out
}

// Config holds all application configuration.
type Config struct {
	Port     string
	LogLevel string

	// Empty DatabaseURL selects the in-memory store.
	DatabaseURL      string
	DatabaseMaxConns int

	HuggingFace HuggingFaceConfig
	OpenAI      OpenAIConfig
	Google      GoogleConfig

	// ProviderOrder maps capability to provider names in preference order.
	ProviderOrder map[string][]string

	Cache CacheConfig

	// FallbackEnabled turns on rule-based intent/sentiment/entity heuristics when every provider fails.
	FallbackEnabled bool

	CircuitBreaker CircuitBreakerConfig

	// RateLimits is keyed by provider name.
	RateLimits map[string]RateLimitConfig

	Thresholds Thresholds

	// Inbound API throttle per client (requests per second and burst).
	APIRateLimit float64
	APIRateBurst int

	// APIKeys are accepted bearer tokens. Empty disables authentication.
	APIKeys []string

	MaxRequestBodyBytes int64

	OtelMetricsExporter string
	OtelTracesExporter  string
}

// HuggingFaceConfig configures the hosted inference API adapter.
type HuggingFaceConfig struct {
	APIKey         string
	BaseURL        string
	IntentModel    string
	SentimentModel string
	EntityModel    string
	EmbeddingModel string
	RetryMax       int
}

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
}

// GoogleConfig configures the Gemini adapter.
type GoogleConfig struct {
	APIKey         string
	Model          string
	EmbeddingModel string
}

// CacheConfig configures the analysis cache.
type CacheConfig struct {
	Enabled    bool
	TTL        time.Duration
	MaxEntries int
	Backend    string
	RedisURL   string
}

// CircuitBreakerConfig holds per-provider breaker settings (same for every provider).
type CircuitBreakerConfig struct {
	Timeout                  time.Duration
	ErrorThresholdPercentage int
	ResetTimeout             time.Duration
	VolumeThreshold          int
	RollingWindow            time.Duration
}

// RateLimitConfig is a point budget per window.
type RateLimitConfig struct {
	Points   int
	Duration time.Duration
}

// Thresholds are the tunable confidence cut-offs and caps.
type Thresholds struct {
	MinGenerationConfidence float64
	MinEnhanceConfidence    float64
	MinPatternConfidence    float64
	MaxEnhancementsPerHour  int
}

// Enabled reports whether the provider has a credential configured.
func (c *Config) Enabled(provider string) bool {
	switch provider {
	case ProviderHuggingFace:
		return c.HuggingFace.APIKey != ""
	case ProviderOpenAI:
		return c.OpenAI.APIKey != ""
	case ProviderGoogle:
		return c.Google.APIKey != ""
	default:
		return false
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloat retrieves an environment variable as a float64 or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsBool retrieves an environment variable as a bool or returns a default value.
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsDuration accepts Go duration strings ("30s", "1h") or a bare integer number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsList splits a comma-separated variable, trimming blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	var out []string

	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}

	return out
}

// getEnvAsSecrets splits a comma-separated variable without changing case.
func getEnvAsSecrets(key string) []string {
	var out []string

	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	return out
}

// Load reads configuration from environment variables and returns a Config struct.
// It automatically loads .env file if it exists.
// Returns default values for any missing environment variables.
func Load() (*Config, error) {
	// Skip logging when .env is absent (e.g. env from secrets/parameter store).
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DatabaseMaxConns: getEnvAsInt("DATABASE_MAX_CONNS", 10),

		HuggingFace: HuggingFaceConfig{
			APIKey:         os.Getenv("HUGGINGFACE_API_KEY"),
			BaseURL:        getEnv("HUGGINGFACE_BASE_URL", "https://api-inference.huggingface.co"),
			IntentModel:    getEnv("HUGGINGFACE_INTENT_MODEL", "facebook/bart-large-mnli"),
			SentimentModel: getEnv("HUGGINGFACE_SENTIMENT_MODEL", "nlptown/bert-base-multilingual-uncased-sentiment"),
			EntityModel:    getEnv("HUGGINGFACE_ENTITY_MODEL", "dslim/bert-base-NER"),
			EmbeddingModel: getEnv("HUGGINGFACE_EMBEDDING_MODEL", "sentence-transformers/all-MiniLM-L6-v2"),
			RetryMax:       getEnvAsInt("HUGGINGFACE_RETRY_MAX", 1),
		},
		OpenAI: OpenAIConfig{
			APIKey:         os.Getenv("OPENAI_API_KEY"),
			BaseURL:        os.Getenv("OPENAI_BASE_URL"),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Google: GoogleConfig{
			APIKey:         os.Getenv("GOOGLE_API_KEY"),
			Model:          getEnv("GOOGLE_MODEL", "gemini-2.0-flash"),
			EmbeddingModel: getEnv("GOOGLE_EMBEDDING_MODEL", "gemini-embedding-001"),
		},

		ProviderOrder: make(map[string][]string, len(defaultProviderOrder)),

		Cache: CacheConfig{
			Enabled:    getEnvAsBool("CACHE_ENABLED", true),
			TTL:        getEnvAsDuration("CACHE_TTL", time.Hour),
			MaxEntries: getEnvAsInt("CACHE_MAX_ENTRIES", 10000),
			Backend:    strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendMemory)),
			RedisURL:   getEnv("REDIS_URL", "redis://localhost:6379/0"),
		},

		FallbackEnabled: getEnvAsBool("ML_FALLBACK_ENABLED", true),

		CircuitBreaker: CircuitBreakerConfig{
			Timeout:                  getEnvAsDuration("CIRCUIT_BREAKER_TIMEOUT", 3*time.Second),
			ErrorThresholdPercentage: getEnvAsInt("CIRCUIT_BREAKER_ERROR_THRESHOLD", 50),
			ResetTimeout:             getEnvAsDuration("CIRCUIT_BREAKER_RESET_TIMEOUT", 30*time.Second),
			VolumeThreshold:          getEnvAsInt("CIRCUIT_BREAKER_VOLUME_THRESHOLD", 3),
			RollingWindow:            getEnvAsDuration("CIRCUIT_BREAKER_ROLLING_WINDOW", 10*time.Second),
		},

		RateLimits: make(map[string]RateLimitConfig, len(knownProviders)),

		Thresholds: Thresholds{
			MinGenerationConfidence: getEnvAsFloat("MIN_GENERATION_CONFIDENCE", 0.7),
			MinEnhanceConfidence:    getEnvAsFloat("MIN_ENHANCE_CONFIDENCE", 0.75),
			MinPatternConfidence:    getEnvAsFloat("MIN_PATTERN_CONFIDENCE", 0.3),
			MaxEnhancementsPerHour:  getEnvAsInt("MAX_ENHANCEMENTS_PER_HOUR", 3),
		},

		APIRateLimit:        getEnvAsFloat("API_RATE_LIMIT", 20),
		APIRateBurst:        getEnvAsInt("API_RATE_BURST", 40),
		APIKeys:             getEnvAsSecrets("API_KEYS"),
		MaxRequestBodyBytes: int64(getEnvAsInt("MAX_REQUEST_BODY_BYTES", 1<<20)),

		OtelMetricsExporter: strings.ToLower(os.Getenv("OTEL_METRICS_EXPORTER")),
		OtelTracesExporter:  strings.ToLower(os.Getenv("OTEL_TRACES_EXPORTER")),
	}

	for capability, def := range defaultProviderOrder {
		cfg.ProviderOrder[capability] = getEnvAsList("PROVIDER_ORDER_"+strings.ToUpper(capability), def)
	}

	defaultPoints := map[string]int{ProviderHuggingFace: 100, ProviderOpenAI: 60, ProviderGoogle: 60}
	for _, p := range knownProviders {
		prefix := "RATE_LIMIT_" + strings.ToUpper(p)
		cfg.RateLimits[p] = RateLimitConfig{
			Points:   getEnvAsInt(prefix+"_POINTS", defaultPoints[p]),
			Duration: getEnvAsDuration(prefix+"_DURATION", time.Minute),
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseMaxConns <= 0 {
		return errors.New("DATABASE_MAX_CONNS must be a positive integer")
	}

	if c.Cache.TTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}

	if c.Cache.MaxEntries <= 0 {
		return errors.New("CACHE_MAX_ENTRIES must be a positive integer")
	}

	if c.Cache.Backend != CacheBackendMemory && c.Cache.Backend != CacheBackendRedis {
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, c.Cache.Backend)
	}

	cb := c.CircuitBreaker
	if cb.ErrorThresholdPercentage <= 0 || cb.ErrorThresholdPercentage > 100 {
		return errors.New("CIRCUIT_BREAKER_ERROR_THRESHOLD must be between 1 and 100")
	}

	if cb.Timeout <= 0 || cb.ResetTimeout <= 0 || cb.RollingWindow <= 0 {
		return errors.New("CIRCUIT_BREAKER_TIMEOUT, CIRCUIT_BREAKER_RESET_TIMEOUT and CIRCUIT_BREAKER_ROLLING_WINDOW must be positive")
	}

	if cb.VolumeThreshold <= 0 {
		return errors.New("CIRCUIT_BREAKER_VOLUME_THRESHOLD must be a positive integer")
	}

	for name, rl := range c.RateLimits {
		if rl.Points <= 0 || rl.Duration <= 0 {
			return fmt.Errorf("rate limit for %s must have positive points and duration", name)
		}
	}

	for capability, order := range c.ProviderOrder {
		for _, p := range order {
			if !isKnownProvider(p) {
				return fmt.Errorf("PROVIDER_ORDER_%s: unknown provider %q", strings.ToUpper(capability), p)
			}
		}
	}

	for name, v := range map[string]float64{
		"MIN_GENERATION_CONFIDENCE": c.Thresholds.MinGenerationConfidence,
		"MIN_ENHANCE_CONFIDENCE":    c.Thresholds.MinEnhanceConfidence,
		"MIN_PATTERN_CONFIDENCE":    c.Thresholds.MinPatternConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1]", name)
		}
	}

	if c.Thresholds.MaxEnhancementsPerHour < 0 {
		return errors.New("MAX_ENHANCEMENTS_PER_HOUR must not be negative")
	}

	if c.APIRateLimit <= 0 || c.APIRateBurst <= 0 {
		return errors.New("API_RATE_LIMIT and API_RATE_BURST must be positive")
	}

	return nil
}

func isKnownProvider(name string) bool {
	for _, p := range knownProviders {
		if p == name {
			return true
		}
	}

	return false
}
