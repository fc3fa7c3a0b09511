// Package googleai wraps the Google Gen AI SDK (Gemini API) for generation and embeddings.
package googleai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"google.golang.org/genai"

	"github.com/keelwise/keel/internal/config"
	"github.com/keelwise/keel/internal/keelerrors"
	"github.com/keelwise/keel/internal/models"
	"github.com/keelwise/keel/pkg/embeddings"
)

// Name is the provider name used in config, logs and results.
const Name = "google"

var (
	// ErrEmptyInput is returned when a call is made with empty input.
	ErrEmptyInput = errors.New("googleai: input text is empty")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("googleai: no embedding in response")
	// ErrEmptyGeneration is returned when the model produced no text.
	ErrEmptyGeneration = errors.New("googleai: empty generation")
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultEmbeddingModel = "gemini-embedding-001"
	defaultMaxTokens      = 400
)

// Client calls the Gemini API via the Google Gen AI SDK.
type Client struct {
	client         *genai.Client
	model          string
	embeddingModel string
	dimensions     int
	baseURL        string
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithModel sets the generation model. Empty keeps the default.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithEmbeddingModel sets the embedding model name (e.g. gemini-embedding-001). Empty keeps the default.
func WithEmbeddingModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithDimensions requests a reduced embedding dimension. Zero leaves the model default.
func WithDimensions(dim int) ClientOption {
	return func(c *Client) {
		c.dimensions = dim
	}
}

// WithBaseURL overrides the API endpoint.
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = url
	}
}

// NewClient creates a Gemini client. An empty apiKey yields a client whose every call
// reports the provider unavailable, without contacting the SDK.
func NewClient(ctx context.Context, apiKey string, opts ...ClientOption) (*Client, error) {
	client := &Client{
		model:          defaultModel,
		embeddingModel: defaultEmbeddingModel,
	}
	for _, opt := range opts {
		opt(client)
	}

	if apiKey == "" {
		return client, nil
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if client.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: client.baseURL}
	}

	genaiClient, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("googleai client: %w", err)
	}

	client.client = genaiClient

	return client, nil
}

// Name implements the provider surface.
func (c *Client) Name() string { return Name }

// Supports reports whether the client serves capability: embeddings and generation only.
func (c *Client) Supports(capability string) bool {
	return capability == config.CapabilityEmbeddings || capability == config.CapabilityGeneration
}

// Embed returns the embedding vector for text using the configured model.
func (c *Client) Embed(ctx context.Context, text string) (*models.EmbeddingResult, error) {
	if c.client == nil {
		return nil, keelerrors.NewProviderUnavailableError(Name, "")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	cfg := &genai.EmbedContentConfig{}

	if c.dimensions > 0 && c.dimensions <= math.MaxInt32 {
		//nolint:gosec // G115: c.dimensions is bounded above by math.MaxInt32
		dim := int32(c.dimensions)
		cfg.OutputDimensionality = &dim
	}

	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := c.client.Models.EmbedContent(ctx, c.embeddingModel, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding: %w", err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Embeddings[0].Values
	out := make([]float32, len(emb))
	copy(out, emb)

	// Truncated Gemini embeddings come back unnormalized.
	if c.dimensions > 0 {
		embeddings.NormalizeL2(out)
	}

	return &models.EmbeddingResult{
		Provider:  Name,
		Model:     c.embeddingModel,
		Vector:    out,
		Dimension: len(out),
	}, nil
}

// Generate produces text for prompt.
func (c *Client) Generate(ctx context.Context, prompt models.Prompt) (*models.GenerationResult, error) {
	if c.client == nil {
		return nil, keelerrors.NewProviderUnavailableError(Name, "")
	}

	if strings.TrimSpace(prompt.User) == "" {
		return nil, ErrEmptyInput
	}

	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 || maxTokens > math.MaxInt32 {
		maxTokens = defaultMaxTokens
	}

	cfg := &genai.GenerateContentConfig{
		//nolint:gosec // G115: bounded above
		MaxOutputTokens: int32(maxTokens),
		Temperature:     genai.Ptr[float32](0.7),
	}
	if prompt.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt.User), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, ErrEmptyGeneration
	}

	model := c.model
	if resp.ModelVersion != "" {
		model = resp.ModelVersion
	}

	return &models.GenerationResult{
		Enhanced: true,
		Response: text,
		Provider: Name,
		Model:    model,
	}, nil
}

// ClassifyIntent is not offered by this provider.
func (c *Client) ClassifyIntent(context.Context, string, []string) (*models.IntentResult, error) {
	return nil, keelerrors.NewProviderUnavailableError(Name, "intent")
}

// AnalyzeSentiment is not offered by this provider.
func (c *Client) AnalyzeSentiment(context.Context, string) (*models.SentimentResult, error) {
	return nil, keelerrors.NewProviderUnavailableError(Name, "sentiment")
}

// ExtractEntities is not offered by this provider.
func (c *Client) ExtractEntities(context.Context, string) (*models.EntityResult, error) {
	return nil, keelerrors.NewProviderUnavailableError(Name, "entities")
}
