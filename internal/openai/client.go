// Package openai wraps the official OpenAI Go SDK for generation, embeddings and
// prompt-based intent and sentiment classification.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"github.com/keelwise/keel/internal/config"
	"github.com/keelwise/keel/internal/keelerrors"
	"github.com/keelwise/keel/internal/models"
)

// Name is the provider name used in config, logs and results.
const Name = "openai"

var (
	// ErrEmptyInput is returned when a call is made with empty input.
	ErrEmptyInput = errors.New("openai: input text is empty")
	// ErrNoEmbeddingInResponse is returned when the API response contains no embedding data.
	ErrNoEmbeddingInResponse = errors.New("openai: no embedding in response")
	// ErrNoChoices is returned when a chat completion has no choices.
	ErrNoChoices = errors.New("openai: no choices in response")
	// ErrUnparseable is returned when a classification answer is not the JSON we asked for.
	ErrUnparseable = errors.New("openai: unparseable classification")
)

const (
	defaultModel          = "gpt-4o-mini"
	defaultEmbeddingModel = "text-embedding-3-small"
	defaultMaxTokens      = 400
)

// Client calls the OpenAI API via the official SDK.
type Client struct {
	sdk            openaisdk.Client
	enabled        bool
	model          string
	embeddingModel string
}

// ClientOption configures the Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	model          string
	embeddingModel string
	sdkOpts        []option.RequestOption
}

// WithModel sets the chat model. Empty keeps the default.
func WithModel(model string) ClientOption {
	return func(c *clientConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithEmbeddingModel sets the embeddings model. Empty keeps the default.
func WithEmbeddingModel(model string) ClientOption {
	return func(c *clientConfig) {
		if model != "" {
			c.embeddingModel = model
		}
	}
}

// WithBaseURL points the client at a compatible endpoint (proxies, tests).
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) {
		if url != "" {
			c.sdkOpts = append(c.sdkOpts, option.WithBaseURL(url))
		}
	}
}

// NewClient creates an OpenAI client. Retries are left to the caller's fallback chain.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	cfg := clientConfig{model: defaultModel, embeddingModel: defaultEmbeddingModel}
	for _, opt := range opts {
		opt(&cfg)
	}

	sdkOpts := append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, cfg.sdkOpts...)

	return &Client{
		sdk:            openaisdk.NewClient(sdkOpts...),
		enabled:        apiKey != "",
		model:          cfg.model,
		embeddingModel: cfg.embeddingModel,
	}
}

// Name implements the provider surface.
func (c *Client) Name() string { return Name }

// Supports reports whether the client serves capability. There is no NER endpoint.
func (c *Client) Supports(capability string) bool {
	return capability != config.CapabilityEntities
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) (*models.EmbeddingResult, error) {
	if !c.enabled {
		return nil, keelerrors.NewProviderUnavailableError(Name, "")
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyInput
	}

	resp, err := c.sdk.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
		Model: openaisdk.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, ErrNoEmbeddingInResponse
	}

	emb := resp.Data[0].Embedding

	out := make([]float32, len(emb))
	for i := range emb {
		out[i] = float32(emb[i])
	}

	return &models.EmbeddingResult{
		Provider:  Name,
		Model:     c.embeddingModel,
		Vector:    out,
		Dimension: len(out),
	}, nil
}

// Generate runs a chat completion for prompt.
func (c *Client) Generate(ctx context.Context, prompt models.Prompt) (*models.GenerationResult, error) {
	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	content, model, err := c.complete(ctx, prompt.System, prompt.User, maxTokens, 0.7)
	if err != nil {
		return nil, err
	}

	return &models.GenerationResult{
		Enhanced: true,
		Response: content,
		Provider: Name,
		Model:    model,
	}, nil
}

const intentSystemPrompt = "You classify short messages from boat owners talking to a maintenance assistant. " +
	"Score how well the message fits each label from 0 to 1. " +
	`Answer with a single JSON object mapping every label to its score, for example {"scheduling":0.8}. No prose.`

// ClassifyIntent asks the chat model to score labels for text.
func (c *Client) ClassifyIntent(ctx context.Context, text string, labels []string) (*models.IntentResult, error) {
	user := "Labels: " + strings.Join(labels, ", ") + "\nMessage: " + text

	content, model, err := c.complete(ctx, intentSystemPrompt, user, 200, 0)
	if err != nil {
		return nil, err
	}

	var scores map[string]float64
	if err := json.Unmarshal([]byte(extractJSON(content)), &scores); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}

	allowed := make(map[string]bool, len(labels))
	for _, l := range labels {
		allowed[l] = true
	}

	result := &models.IntentResult{Provider: Name, Model: model, Labels: make(map[string]float64, len(labels))}

	// Deterministic tie-break by label order.
	ordered := make([]string, 0, len(scores))
	for l := range scores {
		if allowed[l] {
			ordered = append(ordered, l)
		}
	}

	sort.Strings(ordered)

	for _, l := range ordered {
		s := models.Clamp01(scores[l])
		result.Labels[l] = s

		if s > result.Confidence {
			result.Primary = l
			result.Confidence = s
		}
	}

	if result.Primary == "" {
		return nil, ErrUnparseable
	}

	return result, nil
}

const sentimentSystemPrompt = "You rate the sentiment of a message. " +
	`Answer with a single JSON object {"label":"positive|negative|neutral","score":S} ` +
	"where S is between 0 (very negative) and 1 (very positive). No prose."

type sentimentAnswer struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// AnalyzeSentiment asks the chat model for a polarity label and a positivity score.
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (*models.SentimentResult, error) {
	content, model, err := c.complete(ctx, sentimentSystemPrompt, text, 60, 0)
	if err != nil {
		return nil, err
	}

	var ans sentimentAnswer
	if err := json.Unmarshal([]byte(extractJSON(content)), &ans); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}

	label := strings.ToLower(ans.Label)
	if label != models.SentimentPositive && label != models.SentimentNegative {
		label = models.SentimentNeutral
	}

	return &models.SentimentResult{
		Provider: Name,
		Model:    model,
		Label:    label,
		Score:    models.Clamp01(ans.Score),
	}, nil
}

// ExtractEntities is not offered by this provider.
func (c *Client) ExtractEntities(context.Context, string) (*models.EntityResult, error) {
	return nil, keelerrors.NewProviderUnavailableError(Name, "entities")
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, string, error) {
	if !c.enabled {
		return "", "", keelerrors.NewProviderUnavailableError(Name, "")
	}

	if strings.TrimSpace(user) == "" {
		return "", "", ErrEmptyInput
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, openaisdk.ChatCompletionNewParams{
		Model: openaisdk.ChatModel(c.model),
		Messages: []openaisdk.ChatCompletionMessageParamUnion{
			openaisdk.SystemMessage(system),
			openaisdk.UserMessage(user),
		},
		MaxCompletionTokens: param.NewOpt(int64(maxTokens)),
		Temperature:         param.NewOpt(temperature),
	})
	if err != nil {
		return "", "", fmt.Errorf("openai chat: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", "", ErrNoChoices
	}

	model := resp.Model
	if model == "" {
		model = c.model
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), model, nil
}

// extractJSON strips markdown fences and surrounding prose from a model answer.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start < 0 || end < start {
		return s
	}

	return s[start : end+1]
}
