// Package huggingface calls the hosted Inference API for zero-shot intent classification,
// sentiment, named-entity recognition and feature extraction.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/keelwise/keel/internal/config"
	"github.com/keelwise/keel/internal/keelerrors"
	"github.com/keelwise/keel/internal/models"
)

// Name is the provider name used in config, logs and results.
const Name = "huggingface"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

var (
	// ErrEmptyInput is returned when a call is made with empty text.
	ErrEmptyInput = errors.New("huggingface: input text is empty")
	// ErrEmptyResponse is returned when the model answered with no usable data.
	ErrEmptyResponse = errors.New("huggingface: empty response")
	// ErrResponseTooLarge is returned when a response body exceeds maxResponseBytes.
	ErrResponseTooLarge = errors.New("huggingface: response too large")
)

// ClientOptions configures the Inference API client.
type ClientOptions struct {
	// BaseURL defaults to https://api-inference.huggingface.co
	BaseURL        string
	APIKey         string
	IntentModel    string
	SentimentModel string
	EntityModel    string
	EmbeddingModel string
	// RetryMax is the maximum number of retries on 5xx and connection errors (default: 1)
	RetryMax int
	// Timeout is the HTTP client timeout (default: 10 seconds)
	Timeout time.Duration
}

// Client is the Inference API client.
type Client struct {
	opts       ClientOptions
	httpClient *retryablehttp.Client
}

// NewClient creates a client. An empty APIKey yields a client whose every call reports the provider unavailable.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api-inference.huggingface.co"
	}

	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")

	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	if opts.RetryMax == 0 {
		opts.RetryMax = 1
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = 100 * time.Millisecond
	retryClient.RetryWaitMax = 500 * time.Millisecond
	retryClient.HTTPClient.Timeout = opts.Timeout
	retryClient.Logger = nil // Disable logging by default

	return &Client{opts: opts, httpClient: retryClient}
}

// Name implements the provider surface.
func (c *Client) Name() string { return Name }

// Supports reports whether the Inference API serves capability. Text generation is not wired.
func (c *Client) Supports(capability string) bool {
	return capability != config.CapabilityGeneration
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// ClassifyIntent scores text against labels with a zero-shot NLI model.
func (c *Client) ClassifyIntent(ctx context.Context, text string, labels []string) (*models.IntentResult, error) {
	var resp zeroShotResponse

	err := c.post(ctx, c.opts.IntentModel, zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels, MultiLabel: true},
	}, &resp)
	if err != nil {
		return nil, err
	}

	if len(resp.Labels) == 0 || len(resp.Labels) != len(resp.Scores) {
		return nil, ErrEmptyResponse
	}

	result := &models.IntentResult{
		Provider: Name,
		Model:    c.opts.IntentModel,
		Labels:   make(map[string]float64, len(resp.Labels)),
	}

	for i, label := range resp.Labels {
		result.Labels[label] = resp.Scores[i]

		if resp.Scores[i] > result.Confidence {
			result.Primary = label
			result.Confidence = resp.Scores[i]
		}
	}

	return result, nil
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type textRequest struct {
	Inputs string `json:"inputs"`
}

// AnalyzeSentiment runs a text-classification sentiment model and normalizes its best label.
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (*models.SentimentResult, error) {
	var raw json.RawMessage
	if err := c.post(ctx, c.opts.SentimentModel, textRequest{Inputs: text}, &raw); err != nil {
		return nil, err
	}

	scores, err := decodeLabelScores(raw)
	if err != nil {
		return nil, err
	}

	if len(scores) == 0 {
		return nil, ErrEmptyResponse
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	label, score := models.NormalizeSentiment(scores[0].Label, scores[0].Score)

	return &models.SentimentResult{
		Provider: Name,
		Model:    c.opts.SentimentModel,
		Label:    label,
		Score:    score,
	}, nil
}

// decodeLabelScores accepts both [[{label,score}]] and [{label,score}].
func decodeLabelScores(raw json.RawMessage) ([]labelScore, error) {
	var nested [][]labelScore
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}

		return nested[0], nil
	}

	var flat []labelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("huggingface: decode classification: %w", err)
	}

	return flat, nil
}

type nerRequest struct {
	Inputs     string        `json:"inputs"`
	Parameters nerParameters `json:"parameters"`
}

type nerParameters struct {
	AggregationStrategy string `json:"aggregation_strategy"`
}

type nerEntity struct {
	EntityGroup string  `json:"entity_group"`
	Score       float64 `json:"score"`
	Word        string  `json:"word"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
}

// ExtractEntities runs token classification with simple aggregation and groups spans by type.
func (c *Client) ExtractEntities(ctx context.Context, text string) (*models.EntityResult, error) {
	var entities []nerEntity

	err := c.post(ctx, c.opts.EntityModel, nerRequest{
		Inputs:     text,
		Parameters: nerParameters{AggregationStrategy: "simple"},
	}, &entities)
	if err != nil {
		return nil, err
	}

	result := &models.EntityResult{
		Provider: Name,
		Model:    c.opts.EntityModel,
		Groups:   make(map[string][]models.Entity),
	}

	for _, e := range entities {
		result.Groups[e.EntityGroup] = append(result.Groups[e.EntityGroup], models.Entity{
			Text:  strings.TrimSpace(e.Word),
			Score: e.Score,
			Start: e.Start,
			End:   e.End,
		})
	}

	return result, nil
}

// Embed runs feature extraction. Token-level output is mean-pooled into a single vector.
func (c *Client) Embed(ctx context.Context, text string) (*models.EmbeddingResult, error) {
	var raw json.RawMessage
	if err := c.post(ctx, c.opts.EmbeddingModel, textRequest{Inputs: text}, &raw); err != nil {
		return nil, err
	}

	vec, err := decodeVector(raw)
	if err != nil {
		return nil, err
	}

	if len(vec) == 0 {
		return nil, ErrEmptyResponse
	}

	return &models.EmbeddingResult{
		Provider:  Name,
		Model:     c.opts.EmbeddingModel,
		Vector:    vec,
		Dimension: len(vec),
	}, nil
}

func decodeVector(raw json.RawMessage) ([]float32, error) {
	var flat []float32
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}

	var tokens [][]float32
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("huggingface: decode embedding: %w", err)
	}

	if len(tokens) == 0 {
		return nil, nil
	}

	out := make([]float32, len(tokens[0]))
	for _, tok := range tokens {
		for i := range out {
			if i < len(tok) {
				out[i] += tok[i]
			}
		}
	}

	for i := range out {
		out[i] /= float32(len(tokens))
	}

	return out, nil
}

// Generate is not offered by this provider.
func (c *Client) Generate(context.Context, models.Prompt) (*models.GenerationResult, error) {
	return nil, keelerrors.NewProviderUnavailableError(Name, "generation")
}

func (c *Client) post(ctx context.Context, model string, payload, dst any) error {
	if c.opts.APIKey == "" {
		return keelerrors.NewProviderUnavailableError(Name, "")
	}

	if in, ok := inputOf(payload); ok && strings.TrimSpace(in) == "" {
		return ErrEmptyInput
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("huggingface: encode request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/models/"+model, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("huggingface: create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("huggingface: %s: %w", model, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("Failed to close response body", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("huggingface: read response: %w", err)
	}

	if len(data) > maxResponseBytes {
		return fmt.Errorf("%w: %s over %d bytes", ErrResponseTooLarge, model, maxResponseBytes)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("huggingface: %s returned status %d: %s", model, resp.StatusCode, truncate(string(data), 200))
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("huggingface: decode response: %w", err)
	}

	return nil
}

func inputOf(payload any) (string, bool) {
	switch p := payload.(type) {
	case textRequest:
		return p.Inputs, true
	case zeroShotRequest:
		return p.Inputs, true
	case nerRequest:
		return p.Inputs, true
	default:
		return "", false
	}
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	count := 0

	for i := range s {
		if count == n {
			return s[:i] + "..."
		}

		count++
	}

	return s
}
