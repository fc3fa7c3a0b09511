package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnalysisResult is the merged output of the four parallel sub-analyses for one message.
// A nil sub-result is always explained by an entry in Errors.
type AnalysisResult struct {
	ID             uuid.UUID        `json:"id"`
	Message        string           `json:"message"`
	Timestamp      time.Time        `json:"timestamp"`
	Intent         *IntentResult    `json:"intent"`
	Sentiment      *SentimentResult `json:"sentiment"`
	Entities       *EntityResult    `json:"entities"`
	Embeddings     *EmbeddingResult `json:"embeddings"`
	ProcessingTime int64            `json:"processing_time_ms"`
	Errors         []string         `json:"errors,omitempty"`
}

// Confidence returns the intent confidence, or 0 when intent classification failed.
func (a *AnalysisResult) Confidence() float64 {
	if a == nil || a.Intent == nil {
		return 0
	}

	return a.Intent.Confidence
}

// TopIntent returns the primary intent label, or "" when unavailable.
func (a *AnalysisResult) TopIntent() string {
	if a == nil || a.Intent == nil {
		return ""
	}

	return a.Intent.Primary
}

// Summary trims the result down to intent, sentiment and entities.
func (a *AnalysisResult) Summary() *AnalysisSummary {
	if a == nil {
		return nil
	}

	return &AnalysisSummary{
		Intent:    a.Intent,
		Sentiment: a.Sentiment,
		Entities:  a.Entities,
	}
}

// IntentResult is a multi-label intent classification.
type IntentResult struct {
	Provider   string             `json:"provider"`
	Model      string             `json:"model,omitempty"`
	Primary    string             `json:"primary"`
	Labels     map[string]float64 `json:"labels"`
	Confidence float64            `json:"confidence"`
}

// Sentiment labels after normalization.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// SentimentResult holds a normalized sentiment label and score in [0,1].
type SentimentResult struct {
	Provider string  `json:"provider"`
	Model    string  `json:"model,omitempty"`
	Label    string  `json:"label"`
	Score    float64 `json:"score"`
}

// Entity is a single extracted span.
type Entity struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Start int     `json:"start"`
	End   int     `json:"end"`
}

// EntityResult groups entities by type (money, date, duration, part, PER, LOC, ...).
type EntityResult struct {
	Provider string              `json:"provider"`
	Model    string              `json:"model,omitempty"`
	Groups   map[string][]Entity `json:"groups"`
}

// EmbeddingResult is a dense vector for the message.
type EmbeddingResult struct {
	Provider  string    `json:"provider"`
	Model     string    `json:"model,omitempty"`
	Vector    []float32 `json:"vector"`
	Dimension int       `json:"dimension"`
}

// AnalysisSummary is the part of an analysis exposed alongside detected patterns.
type AnalysisSummary struct {
	Intent    *IntentResult    `json:"intent"`
	Sentiment *SentimentResult `json:"sentiment"`
	Entities  *EntityResult    `json:"entities"`
}

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	Message string         `json:"message" validate:"required,max=8000,no_null_bytes"`
	Context RequestContext `json:"context"`
}

// Fixed scores for star-rated and rule-based sentiment.
const (
	SentimentScoreNegative = 0.2
	SentimentScoreNeutral  = 0.5
	SentimentScorePositive = 0.8
)

// NormalizeSentiment maps a backend label and score to a positive/negative/neutral label
// with a score in [0,1], where low means negative.
// Star labels ("1 star" .. "5 stars") use the fixed constants: <=2 negative, 3 neutral, >=4 positive.
// Polarity labels keep the model score, inverted for negative so that the scale stays monotonic.
func NormalizeSentiment(label string, score float64) (string, float64) {
	l := strings.ToLower(strings.TrimSpace(label))

	if stars, ok := parseStars(l); ok {
		switch {
		case stars <= 2:
			return SentimentNegative, SentimentScoreNegative
		case stars == 3:
			return SentimentNeutral, SentimentScoreNeutral
		default:
			return SentimentPositive, SentimentScorePositive
		}
	}

	score = Clamp01(score)

	switch l {
	case "positive", "pos", "label_2":
		return SentimentPositive, score
	case "negative", "neg", "label_0":
		return SentimentNegative, 1 - score
	default:
		return SentimentNeutral, SentimentScoreNeutral
	}
}

func parseStars(label string) (int, bool) {
	if label == "" || label[0] < '1' || label[0] > '5' {
		return 0, false
	}

	rest := strings.TrimSpace(label[1:])
	if rest != "star" && rest != "stars" {
		return 0, false
	}

	return int(label[0] - '0'), true
}

// Clamp01 limits v to [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
