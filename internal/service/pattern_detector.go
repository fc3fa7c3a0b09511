package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/keelwise/keel/internal/models"
)

// DefaultMinPatternConfidence drops weaker patterns from detection results.
const DefaultMinPatternConfidence = 0.3

// MessageAnalyzer produces the analysis that pattern scoring runs on.
type MessageAnalyzer interface {
	AnalyzeMessage(ctx context.Context, message string, rc models.RequestContext) (*models.AnalysisResult, error)
}

// PatternDetectorParams configures PatternDetector. Store may be nil (no audit rows).
type PatternDetectorParams struct {
	Analyzer      MessageAnalyzer
	Store         Store
	MinConfidence float64
	Logger        *slog.Logger
}

// PatternDetector turns message analysis into scored behavioral patterns.
type PatternDetector struct {
	analyzer      MessageAnalyzer
	store         Store
	minConfidence float64
	logger        *slog.Logger
	now           func() time.Time
}

// NewPatternDetector creates a PatternDetector.
func NewPatternDetector(p PatternDetectorParams) *PatternDetector {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	minConfidence := p.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinPatternConfidence
	}

	return &PatternDetector{
		analyzer:      p.Analyzer,
		store:         p.Store,
		minConfidence: minConfidence,
		logger:        logger,
		now:           time.Now,
	}
}

// DetectPatterns analyzes message and scores every taxonomy pattern against it.
// The only error is the analyzer's (no providers and fallback disabled).
func (d *PatternDetector) DetectPatterns(
	ctx context.Context, userID, message string, rc models.RequestContext,
) (*models.PatternData, error) {
	start := d.now()

	analysis, err := d.analyzer.AnalyzeMessage(ctx, message, rc)
	if err != nil {
		return nil, err
	}

	patterns := ScorePatterns(message, analysis, &rc, d.minConfidence)

	data := &models.PatternData{
		Patterns: patterns,
		Analysis: analysis.Summary(),
		UserContext: models.UserContext{
			DetectedPatterns: make([]string, 0, len(patterns)),
			EnergyLevel:      rc.EnergyLevel,
			BusinessType:     rc.BusinessType,
		},
	}

	for _, p := range patterns {
		data.UserContext.DetectedPatterns = append(data.UserContext.DetectedPatterns, p.Name)
	}

	if top := data.Top(); top != nil {
		data.UserContext.PrimaryPattern = top.Name
		data.UserContext.Confidence = top.Confidence
	}

	data.ProcessingTime = d.now().Sub(start).Milliseconds()

	d.recordDetection(ctx, userID, message, data, analysis)

	return data, nil
}

// recordDetection writes the pattern_detections audit row. Failures are logged only.
func (d *PatternDetector) recordDetection(
	ctx context.Context, userID, message string, data *models.PatternData, analysis *models.AnalysisResult,
) {
	if d.store == nil {
		return
	}

	sum := sha256.Sum256([]byte(message))

	rec := models.Record{
		"id":                 uuid.Must(uuid.NewV7()),
		"user_id":            userID,
		"message_hash":       hex.EncodeToString(sum[:]),
		"patterns":           data.UserContext.DetectedPatterns,
		"primary_confidence": data.UserContext.Confidence,
		"created_at":         d.now().UTC(),
	}

	if analysis.Embeddings != nil && len(analysis.Embeddings.Vector) > 0 {
		rec["embedding"] = analysis.Embeddings.Vector
	}

	if err := d.store.Insert(ctx, models.TablePatternDetections, rec); err != nil {
		d.logger.Error("failed to record pattern detection", "user_id", userID, "error", err)
	}
}

// ScorePatterns scores every taxonomy entry against the message and analysis, keeps those at
// or above minConfidence and returns them sorted by confidence (descending, stable).
//
// Each pattern adds up: keyword hit 0.3, sentiment below its threshold 0.2-0.25, top intent
// equal to the pattern 0.4, and 0.1-0.15 per matching context rule; the sum is clamped to [0,1].
func ScorePatterns(message string, analysis *models.AnalysisResult, rc *models.RequestContext, minConfidence float64) []models.Pattern {
	lower := strings.ToLower(message)
	if rc == nil {
		rc = &models.RequestContext{}
	}

	out := make([]models.Pattern, 0, len(taxonomy))

	for i := range taxonomy {
		def := &taxonomy[i]

		var (
			score      float64
			indicators []string
		)

		if containsAny(lower, def.keywords) {
			score += keywordWeight
			indicators = append(indicators, def.indicators...)
		}

		if analysis != nil && analysis.Sentiment != nil && analysis.Sentiment.Score < def.threshold {
			score += def.bonus
			indicators = append(indicators, indicatorSentiment)
		}

		if analysis.TopIntent() == def.name {
			score += intentWeight
			indicators = append(indicators, indicatorIntent)
		}

		for _, rule := range def.context {
			if rule.match(rc) {
				score += rule.bonus
				if !slices.Contains(indicators, rule.flag) {
					indicators = append(indicators, rule.flag)
				}
			}
		}

		score = models.Clamp01(score)
		if score < minConfidence {
			continue
		}

		out = append(out, models.Pattern{
			Name:        def.name,
			Confidence:  score,
			Indicators:  indicators,
			Description: def.description,
			Suggestions: slices.Clone(def.suggestions),
			Priority:    def.priority,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })

	return out
}
