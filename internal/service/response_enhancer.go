package service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/keelwise/keel/internal/models"
	"github.com/keelwise/keel/internal/observability"
)

// Defaults for enhancement gating.
const (
	DefaultMinEnhanceConfidence   = 0.75
	DefaultMaxEnhancementsPerHour = 3
)

// Reasons reported when a response is left unchanged.
const (
	ReasonNoPatterns        = "No patterns detected"
	ReasonConfidenceTooLow  = "Pattern confidence too low"
	ReasonDisabledByUser    = "Enhancements disabled by user"
	ReasonTooManyRecent     = "Too many recent enhancements"
	ReasonNoTemplate        = "No template for pattern"
	ReasonUnchangedResponse = "Enhancement produced no change"
)

// Enhancement sources for metrics.
const (
	sourceML       = "ml"
	sourceTemplate = "template"
	sourceNone     = "none"
)

// TemplateProvider is the provider name recorded for template enhancements.
const TemplateProvider = "template"

// EnhancementGenerator rewrites a response with a generative model.
type EnhancementGenerator interface {
	GenerateEnhancement(ctx context.Context, original string, analysis *models.AnalysisResult, rc models.RequestContext) models.GenerationResult
}

// ResponseEnhancerParams configures ResponseEnhancer. Generator, Store and Metrics may be nil.
type ResponseEnhancerParams struct {
	Generator              EnhancementGenerator
	Store                  Store
	Tracker                *FrequencyTracker
	MinConfidence          float64
	MaxEnhancementsPerHour int
	Metrics                observability.EnhancementMetrics
	Logger                 *slog.Logger
}

// ResponseEnhancer decides whether to rewrite an answer and produces the rewrite.
type ResponseEnhancer struct {
	generator     EnhancementGenerator
	store         Store
	tracker       *FrequencyTracker
	minConfidence float64
	maxPerHour    int
	metrics       observability.EnhancementMetrics
	logger        *slog.Logger
	now           func() time.Time
}

// NewResponseEnhancer creates a ResponseEnhancer.
func NewResponseEnhancer(p ResponseEnhancerParams) *ResponseEnhancer {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracker := p.Tracker
	if tracker == nil {
		tracker = NewFrequencyTracker()
	}

	minConfidence := p.MinConfidence
	if minConfidence <= 0 {
		minConfidence = DefaultMinEnhanceConfidence
	}

	maxPerHour := p.MaxEnhancementsPerHour
	if maxPerHour <= 0 {
		maxPerHour = DefaultMaxEnhancementsPerHour
	}

	return &ResponseEnhancer{
		generator:     p.Generator,
		store:         p.Store,
		tracker:       tracker,
		minConfidence: minConfidence,
		maxPerHour:    maxPerHour,
		metrics:       p.Metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// ShouldEnhance applies the gates in order. A critical pattern skips only the frequency cap.
func (e *ResponseEnhancer) ShouldEnhance(userID string, data *models.PatternData, rc *models.RequestContext) (bool, string) {
	data = normalizePatternData(data)

	ok, reason, critical := e.preflight(data, rc)
	if !ok || critical {
		return ok, reason
	}

	if len(e.tracker.Recent(userID)) > e.maxPerHour {
		return false, ReasonTooManyRecent
	}

	return true, ""
}

// preflight applies every gate except the frequency cap and reports whether the top
// pattern is critical.
func (e *ResponseEnhancer) preflight(data *models.PatternData, rc *models.RequestContext) (bool, string, bool) {
	top := data.Top()

	switch {
	case top == nil:
		return false, ReasonNoPatterns, false
	case top.Confidence < e.minConfidence:
		return false, ReasonConfidenceTooLow, false
	case rc != nil && rc.UserPreferences.DisableEnhancements:
		return false, ReasonDisabledByUser, false
	default:
		return true, "", top.IsCritical()
	}
}

// normalizePatternData returns a copy of data with confidences clamped to [0,1] and
// patterns stable-sorted by confidence, descending. Pattern data may come from callers.
func normalizePatternData(data *models.PatternData) *models.PatternData {
	if data == nil {
		return nil
	}

	out := *data
	out.Patterns = make([]models.Pattern, len(data.Patterns))

	for i, p := range data.Patterns {
		p.Confidence = models.Clamp01(p.Confidence)
		out.Patterns[i] = p
	}

	sort.SliceStable(out.Patterns, func(i, j int) bool {
		return out.Patterns[i].Confidence > out.Patterns[j].Confidence
	})

	return &out
}

// EnhanceResponse rewrites original around the top detected pattern: generative model first,
// then the pattern's template. It never fails; an unchanged response carries a Reason.
// Every attempt is persisted to response_enhancements.
func (e *ResponseEnhancer) EnhanceResponse(
	ctx context.Context, original string, data *models.PatternData, rc models.RequestContext,
) *models.EnhancementResponse {
	start := e.now()
	data = normalizePatternData(data)

	resp := &models.EnhancementResponse{
		ID:       uuid.Must(uuid.NewV7()),
		Response: original,
	}

	source := sourceNone

	ok, reason, critical := e.preflight(data, &rc)

	var (
		reservedAt time.Time
		reserved   bool
	)

	if ok && rc.UserID != "" {
		limit := e.maxPerHour
		if critical {
			limit = -1
		}

		reservedAt, reserved = e.tracker.Reserve(rc.UserID, limit)
		if !reserved {
			ok, reason = false, ReasonTooManyRecent
		}
	}

	if !ok {
		resp.Reason = reason
	} else {
		top := *data.Top()
		resp.Pattern = &top
		resp.Style = SelectStyle(&top, &rc)
		source = e.rewrite(ctx, original, data, &rc, resp)
	}

	resp.Enhanced = resp.Response != "" && resp.Response != original
	if !resp.Enhanced {
		resp.Response = original
		source = sourceNone

		if resp.Reason == "" {
			resp.Reason = ReasonUnchangedResponse
		}

		if reserved {
			e.tracker.Release(rc.UserID, reservedAt)
		}
	}

	resp.ProcessingTime = e.now().Sub(start).Milliseconds()

	if e.metrics != nil {
		e.metrics.RecordEnhancement(ctx, source, resp.Enhanced)
	}

	e.persist(ctx, original, resp, &rc)

	return resp
}

// rewrite fills resp from the generator or a template and returns the source used.
func (e *ResponseEnhancer) rewrite(
	ctx context.Context, original string, data *models.PatternData, rc *models.RequestContext, resp *models.EnhancementResponse,
) string {
	if e.generator != nil {
		gen := e.generator.GenerateEnhancement(ctx, original, patternAnalysis(original, data), *rc)
		if gen.Enhanced && gen.Response != "" && gen.Response != original {
			resp.Response = gen.Response
			resp.Provider = gen.Provider
			resp.Model = gen.Model

			return sourceML
		}

		e.logger.Debug("ml enhancement unavailable, using template", "reason", gen.Reason)
	}

	tmpl, variant, ok := selectTemplate(resp.Pattern.Name, rc)
	if !ok {
		resp.Reason = ReasonNoTemplate

		return sourceNone
	}

	resp.Response = FormatEnhancement(original, renderTemplate(tmpl, resp.Pattern, rc), resp.Style)
	resp.Provider = TemplateProvider
	resp.Model = variant

	return sourceTemplate
}

// patternAnalysis builds the analysis handed to the generator: the top pattern stands in
// for the intent so that generation is gated on pattern confidence.
func patternAnalysis(original string, data *models.PatternData) *models.AnalysisResult {
	top := data.Top()

	a := &models.AnalysisResult{
		Message: original,
		Intent: &models.IntentResult{
			Provider:   "pattern",
			Primary:    top.Name,
			Labels:     map[string]float64{top.Name: top.Confidence},
			Confidence: top.Confidence,
		},
	}

	if data.Analysis != nil {
		a.Sentiment = data.Analysis.Sentiment
		a.Entities = data.Analysis.Entities
	}

	return a
}

func (e *ResponseEnhancer) persist(ctx context.Context, original string, resp *models.EnhancementResponse, rc *models.RequestContext) {
	if e.store == nil {
		return
	}

	rec := models.Record{
		"id":                 resp.ID,
		"user_id":            rc.UserID,
		"session_id":         rc.SessionID,
		"original_response":  original,
		"enhanced_response":  resp.Response,
		"enhanced":           resp.Enhanced,
		"provider":           resp.Provider,
		"model":              resp.Model,
		"style":              resp.Style,
		"reason":             resp.Reason,
		"energy_level":       rc.EnergyLevel,
		"business_type":      rc.BusinessType,
		"trust_level":        rc.TrustLevel,
		"processing_time_ms": resp.ProcessingTime,
		"created_at":         e.now().UTC(),
	}

	if resp.Pattern != nil {
		rec["pattern_type"] = resp.Pattern.Name
		rec["pattern_confidence"] = resp.Pattern.Confidence
	}

	if err := e.store.Insert(ctx, models.TableResponseEnhancements, rec); err != nil {
		e.logger.Error("failed to persist enhancement", "enhancement_id", resp.ID, "user_id", rc.UserID, "error", err)
	}
}
