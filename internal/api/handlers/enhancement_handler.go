package handlers

import (
	"context"
	"net/http"

	"github.com/keelwise/keel/internal/api/response"
	"github.com/keelwise/keel/internal/api/validation"
	"github.com/keelwise/keel/internal/models"
)

// PatternDetector scores behavioral patterns for a message.
type PatternDetector interface {
	DetectPatterns(ctx context.Context, userID, message string, rc models.RequestContext) (*models.PatternData, error)
}

// ResponseEnhancer rewrites an assistant answer around detected patterns.
type ResponseEnhancer interface {
	EnhanceResponse(ctx context.Context, original string, data *models.PatternData, rc models.RequestContext) *models.EnhancementResponse
}

// EnhancementHandler serves pattern detection, enhancement and the combined pipeline.
type EnhancementHandler struct {
	detector PatternDetector
	enhancer ResponseEnhancer
}

// NewEnhancementHandler creates an EnhancementHandler.
func NewEnhancementHandler(detector PatternDetector, enhancer ResponseEnhancer) *EnhancementHandler {
	return &EnhancementHandler{detector: detector, enhancer: enhancer}
}

// Detect handles POST /v1/patterns
// @Summary Detect behavioral patterns
// @Tags Enhancement
// @Accept json
// @Produce json
// @Param request body DetectPatternsRequest true "User message"
// @Success 200 {object} PatternData
// @Failure 400 {object} response.ProblemDetails
// @Failure 503 {object} response.ProblemDetails
// @Router /v1/patterns [post]
func (h *EnhancementHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req models.DetectPatternsRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	rc := withUser(req.Context, req.UserID)

	data, err := h.detector.DetectPatterns(r.Context(), req.UserID, req.Message, rc)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondSuccess(w, http.StatusOK, data)
}

// Enhance handles POST /v1/enhance. An unchanged response is still 200; Reason says why.
// @Summary Enhance an assistant response
// @Tags Enhancement
// @Accept json
// @Produce json
// @Param request body EnhanceRequest true "Original response and pattern data"
// @Success 200 {object} EnhancementResponse
// @Failure 400 {object} response.ProblemDetails
// @Router /v1/enhance [post]
func (h *EnhancementHandler) Enhance(w http.ResponseWriter, r *http.Request) {
	var req models.EnhanceRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	resp := h.enhancer.EnhanceResponse(r.Context(), req.OriginalResponse, &req.PatternData, req.Context)

	response.RespondSuccess(w, http.StatusOK, resp)
}

// Pipeline handles POST /v1/pipeline: detection followed by enhancement.
func (h *EnhancementHandler) Pipeline(w http.ResponseWriter, r *http.Request) {
	var req models.PipelineRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	rc := withUser(req.Context, req.UserID)

	data, err := h.detector.DetectPatterns(r.Context(), req.UserID, req.Message, rc)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	enhancement := h.enhancer.EnhanceResponse(r.Context(), req.OriginalResponse, data, rc)

	response.RespondSuccess(w, http.StatusOK, models.PipelineResponse{Patterns: data, Enhancement: enhancement})
}

// withUser fills the context's user id from the request body when the caller left it out.
func withUser(rc models.RequestContext, userID string) models.RequestContext {
	if rc.UserID == "" {
		rc.UserID = userID
	}

	return rc
}
