package handlers

import (
	"context"
	"net/http"

	"github.com/keelwise/keel/internal/api/response"
	"github.com/keelwise/keel/internal/api/validation"
	"github.com/keelwise/keel/internal/models"
)

// MessageAnalyzer runs the parallel sub-analyses for one message.
type MessageAnalyzer interface {
	AnalyzeMessage(ctx context.Context, message string, rc models.RequestContext) (*models.AnalysisResult, error)
}

// AnalysisHandler handles POST /v1/analyze.
type AnalysisHandler struct {
	analyzer MessageAnalyzer
}

// NewAnalysisHandler creates an AnalysisHandler.
func NewAnalysisHandler(analyzer MessageAnalyzer) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer}
}

// Analyze handles POST /v1/analyze
// @Summary Analyze a message
// @Description Runs intent, sentiment, entity and embedding analysis in parallel. Sub-analyses
// @Description that fail are nil and explained in errors.
// @Tags Analysis
// @Accept json
// @Produce json
// @Param request body AnalyzeRequest true "Message and context"
// @Success 200 {object} AnalysisResult
// @Failure 400 {object} response.ProblemDetails
// @Failure 503 {object} response.ProblemDetails "No providers configured and fallback disabled"
// @Router /v1/analyze [post]
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	result, err := h.analyzer.AnalyzeMessage(r.Context(), req.Message, req.Context)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondSuccess(w, http.StatusOK, result)
}
