package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/keelwise/keel/internal/api/response"
	"github.com/keelwise/keel/internal/api/validation"
	"github.com/keelwise/keel/internal/models"
)

// FeedbackService records feedback and aggregates it per user.
type FeedbackService interface {
	ProcessFeedback(ctx context.Context, userID, enhancementID string, fb models.FeedbackInput) models.FeedbackResult
	GetFeedbackStats(ctx context.Context, userID string, since *time.Time) (*models.FeedbackStats, error)
}

// FeedbackHandler handles HTTP requests for enhancement feedback.
type FeedbackHandler struct {
	service FeedbackService
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(service FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// Create handles POST /v1/feedback
// @Summary Record feedback on an enhancement
// @Tags Feedback
// @Accept json
// @Produce json
// @Param request body FeedbackRequest true "Feedback flags"
// @Success 201 {object} FeedbackResult
// @Failure 400 {object} response.ProblemDetails
// @Failure 500 {object} response.ProblemDetails "Feedback could not be stored"
// @Router /v1/feedback [post]
func (h *FeedbackHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.FeedbackRequest
	if err := validation.DecodeJSON(r, &req); err != nil {
		respondDecodeError(w, err)
		return
	}

	result := h.service.ProcessFeedback(r.Context(), req.UserID, req.EnhancementID, models.FeedbackInput{
		Engaged:        req.Engaged,
		Helpful:        req.Helpful,
		ActionTaken:    req.ActionTaken,
		BusinessImpact: req.BusinessImpact,
	})

	if !result.Success {
		response.RespondInternalServerError(w, "Feedback could not be stored")
		return
	}

	response.RespondSuccess(w, http.StatusCreated, result)
}

// Stats handles GET /v1/feedback/stats/{user_id}
// @Summary Feedback counts for a user
// @Tags Feedback
// @Produce json
// @Param user_id path string true "User ID"
// @Param since query string false "Only count feedback created at or after since (RFC 3339)"
// @Success 200 {object} FeedbackStats
// @Failure 400 {object} response.ProblemDetails
// @Router /v1/feedback/stats/{user_id} [get]
func (h *FeedbackHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		response.RespondBadRequest(w, "user_id is required")
		return
	}

	var filters models.FeedbackStatsFilters
	if err := validation.ValidateAndDecodeQueryParams(r, &filters); err != nil {
		response.RespondBadRequest(w, err.Error())
		return
	}

	stats, err := h.service.GetFeedbackStats(r.Context(), userID, filters.Since)
	if err != nil {
		respondServiceError(w, r, err)
		return
	}

	response.RespondSuccess(w, http.StatusOK, stats)
}
