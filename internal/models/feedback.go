package models

import (
	"time"

	"github.com/google/uuid"
)

// StrengthIncreased is the only strength level the learning engine writes today.
const StrengthIncreased = "increased"

// FeedbackInput carries the reaction flags.
type FeedbackInput struct {
	Engaged        bool `json:"engaged"`
	Helpful        bool `json:"helpful"`
	ActionTaken    bool `json:"action_taken"`
	BusinessImpact bool `json:"business_impact"`
}

// UserPatternStrength is one row per user.
type UserPatternStrength struct {
	UserID      string    `json:"user_id"`
	Strength    string    `json:"strength"`
	LastUpdated time.Time `json:"last_updated"`
}

// FeedbackResult reports which writes landed. Success reflects the raw feedback row only.
type FeedbackResult struct {
	Success         bool       `json:"success"`
	FeedbackID      *uuid.UUID `json:"feedback_id,omitempty"`
	InsightRecorded bool       `json:"insight_recorded"`
	StrengthUpdated bool       `json:"strength_updated"`
}

// FeedbackStats aggregates a user's feedback rows.
type FeedbackStats struct {
	UserID         string `json:"user_id"`
	Total          int    `json:"total"`
	Engaged        int    `json:"engaged"`
	Helpful        int    `json:"helpful"`
	ActionTaken    int    `json:"action_taken"`
	BusinessImpact int    `json:"business_impact"`
}

// FeedbackRequest is the body of POST /v1/feedback.
type FeedbackRequest struct {
	UserID         string `json:"user_id" validate:"required,max=255,no_null_bytes"`
	EnhancementID  string `json:"enhancement_id" validate:"required,max=255,no_null_bytes"`
	Engaged        bool   `json:"engaged"`
	Helpful        bool   `json:"helpful"`
	ActionTaken    bool   `json:"action_taken"`
	BusinessImpact bool   `json:"business_impact"`
}

// FeedbackStatsFilters are the query parameters of GET /v1/feedback/stats/{user_id}.
type FeedbackStatsFilters struct {
	Since *time.Time `form:"since"`
}

