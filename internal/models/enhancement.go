package models

import "github.com/google/uuid"

// Formatting styles.
const (
	StyleUrgent       = "urgent"
	StyleGentle       = "gentle"
	StyleDirect       = "direct"
	StyleMotivational = "motivational"
	StyleCallout      = "callout"
)

// GenerationResult is what the orchestrator returns for a generative rewrite.
type GenerationResult struct {
	Enhanced bool   `json:"enhanced"`
	Response string `json:"response"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// EnhancementResponse is one enhancement attempt as returned to the caller.
// Enhanced is true only when Response is non-empty and differs from the original.
type EnhancementResponse struct {
	ID             uuid.UUID `json:"id"`
	Enhanced       bool      `json:"enhanced"`
	Response       string    `json:"response"`
	Pattern        *Pattern  `json:"pattern,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	Model          string    `json:"model,omitempty"`
	Style          string    `json:"style,omitempty"`
	ProcessingTime int64     `json:"processing_time_ms"`
	Reason         string    `json:"reason,omitempty"`
}

// EnhanceRequest is the body of POST /v1/enhance.
type EnhanceRequest struct {
	OriginalResponse string         `json:"original_response" validate:"required,max=20000,no_null_bytes"`
	PatternData      PatternData    `json:"pattern_data"`
	Context          RequestContext `json:"context"`
}

// PipelineRequest is the body of POST /v1/pipeline.
type PipelineRequest struct {
	UserID           string         `json:"user_id" validate:"required,max=255,no_null_bytes"`
	Message          string         `json:"message" validate:"required,max=8000,no_null_bytes"`
	OriginalResponse string         `json:"original_response" validate:"required,max=20000,no_null_bytes"`
	Context          RequestContext `json:"context"`
}

// PipelineResponse combines detection and enhancement.
type PipelineResponse struct {
	Patterns    *PatternData         `json:"patterns"`
	Enhancement *EnhancementResponse `json:"enhancement"`
}

// Prompt is a structured generation request.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}
