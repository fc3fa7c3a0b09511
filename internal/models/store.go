package models

// Tables written through the Store.
const (
	TableResponseEnhancements = "response_enhancements"
	TableEnhancementFeedback  = "enhancement_feedback"
	TableFeedbackInsights     = "feedback_insights"
	TableUserPatternStrength  = "user_pattern_strength"
	TablePatternDetections    = "pattern_detections"
)

// Record is a single row keyed by column name.
type Record map[string]any
