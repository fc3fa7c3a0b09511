package models

// Pattern names, in taxonomy declaration order.
const (
	PatternProcrastination   = "procrastination"
	PatternPerfectionism     = "perfectionism"
	PatternOverwhelm         = "overwhelm"
	PatternAcuteFrustration  = "acute_frustration"
	PatternDecisionParalysis = "decision_paralysis"
	PatternBurnout           = "burnout"
)

// Pattern priorities.
const (
	PriorityNormal   = "normal"
	PriorityCritical = "critical"
)

// Pattern is a behavioral signal detected in a message.
type Pattern struct {
	Name        string   `json:"type"`
	Confidence  float64  `json:"confidence"`
	Indicators  []string `json:"indicators"`
	Description string   `json:"description"`
	Suggestions []string `json:"suggestions"`
	Priority    string   `json:"priority"`
}

// IsCritical reports whether the pattern bypasses the enhancement frequency cap.
func (p *Pattern) IsCritical() bool {
	return p != nil && (p.Priority == PriorityCritical || p.Name == PatternAcuteFrustration)
}

// UserContext is the snapshot derived from a detection.
type UserContext struct {
	PrimaryPattern   string   `json:"primary_pattern,omitempty"`
	Confidence       float64  `json:"confidence"`
	DetectedPatterns []string `json:"detected_patterns"`
	EnergyLevel      string   `json:"energy_level,omitempty"`
	BusinessType     string   `json:"business_type,omitempty"`
}

// PatternData is the output of pattern detection. Patterns are sorted by confidence, descending.
type PatternData struct {
	Patterns       []Pattern        `json:"patterns"`
	Analysis       *AnalysisSummary `json:"analysis,omitempty"`
	UserContext    UserContext      `json:"user_context"`
	ProcessingTime int64            `json:"processing_time_ms"`
}

// Top returns the highest-confidence pattern or nil.
func (d *PatternData) Top() *Pattern {
	if d == nil || len(d.Patterns) == 0 {
		return nil
	}

	return &d.Patterns[0]
}

// DetectPatternsRequest is the body of POST /v1/patterns.
type DetectPatternsRequest struct {
	UserID  string         `json:"user_id" validate:"required,max=255,no_null_bytes"`
	Message string         `json:"message" validate:"required,max=8000,no_null_bytes"`
	Context RequestContext `json:"context"`
}
