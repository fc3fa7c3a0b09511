package models

// Energy levels reported by the chat layer.
const (
	EnergyLow    = "low"
	EnergyMedium = "medium"
	EnergyHigh   = "high"
)

// RequestContext is the caller-supplied context that travels with every message.
type RequestContext struct {
	UserID          string          `json:"user_id,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	BusinessType    string          `json:"business_type,omitempty" validate:"omitempty,max=100,no_null_bytes"`
	EnergyLevel     string          `json:"energy_level,omitempty" validate:"omitempty,oneof=low medium high"`
	SessionID       string          `json:"session_id,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	TrustLevel      int             `json:"trust_level,omitempty" validate:"gte=0,lte=10"`
	Intents         []string        `json:"intents,omitempty"`
	UserName        string          `json:"user_name,omitempty" validate:"omitempty,max=255,no_null_bytes"`
	UserPreferences UserPreferences `json:"user_preferences"`
}

// UserPreferences are per-user switches.
type UserPreferences struct {
	DisableEnhancements bool `json:"disable_enhancements,omitempty"`
}

// LowEnergy reports whether the user said they are low on energy.
func (c *RequestContext) LowEnergy() bool {
	return c != nil && c.EnergyLevel == EnergyLow
}

// HighTrust reports a trust level above 8.
func (c *RequestContext) HighTrust() bool {
	return c != nil && c.TrustLevel > 8
}
