package models

import "time"

// UsageEvent is emitted for every analysis and generation call.
type UsageEvent struct {
	Service  string
	Provider string
	Model    string
	Duration time.Duration
	Success  bool
}
