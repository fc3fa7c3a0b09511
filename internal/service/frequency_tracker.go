package service

import (
	"sync"
	"time"
)

// enhancementWindow is the rolling window for the per-user enhancement cap.
const enhancementWindow = time.Hour

// FrequencyTracker remembers when each user last received enhancements. It is process-local.
type FrequencyTracker struct {
	window time.Duration
	now    func() time.Time

	mu         sync.Mutex
	timestamps map[string][]time.Time
}

// NewFrequencyTracker creates a tracker with a one-hour rolling window.
func NewFrequencyTracker() *FrequencyTracker {
	return &FrequencyTracker{
		window:     enhancementWindow,
		now:        time.Now,
		timestamps: make(map[string][]time.Time),
	}
}

// Recent returns the user's timestamps inside the window. Older entries are dropped.
func (t *FrequencyTracker) Recent(userID string) []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.prune(userID, t.now())

	out := make([]time.Time, len(recent))
	copy(out, recent)

	return out
}

// Record stores an enhancement for userID at the current time.
func (t *FrequencyTracker) Record(userID string) {
	t.Reserve(userID, -1)
}

// Reserve records an enhancement for userID unless more than limit are already inside the
// window. A negative limit always records. The returned time identifies the entry for Release.
func (t *FrequencyTracker) Reserve(userID string, limit int) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	recent := t.prune(userID, now)
	if limit >= 0 && len(recent) > limit {
		return time.Time{}, false
	}

	t.timestamps[userID] = append(recent, now)

	return now, true
}

// Release removes one entry recorded at ts by Reserve.
func (t *FrequencyTracker) Release(userID string, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	timestamps := t.timestamps[userID]

	for i, v := range timestamps {
		if v.Equal(ts) {
			t.timestamps[userID] = append(timestamps[:i], timestamps[i+1:]...)

			break
		}
	}

	if len(t.timestamps[userID]) == 0 {
		delete(t.timestamps, userID)
	}
}

// prune drops timestamps older than the window; the caller holds mu.
func (t *FrequencyTracker) prune(userID string, now time.Time) []time.Time {
	cutoff := now.Add(-t.window)
	timestamps := t.timestamps[userID]

	filtered := timestamps[:0]

	for _, ts := range timestamps {
		if ts.After(cutoff) {
			filtered = append(filtered, ts)
		}
	}

	if len(filtered) == 0 {
		delete(t.timestamps, userID)

		return nil
	}

	t.timestamps[userID] = filtered

	return filtered
}
