package service

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestTracker(clock *fakeClock) *FrequencyTracker {
	tr := NewFrequencyTracker()
	tr.now = clock.Now

	return tr
}

func TestFrequencyTracker(t *testing.T) {
	t.Run("records per user", func(t *testing.T) {
		clock := newFakeClock()
		tr := newTestTracker(clock)

		tr.Record("u1")
		tr.Record("u1")
		tr.Record("u2")

		assert.Len(t, tr.Recent("u1"), 2)
		assert.Len(t, tr.Recent("u2"), 1)
		assert.Empty(t, tr.Recent("u3"))
	})

	t.Run("prunes entries older than an hour on read", func(t *testing.T) {
		clock := newFakeClock()
		tr := newTestTracker(clock)

		tr.Record("u1")
		clock.Advance(40 * time.Minute)
		tr.Record("u1")
		clock.Advance(21 * time.Minute)

		assert.Len(t, tr.Recent("u1"), 1)

		clock.Advance(time.Hour)

		assert.Empty(t, tr.Recent("u1"))
		assert.NotContains(t, tr.timestamps, "u1")
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		tr := newTestTracker(newFakeClock())
		tr.Record("u1")

		recent := tr.Recent("u1")
		recent[0] = time.Time{}

		assert.False(t, tr.Recent("u1")[0].IsZero())
	})

	t.Run("concurrent use", func(t *testing.T) {
		tr := NewFrequencyTracker()

		var wg sync.WaitGroup
		for range 50 {
			wg.Go(func() {
				tr.Record("u1")
				_ = tr.Recent("u1")
			})
		}

		wg.Wait()

		assert.Len(t, tr.Recent("u1"), 50)
	})
}

func TestFrequencyTracker_Reserve(t *testing.T) {
	t.Run("refuses once more than the limit are recorded", func(t *testing.T) {
		tr := newTestTracker(newFakeClock())

		for range 4 {
			_, ok := tr.Reserve("u1", 3)
			assert.True(t, ok)
		}

		_, ok := tr.Reserve("u1", 3)
		assert.False(t, ok)
		assert.Len(t, tr.Recent("u1"), 4)
	})

	t.Run("negative limit always records", func(t *testing.T) {
		tr := newTestTracker(newFakeClock())

		for range 6 {
			_, ok := tr.Reserve("u1", -1)
			assert.True(t, ok)
		}

		assert.Len(t, tr.Recent("u1"), 6)
	})

	t.Run("release removes the reserved entry", func(t *testing.T) {
		clock := newFakeClock()
		tr := newTestTracker(clock)

		tr.Record("u1")
		clock.Advance(time.Minute)

		ts, ok := tr.Reserve("u1", 3)
		assert.True(t, ok)

		tr.Release("u1", ts)
		assert.Len(t, tr.Recent("u1"), 1)

		tr.Release("u1", tr.Recent("u1")[0])
		assert.NotContains(t, tr.timestamps, "u1")
	})

	t.Run("concurrent reservations respect the limit", func(t *testing.T) {
		tr := NewFrequencyTracker()

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			granted int
		)

		for range 50 {
			wg.Go(func() {
				if _, ok := tr.Reserve("u1", 3); ok {
					mu.Lock()
					granted++
					mu.Unlock()
				}
			})
		}

		wg.Wait()

		assert.Equal(t, 4, granted)
	})
}
