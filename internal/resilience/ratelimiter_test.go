package resilience

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelwise/keel/internal/keelerrors"
)

func TestRateLimiter_RejectsOverBudgetUntilWindowRolls(t *testing.T) {
	clock := newFakeClock()
	rl := NewRateLimiter(3, time.Minute, WithLimiterClock(clock.Now))

	for i := range 3 {
		require.NoError(t, rl.Consume("huggingface"), "call %d", i+1)
	}

	err := rl.Consume("huggingface")
	require.ErrorIs(t, err, keelerrors.ErrRateLimited)
	assert.Equal(t, 0, rl.Remaining("huggingface"))

	clock.Advance(59 * time.Second)
	require.ErrorIs(t, rl.Consume("huggingface"), keelerrors.ErrRateLimited)

	clock.Advance(time.Second)
	require.NoError(t, rl.Consume("huggingface"))
	assert.Equal(t, 2, rl.Remaining("huggingface"))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	require.NoError(t, rl.Consume("openai"))
	require.NoError(t, rl.Consume("google"))
	assert.ErrorIs(t, rl.Consume("openai"), keelerrors.ErrRateLimited)
}

func TestRateLimiter_ConcurrentConsumeNeverOverspends(t *testing.T) {
	rl := NewRateLimiter(50, time.Hour)

	var (
		wg      sync.WaitGroup
		allowed atomic.Int32
	)

	for range 200 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if rl.Consume("openai") == nil {
				allowed.Add(1)
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(50), allowed.Load())
}
