package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keelwise/keel/internal/keelerrors"
	"github.com/keelwise/keel/internal/models"
	"github.com/keelwise/keel/internal/repository"
)

func newTestLearningEngine(store Store) (*LearningEngine, *fakeClock) {
	clock := newFakeClock()
	l := NewLearningEngine(store, nil)
	l.now = clock.Now

	return l, clock
}

func TestLearningEngine_ProcessFeedback(t *testing.T) {
	ctx := context.Background()

	t.Run("helpful and acted on increases strength", func(t *testing.T) {
		store := repository.NewMemoryStore()
		l, clock := newTestLearningEngine(store)

		res := l.ProcessFeedback(ctx, "u1", "e1", models.FeedbackInput{Helpful: true, ActionTaken: true})

		assert.True(t, res.Success)
		assert.True(t, res.InsightRecorded)
		assert.True(t, res.StrengthUpdated)
		require.NotNil(t, res.FeedbackID)

		strength, err := l.GetPatternStrength(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, models.StrengthIncreased, strength.Strength)
		assert.Equal(t, clock.Now(), strength.LastUpdated)

		insights, err := store.List(ctx, models.TableFeedbackInsights, models.Record{"user_id": "u1"})
		require.NoError(t, err)
		require.Len(t, insights, 1)
		assert.Equal(t, *res.FeedbackID, insights[0]["feedback_id"])
		assert.Equal(t, true, insights[0]["led_to_action"])
		assert.Equal(t, false, insights[0]["was_engaging"])
	})

	t.Run("second positive feedback refreshes the same row", func(t *testing.T) {
		store := repository.NewMemoryStore()
		l, clock := newTestLearningEngine(store)

		l.ProcessFeedback(ctx, "u1", "e1", models.FeedbackInput{Helpful: true, ActionTaken: true})
		clock.Advance(time.Hour)
		l.ProcessFeedback(ctx, "u1", "e2", models.FeedbackInput{Helpful: true, ActionTaken: true})

		rows, err := store.List(ctx, models.TableUserPatternStrength, models.Record{"user_id": "u1"})
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, clock.Now(), rows[0]["last_updated"])
	})

	t.Run("helpful without action leaves strength alone", func(t *testing.T) {
		store := repository.NewMemoryStore()
		l, _ := newTestLearningEngine(store)

		res := l.ProcessFeedback(ctx, "u1", "e1", models.FeedbackInput{Engaged: true, Helpful: true})

		assert.True(t, res.Success)
		assert.False(t, res.StrengthUpdated)

		_, err := l.GetPatternStrength(ctx, "u1")
		assert.ErrorIs(t, err, keelerrors.ErrNotFound)
	})

	t.Run("failed feedback write does not stop the others", func(t *testing.T) {
		store := new(MockStore)
		store.On("Insert", mock.Anything, models.TableEnhancementFeedback, mock.Anything).Return(errors.New("connection reset"))
		store.On("Insert", mock.Anything, models.TableFeedbackInsights, mock.Anything).Return(nil)
		store.On("Upsert", mock.Anything, models.TableUserPatternStrength, "user_id", mock.Anything).Return(nil)

		l, _ := newTestLearningEngine(store)

		res := l.ProcessFeedback(ctx, "u1", "e1", models.FeedbackInput{Helpful: true, ActionTaken: true})

		assert.False(t, res.Success)
		assert.Nil(t, res.FeedbackID)
		assert.True(t, res.InsightRecorded)
		assert.True(t, res.StrengthUpdated)
		store.AssertExpectations(t)
	})

	t.Run("failed insight write keeps success", func(t *testing.T) {
		store := new(MockStore)
		store.On("Insert", mock.Anything, models.TableEnhancementFeedback, mock.Anything).Return(nil)
		store.On("Insert", mock.Anything, models.TableFeedbackInsights, mock.Anything).Return(errors.New("timeout"))

		l, _ := newTestLearningEngine(store)

		res := l.ProcessFeedback(ctx, "u1", "e1", models.FeedbackInput{Helpful: true})

		assert.True(t, res.Success)
		assert.False(t, res.InsightRecorded)
		store.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLearningEngine_GetFeedbackStats(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	l, clock := newTestLearningEngine(store)

	l.ProcessFeedback(ctx, "u1", "e1", models.FeedbackInput{Engaged: true})
	clock.Advance(48 * time.Hour)
	cutoff := clock.Now()
	l.ProcessFeedback(ctx, "u1", "e2", models.FeedbackInput{Engaged: true, Helpful: true, ActionTaken: true})
	l.ProcessFeedback(ctx, "u1", "e3", models.FeedbackInput{BusinessImpact: true})
	l.ProcessFeedback(ctx, "u2", "e4", models.FeedbackInput{Helpful: true})

	t.Run("all time", func(t *testing.T) {
		stats, err := l.GetFeedbackStats(ctx, "u1", nil)
		require.NoError(t, err)

		assert.Equal(t, &models.FeedbackStats{
			UserID: "u1", Total: 3, Engaged: 2, Helpful: 1, ActionTaken: 1, BusinessImpact: 1,
		}, stats)
	})

	t.Run("since", func(t *testing.T) {
		stats, err := l.GetFeedbackStats(ctx, "u1", &cutoff)
		require.NoError(t, err)

		assert.Equal(t, 2, stats.Total)
		assert.Equal(t, 1, stats.Engaged)
	})

	t.Run("unknown user", func(t *testing.T) {
		stats, err := l.GetFeedbackStats(ctx, "nobody", nil)
		require.NoError(t, err)
		assert.Zero(t, stats.Total)
	})

	t.Run("store error", func(t *testing.T) {
		failing := new(MockStore)
		failing.On("List", mock.Anything, models.TableEnhancementFeedback, mock.Anything).Return(nil, errors.New("boom"))

		_, err := NewLearningEngine(failing, nil).GetFeedbackStats(ctx, "u1", nil)
		assert.Error(t, err)
	})
}
