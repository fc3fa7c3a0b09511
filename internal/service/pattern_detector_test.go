package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/keelwise/keel/internal/keelerrors"
	"github.com/keelwise/keel/internal/models"
	"github.com/keelwise/keel/internal/repository"
)

func patternNames(patterns []models.Pattern) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = p.Name
	}

	return out
}

func findPattern(patterns []models.Pattern, name string) *models.Pattern {
	for i := range patterns {
		if patterns[i].Name == name {
			return &patterns[i]
		}
	}

	return nil
}

func TestScorePatterns(t *testing.T) {
	t.Run("clamps to one", func(t *testing.T) {
		analysis := &models.AnalysisResult{
			Intent:    &models.IntentResult{Primary: models.PatternAcuteFrustration, Confidence: 0.9},
			Sentiment: &models.SentimentResult{Score: 0.1},
		}

		got := ScorePatterns("I'm fed up, it's broken again", analysis, &models.RequestContext{BusinessType: BusinessCharter}, 0.3)

		require.NotEmpty(t, got)
		assert.Equal(t, models.PatternAcuteFrustration, got[0].Name)
		assert.InDelta(t, 1.0, got[0].Confidence, 1e-9)
		assert.Equal(t, models.PriorityCritical, got[0].Priority)
		assert.Contains(t, got[0].Indicators, indicatorIntent)
		assert.Contains(t, got[0].Indicators, flagBusinessType)
	})

	t.Run("keyword alone qualifies", func(t *testing.T) {
		got := ScorePatterns("maybe later", nil, nil, 0.3)

		require.Len(t, got, 1)
		assert.Equal(t, models.PatternProcrastination, got[0].Name)
		assert.InDelta(t, 0.3, got[0].Confidence, 1e-9)
	})

	t.Run("drops patterns below threshold", func(t *testing.T) {
		analysis := &models.AnalysisResult{Sentiment: &models.SentimentResult{Score: 0.35}}

		got := ScorePatterns("the engine is fine", analysis, nil, 0.3)

		// sentiment bonus alone (0.2 to 0.25) never reaches 0.3
		assert.Empty(t, got)
	})

	t.Run("sorted descending and stable on ties", func(t *testing.T) {
		analysis := &models.AnalysisResult{
			Intent: &models.IntentResult{Primary: models.PatternOverwhelm, Confidence: 0.8},
		}

		got := ScorePatterns("maybe it has to be perfect, I'm drowning", analysis, nil, 0.3)

		assert.Equal(t, []string{
			models.PatternOverwhelm,
			models.PatternProcrastination,
			models.PatternPerfectionism,
		}, patternNames(got))

		for i := 1; i < len(got); i++ {
			assert.GreaterOrEqual(t, got[i-1].Confidence, got[i].Confidence)
		}
	})

	t.Run("context flags add up", func(t *testing.T) {
		rc := &models.RequestContext{EnergyLevel: models.EnergyLow, BusinessType: BusinessCharter}

		got := ScorePatterns("so many jobs", nil, rc, 0.3)

		overwhelm := findPattern(got, models.PatternOverwhelm)
		require.NotNil(t, overwhelm)
		assert.InDelta(t, 0.3+0.15+0.1, overwhelm.Confidence, 1e-9)
		assert.Contains(t, overwhelm.Indicators, flagLowEnergy)
	})

	t.Run("confidence stays in range", func(t *testing.T) {
		analysis := &models.AnalysisResult{
			Intent:    &models.IntentResult{Primary: models.PatternBurnout, Confidence: 1},
			Sentiment: &models.SentimentResult{Score: 0},
		}
		rc := &models.RequestContext{EnergyLevel: models.EnergyLow, BusinessType: BusinessCharter}

		for _, p := range ScorePatterns("exhausted, burned out, no energy, so many things, maybe tomorrow", analysis, rc, 0) {
			assert.GreaterOrEqual(t, p.Confidence, 0.0)
			assert.LessOrEqual(t, p.Confidence, 1.0)
		}
	})
}

func TestPatternDetector_ProcrastinationWithoutProviders(t *testing.T) {
	store := repository.NewMemoryStore()
	detector := NewPatternDetector(PatternDetectorParams{
		Analyzer: NewMLService(MLServiceParams{FallbackEnabled: true}),
		Store:    store,
	})

	data, err := detector.DetectPatterns(context.Background(), "u1", "I'll deal with it tomorrow, maybe", models.RequestContext{})
	require.NoError(t, err)

	p := findPattern(data.Patterns, models.PatternProcrastination)
	require.NotNil(t, p)
	assert.GreaterOrEqual(t, p.Confidence, 0.3)
	assert.Equal(t, models.PatternProcrastination, data.UserContext.PrimaryPattern)
	assert.Equal(t, patternNames(data.Patterns), data.UserContext.DetectedPatterns)
	require.NotNil(t, data.Analysis)
	assert.Equal(t, models.PatternProcrastination, data.Analysis.Intent.Primary)

	rows, err := store.List(context.Background(), models.TablePatternDetections, models.Record{"user_id": "u1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, data.UserContext.DetectedPatterns, rows[0]["patterns"])
	assert.NotContains(t, rows[0], "embedding")
	assert.Len(t, rows[0]["message_hash"], 64)
}

func TestPatternDetector_StoresEmbedding(t *testing.T) {
	store := repository.NewMemoryStore()
	detector := NewPatternDetector(PatternDetectorParams{
		Analyzer: NewMLService(MLServiceParams{Providers: []ProviderGuard{{Provider: healthyProvider("huggingface")}}}),
		Store:    store,
	})

	_, err := detector.DetectPatterns(context.Background(), "u1", "too much going on", models.RequestContext{})
	require.NoError(t, err)

	rows, err := store.List(context.Background(), models.TablePatternDetections, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []float32{0.1, 0.2}, rows[0]["embedding"])
}

func TestPatternDetector_StoreFailureIsSwallowed(t *testing.T) {
	store := new(MockStore)
	store.On("Insert", mock.Anything, models.TablePatternDetections, mock.Anything).Return(errors.New("connection reset"))

	detector := NewPatternDetector(PatternDetectorParams{
		Analyzer: NewMLService(MLServiceParams{FallbackEnabled: true}),
		Store:    store,
	})

	data, err := detector.DetectPatterns(context.Background(), "u1", "I'm overwhelmed", models.RequestContext{})
	require.NoError(t, err)
	assert.NotEmpty(t, data.Patterns)
	store.AssertExpectations(t)
}

func TestPatternDetector_NoProviders(t *testing.T) {
	detector := NewPatternDetector(PatternDetectorParams{Analyzer: NewMLService(MLServiceParams{})})

	_, err := detector.DetectPatterns(context.Background(), "u1", "hello", models.RequestContext{})
	assert.ErrorIs(t, err, keelerrors.ErrNoProviders)
}
