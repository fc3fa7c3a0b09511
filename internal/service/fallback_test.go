package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelwise/keel/internal/models"
)

func TestFallbackIntent(t *testing.T) {
	tests := []struct {
		message    string
		want       string
		confidence float64
	}{
		{"I'll deal with it tomorrow, maybe", models.PatternProcrastination, 0.6},
		{"It has to be flawless before the survey", models.PatternPerfectionism, 0.6},
		{"I'm drowning in jobs", models.PatternOverwhelm, 0.6},
		{"The watermaker is broken again", models.PatternAcuteFrustration, 0.6},
		{"Can I book a slot next month?", IntentScheduling, 0.6},
		{"There is a leak near the stern gland", IntentMaintenanceRequest, 0.6},
		{"What antifouling do you recommend?", IntentGeneralInquiry, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := fallbackIntent(tt.message)

			assert.Equal(t, tt.want, got.Primary)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
			assert.Equal(t, FallbackProvider, got.Provider)
			assert.InDelta(t, tt.confidence, got.Labels[tt.want], 1e-9)
		})
	}
}

func TestFallbackSentiment(t *testing.T) {
	tests := []struct {
		message string
		label   string
		score   float64
	}{
		{"Thanks, that was great", models.SentimentPositive, 0.8},
		{"The pump is broken and I'm worried", models.SentimentNegative, 0.2},
		{"The boat is in slip 12", models.SentimentNeutral, 0.5},
		{"Good news but a bad leak", models.SentimentNegative, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got := fallbackSentiment(tt.message)

			assert.Equal(t, tt.label, got.Label)
			assert.InDelta(t, tt.score, got.Score, 1e-9)
		})
	}
}

func TestFallbackEntities(t *testing.T) {
	msg := "The generator service on Friday cost $1,200.50 and took 3 hours; the bilge pump is next, due 12/05."

	got := fallbackEntities(msg)
	require.NotNil(t, got)

	texts := func(group string) []string {
		var out []string
		for _, e := range got.Groups[group] {
			out = append(out, e.Text)
			assert.Equal(t, e.Text, msg[e.Start:e.End])
		}

		return out
	}

	assert.Equal(t, []string{"$1,200.50"}, texts(EntityMoney))
	assert.Equal(t, []string{"Friday", "12/05"}, texts(EntityDate))
	assert.Equal(t, []string{"3 hours"}, texts(EntityDuration))
	assert.Equal(t, []string{"generator", "bilge pump"}, texts(EntityPart))
}
