package huggingface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelwise/keel/internal/keelerrors"
	"github.com/keelwise/keel/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(ClientOptions{
		BaseURL:        srv.URL,
		APIKey:         "hf_test",
		IntentModel:    "intent-model",
		SentimentModel: "sentiment-model",
		EntityModel:    "ner-model",
		EmbeddingModel: "embed-model",
		RetryMax:       1,
	})
}

func TestClassifyIntent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/intent-model", r.URL.Path)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))

		var body zeroShotRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"procrastination", "scheduling"}, body.Parameters.CandidateLabels)
		assert.True(t, body.Parameters.MultiLabel)

		_, _ = w.Write([]byte(`{"sequence":"x","labels":["procrastination","scheduling"],"scores":[0.91,0.12]}`))
	})

	got, err := client.ClassifyIntent(context.Background(), "I'll do it later", []string{"procrastination", "scheduling"})
	require.NoError(t, err)
	assert.Equal(t, "procrastination", got.Primary)
	assert.InDelta(t, 0.91, got.Confidence, 1e-9)
	assert.Equal(t, Name, got.Provider)
	assert.Len(t, got.Labels, 2)
}

func TestAnalyzeSentiment(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantLabel string
		wantScore float64
	}{
		{
			name:      "star ratings nested",
			body:      `[[{"label":"1 star","score":0.7},{"label":"2 stars","score":0.2}]]`,
			wantLabel: models.SentimentNegative,
			wantScore: 0.2,
		},
		{
			name:      "three stars is neutral",
			body:      `[{"label":"3 stars","score":0.5},{"label":"5 stars","score":0.1}]`,
			wantLabel: models.SentimentNeutral,
			wantScore: 0.5,
		},
		{
			name:      "polarity label keeps model score",
			body:      `[[{"label":"POSITIVE","score":0.93}]]`,
			wantLabel: models.SentimentPositive,
			wantScore: 0.93,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})

			got, err := client.AnalyzeSentiment(context.Background(), "the generator died again")
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
		})
	}
}

func TestExtractEntities(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[
			{"entity_group":"LOC","score":0.99,"word":" Annapolis","start":20,"end":29},
			{"entity_group":"PER","score":0.95,"word":"Dana","start":0,"end":4}
		]`))
	})

	got, err := client.ExtractEntities(context.Background(), "Dana is docking in Annapolis")
	require.NoError(t, err)
	require.Len(t, got.Groups["LOC"], 1)
	assert.Equal(t, "Annapolis", got.Groups["LOC"][0].Text)
	assert.Equal(t, 20, got.Groups["LOC"][0].Start)
	assert.Len(t, got.Groups["PER"], 1)
}

func TestEmbed(t *testing.T) {
	t.Run("flat vector", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[0.1,0.2,0.3]`))
		})

		got, err := client.Embed(context.Background(), "hull")
		require.NoError(t, err)
		assert.Equal(t, 3, got.Dimension)
	})

	t.Run("token vectors are mean pooled", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[[1,2],[3,4]]`))
		})

		got, err := client.Embed(context.Background(), "hull")
		require.NoError(t, err)
		assert.Equal(t, []float32{2, 3}, got.Vector)
	})
}

func TestErrors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		client := NewClient(ClientOptions{})

		_, err := client.AnalyzeSentiment(context.Background(), "hello")
		assert.ErrorIs(t, err, keelerrors.ErrProviderUnavailable)
	})

	t.Run("generation unsupported", func(t *testing.T) {
		_, err := NewClient(ClientOptions{APIKey: "k"}).Generate(context.Background(), models.Prompt{User: "x"})
		assert.ErrorIs(t, err, keelerrors.ErrProviderUnavailable)
	})

	t.Run("empty input", func(t *testing.T) {
		client := newTestClient(t, func(http.ResponseWriter, *http.Request) {
			t.Error("no request expected")
		})

		_, err := client.Embed(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrEmptyInput)
	})

	t.Run("client error status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":"Model is gated"}`, http.StatusForbidden)
		})

		_, err := client.ClassifyIntent(context.Background(), "hi", []string{"a"})
		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "403"), err.Error())
	})

	t.Run("oversized body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("[", maxResponseBytes+1)))
		})

		_, err := client.Embed(context.Background(), "hull")
		assert.ErrorIs(t, err, ErrResponseTooLarge)
	})

	t.Run("server error is retried then fails", func(t *testing.T) {
		calls := 0
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			calls++

			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := client.AnalyzeSentiment(context.Background(), "hi")
		require.Error(t, err)
		assert.Equal(t, 2, calls)
	})
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "gated", n: 10, want: "gated"},
		{name: "exact", in: "gated", n: 5, want: "gated"},
		{name: "ascii", in: "model is gated", n: 5, want: "model..."},
		{name: "multibyte kept whole", in: "héllo wörld", n: 2, want: "hé..."},
		{name: "cjk", in: "模型不可用", n: 3, want: "模型不..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}
