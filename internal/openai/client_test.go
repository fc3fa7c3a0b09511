package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelwise/keel/internal/keelerrors"
	"github.com/keelwise/keel/internal/models"
)

func chatCompletion(content string) string {
	b, _ := json.Marshal(content)

	return fmt.Sprintf(`{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-4o-mini-2024-07-18",
		"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":%s}}]}`, b)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient("sk-test", WithBaseURL(srv.URL+"/"))
}

func TestGenerate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		_, _ = w.Write([]byte(chatCompletion("Start with the bilge pump today.")))
	})

	got, err := client.Generate(context.Background(), models.Prompt{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "Start with the bilge pump today.", got.Response)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", got.Model)
	assert.Equal(t, Name, got.Provider)
}

func TestClassifyIntent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatCompletion("```json\n{\"procrastination\":0.82,\"scheduling\":0.1,\"unknown\":0.99}\n```")))
	})

	got, err := client.ClassifyIntent(context.Background(), "maybe tomorrow", []string{"procrastination", "scheduling"})
	require.NoError(t, err)
	assert.Equal(t, "procrastination", got.Primary)
	assert.InDelta(t, 0.82, got.Confidence, 1e-9)
	assert.NotContains(t, got.Labels, "unknown")
}

func TestClassifyIntent_Unparseable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatCompletion("I think it is procrastination.")))
	})

	_, err := client.ClassifyIntent(context.Background(), "maybe tomorrow", []string{"procrastination"})
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestAnalyzeSentiment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(chatCompletion(`{"label":"NEGATIVE","score":0.15}`)))
	})

	got, err := client.AnalyzeSentiment(context.Background(), "the engine died again")
	require.NoError(t, err)
	assert.Equal(t, models.SentimentNegative, got.Label)
	assert.InDelta(t, 0.15, got.Score, 1e-9)
}

func TestEmbed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		_, _ = w.Write([]byte(`{"object":"list","model":"text-embedding-3-small",
			"data":[{"object":"embedding","index":0,"embedding":[0.25,-0.5,1]}],
			"usage":{"prompt_tokens":3,"total_tokens":3}}`))
	})

	got, err := client.Embed(context.Background(), "hull cleaning")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, got.Vector)
	assert.Equal(t, 3, got.Dimension)
}

func TestUnavailable(t *testing.T) {
	client := NewClient("")

	_, err := client.Generate(context.Background(), models.Prompt{User: "u"})
	require.ErrorIs(t, err, keelerrors.ErrProviderUnavailable)

	_, err = client.Embed(context.Background(), "x")
	require.ErrorIs(t, err, keelerrors.ErrProviderUnavailable)

	_, err = NewClient("sk").ExtractEntities(context.Background(), "x")
	require.ErrorIs(t, err, keelerrors.ErrProviderUnavailable)
}

func TestServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	})

	_, err := client.Generate(context.Background(), models.Prompt{User: "u"})
	require.Error(t, err)
}
