package googleai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keelwise/keel/internal/keelerrors"
	"github.com/keelwise/keel/internal/models"
)

func TestClient_WithoutKeyIsUnavailable(t *testing.T) {
	client, err := NewClient(context.Background(), "")
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), models.Prompt{User: "rewrite this"})
	require.ErrorIs(t, err, keelerrors.ErrProviderUnavailable)

	_, err = client.Embed(context.Background(), "hull")
	require.ErrorIs(t, err, keelerrors.ErrProviderUnavailable)
}

func TestClient_UnsupportedCapabilities(t *testing.T) {
	client, err := NewClient(context.Background(), "")
	require.NoError(t, err)

	_, err = client.ClassifyIntent(context.Background(), "x", []string{"a"})
	assert.ErrorIs(t, err, keelerrors.ErrProviderUnavailable)

	_, err = client.AnalyzeSentiment(context.Background(), "x")
	assert.ErrorIs(t, err, keelerrors.ErrProviderUnavailable)

	_, err = client.ExtractEntities(context.Background(), "x")
	assert.ErrorIs(t, err, keelerrors.ErrProviderUnavailable)
}

func TestClient_Options(t *testing.T) {
	client, err := NewClient(context.Background(), "", WithModel("gemini-2.5-pro"), WithEmbeddingModel(""), WithDimensions(768))
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", client.model)
	assert.Equal(t, defaultEmbeddingModel, client.embeddingModel)
	assert.Equal(t, 768, client.dimensions)
}

func TestClient_EmptyInput(t *testing.T) {
	client, err := NewClient(context.Background(), "test-key")
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "  ")
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = client.Generate(context.Background(), models.Prompt{System: "only system"})
	require.ErrorIs(t, err, ErrEmptyInput)
}

func newEmbedServer(t *testing.T, values string) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings":[{"values":` + values + `}]}`))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestClient_Embed(t *testing.T) {
	t.Run("reduced dimensions are normalized", func(t *testing.T) {
		srv := newEmbedServer(t, "[3,4]")

		client, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL), WithDimensions(2))
		require.NoError(t, err)

		res, err := client.Embed(context.Background(), "bilge pump")
		require.NoError(t, err)

		assert.Equal(t, Name, res.Provider)
		assert.Equal(t, 2, res.Dimension)
		assert.InDeltaSlice(t, []float32{0.6, 0.8}, res.Vector, 1e-5)
	})

	t.Run("full dimensions pass through", func(t *testing.T) {
		srv := newEmbedServer(t, "[3,4]")

		client, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL))
		require.NoError(t, err)

		res, err := client.Embed(context.Background(), "bilge pump")
		require.NoError(t, err)
		assert.Equal(t, []float32{3, 4}, res.Vector)
	})

	t.Run("empty embedding", func(t *testing.T) {
		srv := newEmbedServer(t, "[]")

		client, err := NewClient(context.Background(), "test-key", WithBaseURL(srv.URL))
		require.NoError(t, err)

		_, err = client.Embed(context.Background(), "bilge pump")
		require.ErrorIs(t, err, ErrNoEmbeddingInResponse)
	})
}
