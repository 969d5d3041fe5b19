package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newEmbeddingServer returns a test server answering POST /embeddings with the given vector.
func newEmbeddingServer(t *testing.T, embedding []float64, seen *map[string]any) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if seen != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": embedding},
			},
			"model": "text-embedding-3-small",
			"usage": map[string]any{"prompt_tokens": 2, "total_tokens": 2},
		})
	}))
	t.Cleanup(server.Close)

	return server
}

func TestClient_CreateEmbedding(t *testing.T) {
	var body map[string]any

	server := newEmbeddingServer(t, []float64{0.25, -0.5, 1}, &body)
	client := NewClient("test-key", WithBaseURL(server.URL), WithMaxRetries(0))

	vec, err := client.CreateEmbedding(context.Background(), "  The cat sat  ")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1}, vec)

	assert.Equal(t, "  The cat sat  ", body["input"], "input is sent untrimmed")
	assert.Equal(t, DefaultModel, body["model"])
	assert.NotContains(t, body, "dimensions")
}

func TestClient_CreateEmbedding_Dimensions(t *testing.T) {
	var body map[string]any

	server := newEmbeddingServer(t, []float64{0.1, 0.2}, &body)
	client := NewClient("test-key",
		WithBaseURL(server.URL),
		WithModel("text-embedding-3-large"),
		WithDimensions(2),
		WithMaxRetries(0),
	)

	vec, err := client.CreateEmbedding(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 2)
	assert.Equal(t, "text-embedding-3-large", body["model"])
	assert.InDelta(t, 2, body["dimensions"], 1e-9)
	assert.Equal(t, "text-embedding-3-large", client.Model())
}

func TestClient_CreateEmbedding_DimensionMismatch(t *testing.T) {
	server := newEmbeddingServer(t, []float64{0.1, 0.2, 0.3}, nil)
	client := NewClient("test-key", WithBaseURL(server.URL), WithDimensions(2), WithMaxRetries(0))

	_, err := client.CreateEmbedding(context.Background(), "hello")
	require.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestClient_CreateEmbedding_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad input","type":"invalid_request_error"}}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient("test-key", WithBaseURL(server.URL), WithMaxRetries(0))

	_, err := client.CreateEmbedding(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai embedding")
}

func TestClient_CreateEmbedding_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient("test-key", WithBaseURL(server.URL))

	_, err := client.CreateEmbedding(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CreateEmbedding_InvalidArgs(t *testing.T) {
	client := NewClient("test-key")

	_, err := client.CreateEmbedding(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyInput)

	_, err = NewClient("test-key", WithDimensions(-1)).CreateEmbedding(context.Background(), "x")
	require.ErrorIs(t, err, ErrInvalidDims)
}
