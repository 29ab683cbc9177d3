package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
	"docrag/internal/retry"
)

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

func newTestClient(t *testing.T, url string, dim, batch int) *Client {
	t.Helper()
	t.Setenv("DOCRAG_EMBED_KEY", "sk-test")
	c, err := NewClient(Config{
		BaseURL:   url,
		APIKeyEnv: "DOCRAG_EMBED_KEY",
		Model:     "test-embed",
		Dimension: dim,
		BatchSize: batch,
		Retry:     retry.Policy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	})
	require.NoError(t, err)
	return c
}

func writeEmbeddings(t *testing.T, w http.ResponseWriter, inputs []string, dim int) {
	t.Helper()
	data := make([]map[string]any, len(inputs))
	for i := range inputs {
		vec := make([]float32, dim)
		vec[i%dim] = float32(2 + i)
		// reverse order to check index handling
		data[len(inputs)-1-i] = map[string]any{"object": "embedding", "index": i, "embedding": vec}
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"object": "list", "data": data, "model": "test-embed",
	}))
}

func TestEmbedBatchesAndNormalizes(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-embed", req.Model)
		assert.LessOrEqual(t, len(req.Input), 2)
		writeEmbeddings(t, w, req.Input, 4)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 4, 2)
	vecs, err := c.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, []float32{1, 0, 0, 0}, vecs[0])
	assert.Equal(t, []float32{0, 1, 0, 0}, vecs[1])
	assert.Equal(t, []float32{1, 0, 0, 0}, vecs[2])
}

func TestEmbedEmptyInput(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1", 4, 2)
	vecs, err := c.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestEmbedRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeEmbeddings(t, w, req.Input, 4)
	}))
	defer srv.Close()

	vecs, err := newTestClient(t, srv.URL, 4, 8).Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmbedDoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid key","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 4, 8).Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeEmbeddings(t, w, req.Input, 3)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 4, 8).Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}
