package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
	"docrag/internal/embedding/hashing"
	"docrag/internal/vectorstore/flat"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s stubEmbedder) Name() string   { return "stub" }
func (s stubEmbedder) Dimension() int { return len(s.vec) }
func (s stubEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return [][]float32{s.vec}, nil
}

type stubIndex struct {
	domain.VectorIndex
	hits  []domain.SearchResult
	topK  int
	calls int
}

func (s *stubIndex) Search(_ context.Context, _ []float32, topK int) ([]domain.SearchResult, error) {
	s.calls++
	s.topK = topK
	return s.hits, nil
}

func hit(id string, score float64) domain.SearchResult {
	return domain.SearchResult{Chunk: domain.Chunk{ID: id, Content: id}, Score: score}
}

func TestRetrieveFiltersByThreshold(t *testing.T) {
	idx := &stubIndex{hits: []domain.SearchResult{hit("a", 0.9), hit("b", 0.82), hit("c", 0.3)}}
	r := New(stubEmbedder{vec: []float32{1}}, idx, 3, 0.5)
	got, err := r.Retrieve(context.Background(), "lãi suất")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Chunk.ID)
	assert.Equal(t, "b", got[1].Chunk.ID)
	assert.Equal(t, 3, idx.topK)
	assert.Equal(t, 1, idx.calls)
}

func TestRetrieveEmptyIndex(t *testing.T) {
	e := hashing.NewEmbedder(16)
	r := New(e, flat.NewIndex(16, ""), 3, 0.5)
	got, err := r.Retrieve(context.Background(), "phí chuyển khoản")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestRetrieveEmbedError(t *testing.T) {
	r := New(stubEmbedder{err: errors.New("timeout")}, &stubIndex{}, 3, 0.5)
	_, err := r.Retrieve(context.Background(), "x")
	assert.ErrorContains(t, err, "timeout")
}

func TestFilterMonotonic(t *testing.T) {
	hits := []domain.SearchResult{hit("a", 0.91), hit("b", 0.7), hit("c", 0.55), hit("d", 0.4), hit("e", -0.2)}
	prev := len(hits) + 1
	for _, th := range []float64{-1, -0.2, 0, 0.4, 0.41, 0.55, 0.7, 0.9, 0.91, 1} {
		n := len(Filter(hits, th))
		assert.LessOrEqual(t, n, prev, "threshold %v", th)
		prev = n
	}
	assert.Len(t, Filter(hits, 0.55), 3, "threshold is inclusive")
}

func TestDefaults(t *testing.T) {
	r := New(stubEmbedder{}, &stubIndex{}, 0, 0.6)
	assert.Equal(t, 3, r.TopK())
	assert.Equal(t, 0.6, r.Threshold())
}

func TestRetrieveReturnsBestFirst(t *testing.T) {
	ctx := context.Background()
	idx := flat.NewIndex(2, "")
	require.NoError(t, idx.Add(ctx, []domain.Chunk{
		{ID: "low", Content: "low", Embedding: []float32{0, 1}},
		{ID: "mid", Content: "mid", Embedding: []float32{1, 1}},
		{ID: "best", Content: "best", Embedding: []float32{1, 0}},
	}))
	r := New(stubEmbedder{vec: []float32{1, 0}}, idx, 3, 0.5)

	got, err := r.Retrieve(ctx, "lãi suất")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "best", got[0].Chunk.ID)
	assert.Equal(t, "mid", got[1].Chunk.ID)
	assert.Greater(t, got[0].Score, got[1].Score)
}
