package chromem

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func chunk(id string, vec ...float32) domain.Chunk {
	return domain.Chunk{ID: id, Kind: domain.KindText, Content: "nội dung " + id, Embedding: vec}
}

func newStore(t *testing.T, path string, dim int) *Store {
	t.Helper()
	s, err := NewStore(Config{Path: path, Collection: "documents"}, dim)
	require.NoError(t, err)
	return s
}

func TestSearchEmpty(t *testing.T) {
	s := newStore(t, "", 2)
	res, err := s.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearchOrderingAndTies(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, "", 2)
	require.NoError(t, s.Add(ctx, []domain.Chunk{
		chunk("low", 0, 1),
		chunk("tie-first", 1, 1),
		chunk("best", 1, 0),
	}))
	require.NoError(t, s.Add(ctx, []domain.Chunk{chunk("tie-second", 2, 2)}))

	res, err := s.Search(ctx, []float32{3, 0.5}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "best", res[0].Chunk.ID)
	assert.Equal(t, "tie-first", res[1].Chunk.ID)
	assert.Equal(t, "tie-second", res[2].Chunk.ID)
	assert.Equal(t, "nội dung best", res[0].Chunk.Content)
}

func TestZeroQueryScoresNothing(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, "", 2)
	require.NoError(t, s.Add(ctx, []domain.Chunk{chunk("a", 0, 1), chunk("b", 1, 0)}))
	res, err := s.Search(ctx, []float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a", res[0].Chunk.ID)
	assert.Zero(t, res[0].Score)
}

func TestStoredZeroVectorScoresZero(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, "", 2)
	require.NoError(t, s.Add(ctx, []domain.Chunk{chunk("empty", 0, 0), chunk("b", 1, 0), chunk("c", 1, 1)}))

	res, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, []string{"b", "c", "empty"}, []string{res[0].Chunk.ID, res[1].Chunk.ID, res[2].Chunk.ID})
	for _, r := range res {
		assert.False(t, math.IsNaN(r.Score), r.Chunk.ID)
	}
	assert.Zero(t, res[2].Score)
}

func TestDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, "", 3)
	assert.ErrorIs(t, s.Add(ctx, []domain.Chunk{chunk("a", 1, 0)}), domain.ErrDimensionMismatch)
	_, err := s.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chunks.chromem")
	s := newStore(t, path, 3)
	for i := 0; i < 5; i++ {
		vec := []float32{0.1, 0.1, 0.1}
		vec[i%3] = 1
		require.NoError(t, s.Add(ctx, []domain.Chunk{chunk(fmt.Sprintf("c%d", i), vec...)}))
	}
	require.NoError(t, s.Save(ctx))

	fresh := newStore(t, path, 3)
	require.True(t, fresh.Load(ctx))
	stats, err := fresh.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStats{Count: 5, Dimension: 3}, stats)

	res, err := fresh.Search(ctx, []float32{1, 0.1, 0.1}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "c0", res[0].Chunk.ID)
	assert.Equal(t, "c3", res[1].Chunk.ID)

	require.NoError(t, fresh.Add(ctx, []domain.Chunk{chunk("c5", 1, 0.1, 0.1)}))
	res, err = fresh.Search(ctx, []float32{1, 0.1, 0.1}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c3", "c5"}, []string{res[0].Chunk.ID, res[1].Chunk.ID, res[2].Chunk.ID})
}

func TestLoadFailures(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	missing := newStore(t, filepath.Join(dir, "missing.chromem"), 2)
	require.NoError(t, missing.Add(ctx, []domain.Chunk{chunk("a", 1, 0)}))
	assert.False(t, missing.Load(ctx))
	stats, _ := missing.Stats(ctx)
	assert.Equal(t, 0, stats.Count)

	path := filepath.Join(dir, "dim.chromem")
	s := newStore(t, path, 2)
	require.NoError(t, s.Add(ctx, []domain.Chunk{chunk("a", 1, 0)}))
	require.NoError(t, s.Save(ctx))
	assert.False(t, newStore(t, path, 3).Load(ctx))
}
