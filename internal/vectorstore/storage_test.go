package vectorstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestRank(t *testing.T) {
	assert.Equal(t, []int{1, 3, 0}, Rank([]float64{0.2, 0.9, 0.1, 0.5}, 3))
	assert.Equal(t, []int{0, 2, 1}, Rank([]float64{0.7, 0.1, 0.7}, 5), "ties keep insertion order")
	assert.Empty(t, Rank(nil, 3))
	assert.Empty(t, Rank([]float64{1}, 0))
}

func TestCheckDimensions(t *testing.T) {
	ok := []domain.Chunk{{Embedding: []float32{1, 0}}, {Embedding: []float32{0, 1}}}
	require.NoError(t, CheckDimensions(ok, 2))
	bad := append(ok, domain.Chunk{Embedding: []float32{1}})
	assert.ErrorIs(t, CheckDimensions(bad, 2), domain.ErrDimensionMismatch)
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "blob")
	require.NoError(t, WriteFileAtomic(path, []byte("one")))
	require.NoError(t, WriteFileAtomic(path, []byte("two")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}
