package vectorstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"docrag/internal/domain"
)

// CheckDimensions verifies every chunk carries an embedding of the index dimension.
func CheckDimensions(chunks []domain.Chunk, dimension int) error {
	for i, ch := range chunks {
		if len(ch.Embedding) != dimension {
			return fmt.Errorf("%w: chunk %d has %d values, index expects %d",
				domain.ErrDimensionMismatch, i, len(ch.Embedding), dimension)
		}
	}
	return nil
}

// Rank returns the positions of the k highest scores, best first.
// Equal scores keep their original order.
func Rank(scores []float64, k int) []int {
	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if k < len(idxs) {
		idxs = idxs[:max(k, 0)]
	}
	return idxs
}

// Dot is the inner product of two equal-length vectors.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// WriteFileAtomic writes data next to path and renames it into place.
func WriteFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
