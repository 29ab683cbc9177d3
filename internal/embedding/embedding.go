package embedding

import (
	"context"
	"fmt"
	"math"

	"docrag/internal/domain"
)

// Normalize returns a unit-length copy of v. A zero vector is returned as a zero copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// CheckDimension embeds a probe text and verifies the model output matches the
// dimension the index was configured with.
func CheckDimension(ctx context.Context, e domain.Embedder, want int) error {
	if d := e.Dimension(); d > 0 && d != want {
		return fmt.Errorf("%w: embedder %s is configured for %d, index expects %d",
			domain.ErrDimensionMismatch, e.Name(), d, want)
	}
	vectors, err := e.Embed(ctx, []string{"kiểm tra kích thước vector"})
	if err != nil {
		return fmt.Errorf("probe embedder %s: %w", e.Name(), err)
	}
	if len(vectors) != 1 {
		return fmt.Errorf("probe embedder %s: got %d vectors for 1 input", e.Name(), len(vectors))
	}
	if got := len(vectors[0]); got != want {
		return fmt.Errorf("%w: embedder %s produced %d, index expects %d",
			domain.ErrDimensionMismatch, e.Name(), got, want)
	}
	return nil
}

// ensureDimension checks one batch of model output against the expected size.
func ensureDimension(name string, vectors [][]float32, want int) error {
	if want <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != want {
			return fmt.Errorf("%w: %s vector %d has %d values, want %d",
				domain.ErrDimensionMismatch, name, i, len(v), want)
		}
	}
	return nil
}

// Finish checks the count and size of raw model output and returns normalized copies.
func Finish(name string, vectors [][]float32, inputs, want int) ([][]float32, error) {
	if len(vectors) != inputs {
		return nil, fmt.Errorf("%s returned %d vectors for %d inputs", name, len(vectors), inputs)
	}
	if err := ensureDimension(name, vectors, want); err != nil {
		return nil, err
	}
	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		out[i] = Normalize(v)
	}
	return out, nil
}
