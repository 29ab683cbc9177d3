package retriever

import (
	"context"
	"fmt"

	"docrag/internal/domain"
)

// Retriever embeds a query, searches the index once and keeps the results
// whose score clears the threshold.
type Retriever struct {
	embedder  domain.Embedder
	index     domain.VectorIndex
	topK      int
	threshold float64
}

func New(embedder domain.Embedder, index domain.VectorIndex, topK int, threshold float64) *Retriever {
	if topK <= 0 {
		topK = 3
	}
	return &Retriever{embedder: embedder, index: index, topK: topK, threshold: threshold}
}

// Retrieve returns the chunks scoring at least the threshold, best first with
// ties in insertion order. An empty result is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]domain.SearchResult, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	hits, err := r.index.Search(ctx, vectors[0], r.topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return Filter(hits, r.threshold), nil
}

// Filter keeps results scoring at least threshold, preserving order.
func Filter(hits []domain.SearchResult, threshold float64) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		if h.Score >= threshold {
			out = append(out, h)
		}
	}
	return out
}

func (r *Retriever) TopK() int { return r.topK }

func (r *Retriever) Threshold() float64 { return r.threshold }
