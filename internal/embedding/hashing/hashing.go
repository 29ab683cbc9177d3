package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"docrag/internal/embedding"
)

// Embedder is an offline feature-hashing vectorizer. Unigrams and adjacent
// bigrams are hashed into a fixed number of signed buckets with sublinear TF
// weights, so no corpus preparation is needed and the dimension never changes.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates a hashing embedder producing vectors of the given size.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = 768
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed hashes each text into a unit-length vector. Texts without any
// content token map to the zero vector.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *Embedder) embed(text string) []float32 {
	tokens := e.tokenize(text)
	tf := make(map[string]int, len(tokens)*2)
	for i, tok := range tokens {
		tf[tok]++
		if i > 0 {
			tf[tokens[i-1]+" "+tok]++
		}
	}
	vec := make([]float32, e.dimension)
	for feature, count := range tf {
		idx, sign := e.bucket(feature)
		vec[idx] += sign * float32(1+math.Log(float64(count)))
	}
	return embedding.Normalize(vec)
}

func (e *Embedder) bucket(feature string) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimension)), sign
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(norm.NFC.String(text))
	raw := e.tokenPattern.FindAllString(lower, -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "of", "to", "in", "on", "for", "is", "are", "be", "with",
		"và", "của", "là", "có", "các", "những", "cho", "được", "trong", "với", "này", "đó",
		"thì", "mà", "để", "khi", "từ", "theo", "như", "một", "đã", "sẽ", "đang", "bị", "tôi",
		"gì", "nào", "ạ", "nhé", "vậy",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
