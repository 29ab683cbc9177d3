package ollama

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"

	"docrag/internal/embedding"
	"docrag/internal/retry"
)

// Config configures the Ollama embedder.
type Config struct {
	BaseURL   string
	Model     string
	Dimension int
	Retry     retry.Policy
}

// Embedder embeds text with a local Ollama model through langchaingo.
type Embedder struct {
	embedder  *embeddings.EmbedderImpl
	model     string
	dimension int
	policy    retry.Policy
}

// NewEmbedder connects to the Ollama server named in cfg.
func NewEmbedder(cfg Config) (*Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	e, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("create ollama embedder: %w", err)
	}
	return &Embedder{embedder: e, model: cfg.Model, dimension: cfg.Dimension, policy: cfg.Retry}, nil
}

func (e *Embedder) Name() string { return "ollama" }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one normalized vector per text.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	var vectors [][]float32
	err := retry.Do(ctx, e.policy, "ollama.embeddings", func() error {
		var err error
		vectors, err = e.embedder.EmbedDocuments(ctx, texts)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings (%s): %w", e.model, err)
	}
	return embedding.Finish(e.Name(), vectors, len(texts), e.dimension)
}
