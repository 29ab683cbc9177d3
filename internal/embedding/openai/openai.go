package openai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"docrag/internal/embedding"
	"docrag/internal/openaicompat"
	"docrag/internal/retry"
)

// Client is an OpenAI-compatible embeddings client implementing the Embedder interface.
type Client struct {
	client    *openai.Client
	model     string
	dimension int
	batchSize int
	policy    retry.Policy
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	Dimension int
	BatchSize int
	Retry     retry.Policy
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	client, err := openaicompat.NewClient(openaicompat.Config{
		BaseURL:   cfg.BaseURL,
		APIKeyEnv: cfg.APIKeyEnv,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Client{
		client:    client,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		batchSize: cfg.BatchSize,
		policy:    cfg.Retry,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Dimension returns the configured dimensionality, zero when unknown.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns one normalized vector per text, batching requests.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	err := retry.Do(ctx, c.policy, "openai.embeddings", func() error {
		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(c.model),
		})
		if err != nil {
			return openaicompat.Classify(err)
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("openai embeddings returned %d vectors for %d inputs", len(resp.Data), len(texts))
		}
		vectors = make([][]float32, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(texts) || vectors[d.Index] != nil {
				return retry.Permanent(errors.New("openai embeddings returned an invalid index"))
			}
			vectors[d.Index] = d.Embedding
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	return embedding.Finish(c.Name(), vectors, len(texts), c.dimension)
}
