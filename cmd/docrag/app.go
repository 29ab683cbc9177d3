package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"docrag/internal/chunker"
	"docrag/internal/completion/ollama"
	"docrag/internal/completion/openai"
	"docrag/internal/config"
	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/embedding/hashing"
	ollamaemb "docrag/internal/embedding/ollama"
	openaiemb "docrag/internal/embedding/openai"
	"docrag/internal/metrics"
	"docrag/internal/prompt"
	"docrag/internal/retriever"
	"docrag/internal/retry"
	"docrag/internal/service"
	"docrag/internal/vectorstore/chromem"
	"docrag/internal/vectorstore/flat"
	"docrag/internal/vectorstore/qdrant"
)

type app struct {
	cfg     *config.AppConfig
	svc     *service.RAGService
	index   domain.VectorIndex
	metrics *metrics.Recorder
}

// newApp assembles the pipeline from configuration. The completion gateway
// is only built when withCompleter is set, so ingestion runs without an API key.
func newApp(ctx context.Context, cfg *config.AppConfig, withCompleter bool) (*app, error) {
	counter, err := newTokenCounter(cfg.Chunker)
	if err != nil {
		return nil, err
	}
	ch := chunker.NewSentenceChunker(cfg.Chunker.MaxTokens, cfg.Chunker.Overlap, counter)

	emb, err := newEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	if err := embedding.CheckDimension(ctx, emb, cfg.VectorStore.Dimension); err != nil {
		return nil, fmt.Errorf("embedder %s: %w", emb.Name(), err)
	}

	idx, err := newIndex(cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	if idx.Load(ctx) {
		st, _ := idx.Stats(ctx)
		log.Info().Str("type", cfg.VectorStore.Type).Int("count", st.Count).Msg("vector index loaded")
	}

	var comp domain.Completer
	if withCompleter {
		if comp, err = newCompleter(cfg.Completion); err != nil {
			return nil, err
		}
	}

	rec := metrics.New()
	svc := service.NewRAGService(service.Deps{
		Chunker:   ch,
		Embedder:  emb,
		Index:     idx,
		Retriever: retriever.New(emb, idx, cfg.Retrieval.TopK, cfg.Retrieval.ScoreThreshold),
		Assembler: prompt.NewAssembler(prompt.Options{
			MaxChars:        cfg.Prompt.MaxChars,
			MaxPassages:     cfg.Prompt.MaxPassages,
			DedupThreshold:  cfg.Prompt.DedupThreshold,
			MinPassageChars: cfg.Prompt.MinPassageChars,
		}),
		Completer: comp,
		Metrics:   rec,
		MaxTokens: cfg.Chunker.MaxTokens,
		Overlap:   cfg.Chunker.Overlap,
	})
	return &app{cfg: cfg, svc: svc, index: idx, metrics: rec}, nil
}

func newTokenCounter(cfg config.ChunkerConfig) (domain.TokenCounter, error) {
	switch cfg.TokenCounter {
	case "whitespace", "":
		return chunker.WhitespaceCounter{}, nil
	case "tiktoken":
		return chunker.NewTiktokenCounter(cfg.Encoding)
	default:
		return nil, fmt.Errorf("%w: unknown token counter %q", config.ErrInvalid, cfg.TokenCounter)
	}
}

func policy(maxRetries int) retry.Policy {
	p := retry.DefaultPolicy()
	if maxRetries > 0 {
		p.MaxRetries = maxRetries
	}
	return p
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func newEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Dimension), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("%w: openai embedder config missing", config.ErrInvalid)
		}
		return openaiemb.NewClient(openaiemb.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   seconds(cfg.OpenAI.TimeoutSecs),
			Dimension: cfg.Dimension,
			BatchSize: cfg.OpenAI.BatchSize,
			Retry:     policy(cfg.OpenAI.MaxRetries),
		})
	case "ollama":
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("%w: ollama embedder config missing", config.ErrInvalid)
		}
		return ollamaemb.NewEmbedder(ollamaemb.Config{
			BaseURL:   cfg.Ollama.BaseURL,
			Model:     cfg.Ollama.Model,
			Dimension: cfg.Dimension,
			Retry:     retry.DefaultPolicy(),
		})
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", config.ErrInvalid, cfg.Type)
	}
}

func newCompleter(cfg config.CompletionConfig) (domain.Completer, error) {
	switch cfg.Type {
	case "openai", "":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("%w: openai completion config missing", config.ErrInvalid)
		}
		return openai.NewClient(openai.Config{
			BaseURL:     cfg.OpenAI.BaseURL,
			APIKeyEnv:   cfg.OpenAI.APIKeyEnv,
			Model:       cfg.OpenAI.Model,
			Timeout:     seconds(cfg.OpenAI.TimeoutSecs),
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
			Retry:       policy(cfg.OpenAI.MaxRetries),
		})
	case "ollama":
		if cfg.Ollama == nil {
			return nil, fmt.Errorf("%w: ollama completion config missing", config.ErrInvalid)
		}
		return ollama.NewClient(ollama.Config{
			BaseURL:     cfg.Ollama.BaseURL,
			Model:       cfg.Ollama.Model,
			Temperature: float64(cfg.Temperature),
			TopP:        float64(cfg.TopP),
			MaxTokens:   cfg.MaxTokens,
			Retry:       retry.DefaultPolicy(),
		})
	default:
		return nil, fmt.Errorf("%w: unknown completion type %q", config.ErrInvalid, cfg.Type)
	}
}

func newIndex(cfg config.VectorStoreConfig) (domain.VectorIndex, error) {
	switch cfg.Type {
	case "flat", "":
		path := ""
		if cfg.Flat != nil {
			path = cfg.Flat.IndexPath
		}
		return flat.NewIndex(cfg.Dimension, path), nil
	case "chromem":
		if cfg.Chromem == nil {
			return nil, fmt.Errorf("%w: chromem config missing", config.ErrInvalid)
		}
		return chromem.NewStore(chromem.Config{
			Path:          cfg.Chromem.Path,
			Collection:    cfg.Chromem.Collection,
			Compress:      cfg.Chromem.Compress,
			EncryptionKey: cfg.Chromem.EncryptionKey,
		}, cfg.Dimension)
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("%w: qdrant config missing", config.ErrInvalid)
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    seconds(cfg.Qdrant.TimeoutSecs),
		}, cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", config.ErrInvalid, cfg.Type)
	}
}
