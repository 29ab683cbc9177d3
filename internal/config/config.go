package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks a configuration that must abort startup.
var ErrInvalid = errors.New("invalid configuration")

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	MaxTokens    int    `yaml:"max_tokens"`
	Overlap      int    `yaml:"overlap"`
	TokenCounter string `yaml:"token_counter"`
	Encoding     string `yaml:"encoding"`
}

// OpenAIConfig holds connection details for an OpenAI-compatible API.
type OpenAIConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size,omitempty"`
	MaxRetries  int    `yaml:"max_retries"`
}

// OllamaConfig holds connection details for an Ollama server.
type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string        `yaml:"type"`
	Dimension int           `yaml:"dimension"`
	OpenAI    *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama    *OllamaConfig `yaml:"ollama,omitempty"`
}

// CompletionConfig selects and configures the language model.
type CompletionConfig struct {
	Type        string        `yaml:"type"`
	Temperature float32       `yaml:"temperature"`
	TopP        float32       `yaml:"top_p"`
	MaxTokens   int           `yaml:"max_tokens"`
	OpenAI      *OpenAIConfig `yaml:"openai,omitempty"`
	Ollama      *OllamaConfig `yaml:"ollama,omitempty"`
}

// FlatConfig configures the in-process index.
type FlatConfig struct {
	IndexPath string `yaml:"index_path"`
}

// ChromemConfig configures the chromem-go index.
type ChromemConfig struct {
	Path          string `yaml:"path"`
	Collection    string `yaml:"collection"`
	Compress      bool   `yaml:"compress"`
	EncryptionKey string `yaml:"encryption_key,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type      string         `yaml:"type"`
	Dimension int            `yaml:"dimension"`
	Flat      *FlatConfig    `yaml:"flat,omitempty"`
	Chromem   *ChromemConfig `yaml:"chromem,omitempty"`
	Qdrant    *QdrantConfig  `yaml:"qdrant,omitempty"`
}

// RetrievalConfig tunes the retriever. Irrelevant context hurts answers more than sparse
// context, so both values default small.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k"`
	ScoreThreshold float64 `yaml:"score_threshold"`
}

// PromptConfig tunes the context assembler.
type PromptConfig struct {
	MaxChars        int     `yaml:"max_chars"`
	MaxPassages     int     `yaml:"max_passages"`
	DedupThreshold  float64 `yaml:"dedup_threshold"`
	MinPassageChars int     `yaml:"min_passage_chars"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Completion  CompletionConfig  `yaml:"completion"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docrag/config.yaml.
// If neither exists, it writes defaults to ~/.config/docrag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects configurations that cannot run.
func (c *AppConfig) Validate() error {
	switch {
	case c.Chunker.MaxTokens <= 0:
		return fmt.Errorf("%w: chunker.max_tokens must be positive", ErrInvalid)
	case c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.MaxTokens:
		return fmt.Errorf("%w: chunker.overlap must be in [0, max_tokens)", ErrInvalid)
	case c.Retrieval.TopK <= 0:
		return fmt.Errorf("%w: retrieval.top_k must be positive", ErrInvalid)
	case c.Retrieval.ScoreThreshold < -1 || c.Retrieval.ScoreThreshold > 1:
		return fmt.Errorf("%w: retrieval.score_threshold must be in [-1, 1]", ErrInvalid)
	case c.Prompt.MaxChars <= 0:
		return fmt.Errorf("%w: prompt.max_chars must be positive", ErrInvalid)
	case c.Prompt.DedupThreshold <= 0 || c.Prompt.DedupThreshold > 1:
		return fmt.Errorf("%w: prompt.dedup_threshold must be in (0, 1]", ErrInvalid)
	case c.VectorStore.Dimension <= 0:
		return fmt.Errorf("%w: vector_store.dimension must be positive", ErrInvalid)
	case c.Embedder.Dimension != c.VectorStore.Dimension:
		return fmt.Errorf("%w: embedder.dimension %d does not match vector_store.dimension %d",
			ErrInvalid, c.Embedder.Dimension, c.VectorStore.Dimension)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Chunker:     ChunkerConfig{MaxTokens: 400, Overlap: 50, TokenCounter: "whitespace"},
		Embedder:    EmbedderConfig{Type: "hashing", Dimension: 768},
		Completion:  CompletionConfig{Type: "openai", Temperature: 0.4, TopP: 0.9, MaxTokens: 512},
		VectorStore: VectorStoreConfig{Type: "flat", Dimension: 768},
		Retrieval:   RetrievalConfig{TopK: 3, ScoreThreshold: 0.5},
		Prompt:      PromptConfig{MaxChars: 4000, MaxPassages: 3, DedupThreshold: 0.75, MinPassageChars: 100},
		Server:      ServerConfig{Addr: ":8080"},
		Log:         LogConfig{Level: "info", Format: "console"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.MaxTokens == 0 {
		cfg.Chunker.MaxTokens = 400
	}
	if cfg.Chunker.TokenCounter == "" {
		cfg.Chunker.TokenCounter = "whitespace"
	}
	if cfg.Chunker.TokenCounter == "tiktoken" && cfg.Chunker.Encoding == "" {
		cfg.Chunker.Encoding = "cl100k_base"
	}
	if cfg.VectorStore.Dimension == 0 {
		cfg.VectorStore.Dimension = 768
	}
	if cfg.Embedder.Dimension == 0 {
		cfg.Embedder.Dimension = cfg.VectorStore.Dimension
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIConfig{}
		}
		applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small", 30)
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
	}
	if cfg.Embedder.Type == "ollama" {
		if cfg.Embedder.Ollama == nil {
			cfg.Embedder.Ollama = &OllamaConfig{}
		}
		applyOllamaDefaults(cfg.Embedder.Ollama, "nomic-embed-text")
	}
	if cfg.Completion.Type == "" {
		cfg.Completion.Type = "openai"
	}
	if cfg.Completion.MaxTokens == 0 {
		cfg.Completion.MaxTokens = 512
	}
	switch cfg.Completion.Type {
	case "openai":
		if cfg.Completion.OpenAI == nil {
			cfg.Completion.OpenAI = &OpenAIConfig{}
		}
		applyOpenAIDefaults(cfg.Completion.OpenAI, "gpt-4o-mini", 60)
	case "ollama":
		if cfg.Completion.Ollama == nil {
			cfg.Completion.Ollama = &OllamaConfig{}
		}
		applyOllamaDefaults(cfg.Completion.Ollama, "qwen2.5:1.5b")
	}
	switch cfg.VectorStore.Type {
	case "flat", "":
		cfg.VectorStore.Type = "flat"
		if cfg.VectorStore.Flat == nil {
			cfg.VectorStore.Flat = &FlatConfig{}
		}
		if cfg.VectorStore.Flat.IndexPath == "" {
			cfg.VectorStore.Flat.IndexPath = filepath.Join("data", "processed", "embeddings", "faiss_index")
		}
	case "chromem":
		if cfg.VectorStore.Chromem == nil {
			cfg.VectorStore.Chromem = &ChromemConfig{}
		}
		if cfg.VectorStore.Chromem.Path == "" {
			cfg.VectorStore.Chromem.Path = filepath.Join("data", "processed", "embeddings", "chunks.chromem")
		}
		if cfg.VectorStore.Chromem.Collection == "" {
			cfg.VectorStore.Chromem.Collection = "documents"
		}
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.Collection == "" {
			cfg.VectorStore.Qdrant.Collection = "documents"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 15
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Prompt.MaxChars == 0 {
		cfg.Prompt.MaxChars = 4000
	}
	if cfg.Prompt.MaxPassages == 0 {
		cfg.Prompt.MaxPassages = 3
	}
	if cfg.Prompt.DedupThreshold == 0 {
		cfg.Prompt.DedupThreshold = 0.75
	}
	if cfg.Prompt.MinPassageChars == 0 {
		cfg.Prompt.MinPassageChars = 100
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

func applyOpenAIDefaults(c *OpenAIConfig, model string, timeoutSecs int) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = timeoutSecs
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
}

func applyOllamaDefaults(c *OllamaConfig, model string) {
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:11434"
	}
	if c.Model == "" {
		c.Model = model
	}
}
