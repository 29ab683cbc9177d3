package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 400, cfg.Chunker.MaxTokens)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, 768, cfg.VectorStore.Dimension)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.5, cfg.Retrieval.ScoreThreshold, 1e-9)
	assert.Equal(t, 4000, cfg.Prompt.MaxChars)
	assert.Equal(t, 3, cfg.Prompt.MaxPassages)
	assert.InDelta(t, 0.4, cfg.Completion.Temperature, 1e-6)
	require.NotNil(t, cfg.Completion.OpenAI)
	assert.Equal(t, 60, cfg.Completion.OpenAI.TimeoutSecs)
	assert.Equal(t, 2, cfg.Completion.OpenAI.MaxRetries)
	require.NotNil(t, cfg.VectorStore.Flat)
	assert.NotEmpty(t, cfg.VectorStore.Flat.IndexPath)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverridesAndFillsBackendDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  type: openai
  dimension: 1536
completion:
  type: ollama
  temperature: 0
vector_store:
  type: qdrant
  dimension: 1536
retrieval:
  top_k: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, 30, cfg.Embedder.OpenAI.TimeoutSecs)
	assert.Equal(t, 32, cfg.Embedder.OpenAI.BatchSize)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	require.NotNil(t, cfg.Completion.Ollama)
	assert.Equal(t, "qwen2.5:1.5b", cfg.Completion.Ollama.Model)
	assert.Zero(t, cfg.Completion.Temperature)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "http://localhost:6333", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("chunker: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Retrieval.TopK = 7

	require.NoError(t, Save(path, cfg))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
	}{
		{"max tokens", func(c *AppConfig) { c.Chunker.MaxTokens = -1 }},
		{"overlap too large", func(c *AppConfig) { c.Chunker.Overlap = c.Chunker.MaxTokens }},
		{"negative overlap", func(c *AppConfig) { c.Chunker.Overlap = -1 }},
		{"top k", func(c *AppConfig) { c.Retrieval.TopK = -2 }},
		{"threshold", func(c *AppConfig) { c.Retrieval.ScoreThreshold = 1.5 }},
		{"dedup threshold", func(c *AppConfig) { c.Prompt.DedupThreshold = 2 }},
		{"dimension mismatch", func(c *AppConfig) { c.Embedder.Dimension = 384 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLoadDefaultPrefersWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile("config.yaml", []byte("retrieval:\n  top_k: 9\n"), 0o644))

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", path)
	assert.Equal(t, 9, cfg.Retrieval.TopK)
}

func TestLoadDefaultWritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "docrag", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, defaultConfig(), cfg)
}
