// Package openaicompat builds go-openai clients for any OpenAI-compatible
// endpoint (OpenAI, Gemini's compatibility layer, vLLM, LM Studio).
package openaicompat

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sashabaranov/go-openai"

	"docrag/internal/retry"
)

// Config configures an OpenAI-compatible client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Timeout   time.Duration
}

// NewClient reads the API key from the configured env var and builds a client.
// A missing key is a configuration error.
func NewClient(cfg Config) (*openai.Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	clientConfig := openai.DefaultConfig(key)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}
	return openai.NewClientWithConfig(clientConfig), nil
}

// Classify marks errors that retrying cannot fix as permanent.
func Classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retry.FromStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retry.FromStatus(reqErr.HTTPStatusCode, err)
	}
	return err
}
