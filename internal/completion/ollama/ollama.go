package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"docrag/internal/domain"
	"docrag/internal/retry"
)

// Config configures the Ollama completer.
type Config struct {
	BaseURL     string
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
	Retry       retry.Policy
}

// Client generates answers with a local Ollama model through langchaingo.
type Client struct {
	llm   *ollama.LLM
	model string
	opts  []llms.CallOption
	retry retry.Policy
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "qwen2.5:1.5b"
	}
	opts := []ollama.Option{ollama.WithModel(cfg.Model)}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}
	llm, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	var callOpts []llms.CallOption
	if cfg.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(cfg.Temperature))
	}
	if cfg.TopP > 0 {
		callOpts = append(callOpts, llms.WithTopP(cfg.TopP))
	}
	if cfg.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	return &Client{llm: llm, model: cfg.Model, opts: callOpts, retry: cfg.Retry}, nil
}

// Complete sends the messages and returns the generated text.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	content := make([]llms.MessageContent, len(messages))
	for i, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == domain.RoleSystem {
			role = llms.ChatMessageTypeSystem
		}
		content[i] = llms.TextParts(role, m.Content)
	}
	var text string
	err := retry.Do(ctx, c.retry, "ollama.chat", func() error {
		resp, err := c.llm.GenerateContent(ctx, content, c.opts...)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
			return errors.New("empty response from model")
		}
		text = strings.TrimSpace(resp.Choices[0].Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat (%s): %w", c.model, err)
	}
	return text, nil
}
