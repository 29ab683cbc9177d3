package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"docrag/internal/domain"
	"docrag/internal/openaicompat"
	"docrag/internal/retry"
)

// Config configures the chat completion client.
type Config struct {
	BaseURL     string
	APIKeyEnv   string
	Model       string
	Timeout     time.Duration
	Temperature float32
	TopP        float32
	MaxTokens   int
	Retry       retry.Policy
}

// Client generates answers through an OpenAI-compatible chat completions API.
type Client struct {
	client      *openai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int
	policy      retry.Policy
}

// NewClient creates a completion client; a missing API key is an error.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	client, err := openaicompat.NewClient(openaicompat.Config{
		BaseURL:   cfg.BaseURL,
		APIKeyEnv: cfg.APIKeyEnv,
		Timeout:   cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &Client{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		topP:        cfg.TopP,
		maxTokens:   cfg.MaxTokens,
		policy:      cfg.Retry,
	}, nil
}

// Complete sends the messages and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    convertMessages(messages),
		Temperature: c.temperature,
		TopP:        c.topP,
		MaxTokens:   c.maxTokens,
	}
	var text string
	err := retry.Do(ctx, c.policy, "openai.chat", func() error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return openaicompat.Classify(err)
		}
		if len(resp.Choices) == 0 {
			return errors.New("empty response from model")
		}
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return errors.New("empty response from model")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion (%s): %w", c.model, err)
	}
	return text, nil
}

func convertMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		out[i] = openai.ChatCompletionMessage{Role: role, Content: m.Content}
	}
	return out
}
