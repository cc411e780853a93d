package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

// DefaultTimeout bounds a single model call. Expiry surfaces as an
// ordinary error; callers treat it as a soft failure.
const DefaultTimeout = 120 * time.Second

// Client wraps the OpenAI chat completion API behind the single call the
// rest of the service needs.
type Client struct {
	client *openai.Client
	model  string
}

func NewClient(apiKey, model string, timeout time.Duration) *Client {
	return newClient(openai.DefaultConfig(apiKey), model, timeout)
}

// NewClientWithBaseURL points the client at an alternative endpoint,
// used by tests and OpenAI-compatible deployments.
func NewClientWithBaseURL(apiKey, model, baseURL string, timeout time.Duration) *Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	return newClient(cfg, model, timeout)
}

func newClient(cfg openai.ClientConfig, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Complete sends a system + user instruction pair and returns the text response.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int, temperature float32) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response choices")
	}
	return resp.Choices[0].Message.Content, nil
}
