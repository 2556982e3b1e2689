// Package llm provides the OpenAI-compatible client used to phrase
// opportunity suggestions as short narratives.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Summarizer turns a structured suggestion description into a one or two
// sentence narrative. Implementations must be safe for concurrent use.
type Summarizer interface {
	// Summarize returns the narrative for the given prompt. An error means
	// the caller should fall back to its template text; suggestions are
	// never blocked on narrative generation.
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Client talks to an OpenAI-compatible chat endpoint.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ Summarizer = (*Client)(nil)

// Config holds configuration for creating an LLM client.
type Config struct {
	BaseURL string // e.g. "https://api.openai.com/v1"
	Model   string
	APIKey  string // optional for local endpoints
	Timeout time.Duration
}

const narrativeSystemMessage = "You write one or two sentence summaries of networking opportunities. " +
	"Be concrete and specific. Never invent facts beyond the provided context."

// NewClient creates a new OpenAI-compatible LLM client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: timeout,
		logger:  logger.Named("llm"),
	}, nil
}

// Summarize generates a narrative for the given prompt.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: narrativeSystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   160,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	narrative := strings.TrimSpace(resp.Choices[0].Message.Content)

	c.logger.Debug("narrative generated",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("narrative_len", len(narrative)),
		zap.Duration("duration", time.Since(start)))

	return narrative, nil
}
