package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/config"
)

// ErrNotConfigured is returned by clients that have no offline fallback
var ErrNotConfigured = errors.New("client not configured")

// GroqClient handles communication with Groq API
type GroqClient struct {
	api    apiClient
	apiKey string
	model  string
}

// NewGroqClient creates a new Groq API client
func NewGroqClient(cfg *config.GroqConfig, httpCfg *config.HTTPClientConfig, logger *zap.Logger) *GroqClient {
	apiKey := cfg.APIKey
	return &GroqClient{
		api: newAPIClient("groq", cfg.BaseURL, httpCfg, logger, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}),
		apiKey: apiKey,
		model:  cfg.Model,
	}
}

func (c *GroqClient) Name() string { return "groq" }

// IsConfigured returns true if the client has valid configuration
func (c *GroqClient) IsConfigured() bool {
	return c.apiKey != ""
}

// ChatCompletion sends a chat completion request to Groq
func (c *GroqClient) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("groq: %w", ErrNotConfigured)
	}

	reqBody := ChatCompletionRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
		MaxTokens:   3000,
	}

	var chatResp ChatCompletionResponse
	if err := c.api.post(ctx, "/chat/completions", reqBody, &chatResp); err != nil {
		return "", err
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return chatResp.Choices[0].Message.Content, nil
}
