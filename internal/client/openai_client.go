package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/config"
)

// ChatMessage represents a message in the chat completion request
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest represents the request body for chat completion
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// ChatCompletionResponse represents the response from chat completion
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type imageGenerationRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

type imageGenerationResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// placeholderPNG is a 1x1 PNG used by stubbed image generators
var placeholderPNG, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

// OpenAIClient implements TextGenerator and ImageGenerator for the OpenAI API
type OpenAIClient struct {
	api        apiClient
	apiKey     string
	chatModel  string
	imageModel string
	stubDelay  time.Duration
	logger     *zap.Logger
}

// NewOpenAIClient creates a new OpenAI API client
func NewOpenAIClient(cfg *config.OpenAIConfig, httpCfg *config.HTTPClientConfig, logger *zap.Logger) *OpenAIClient {
	apiKey := cfg.APIKey
	return &OpenAIClient{
		api: newAPIClient("openai", cfg.BaseURL, httpCfg, logger, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}),
		apiKey:     apiKey,
		chatModel:  cfg.ChatModel,
		imageModel: cfg.ImageModel,
		stubDelay:  time.Duration(cfg.StubDelayMs) * time.Millisecond,
		logger:     logger.With(zap.String("service", "openai")),
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

// IsConfigured returns true if the client has valid configuration
func (c *OpenAIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// ChatCompletion sends a chat completion request to OpenAI
func (c *OpenAIClient) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	if !c.IsConfigured() {
		c.logger.Info("mock chat completion")
		if err := sleepCtx(ctx, c.stubDelay); err != nil {
			return "", err
		}
		return mockArticle, nil
	}

	reqBody := ChatCompletionRequest{
		Model: c.chatModel,
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

// GenerateImage renders a single 1024x1024 image
func (c *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error) {
	if !c.IsConfigured() {
		c.logger.Info("mock image generation")
		if err := sleepCtx(ctx, c.stubDelay); err != nil {
			return nil, err
		}
		return &GeneratedImage{Data: placeholderPNG, ContentType: "image/png"}, nil
	}

	reqBody := imageGenerationRequest{
		Model:   c.imageModel,
		Prompt:  prompt,
		N:       1,
		Size:    "1024x1024",
		Quality: "standard",
		Style:   "natural",
	}

	var result imageGenerationResponse
	if err := c.api.post(ctx, "/images/generations", reqBody, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 || result.Data[0].URL == "" {
		return nil, fmt.Errorf("no image in response")
	}
	return &GeneratedImage{URL: result.Data[0].URL}, nil
}

const mockArticle = `# Strategic Transformation: Key Insights from Our Meeting

## Executive Summary

Our recent meeting brought together key stakeholders to address critical business challenges and opportunities. This analysis covers the outcomes, the industry context and the strategic implications for future growth.

## Key Discussion Points

### Strategic Planning and Market Positioning

The team engaged in strategic planning discussions focused on long-term goals and market positioning. Organizations that plan regularly tend to outperform their peers in both revenue growth and profitability.

### Performance Optimization

Performance review discussions revealed opportunities to improve operational efficiency while maintaining service quality. The team drafted a roadmap of process improvements and technology investments.

### Resource Allocation

Investment priorities were set for technology modernization, talent development and market expansion, each with a risk assessment and mitigation plan.

## Implementation Roadmap

1. **0-6 months**: implement operational improvements and begin technology modernization
2. **6-18 months**: execute market expansion and complete digital transformation initiatives
3. **18+ months**: establish innovation leadership through continued investment

## Success Metrics

- Revenue growth of 15-20% annually
- 20% improvement in key operational processes
- Customer satisfaction above 90%

## Conclusion and Next Steps

The meeting provided clear strategic direction. Next steps are to finalize implementation plans, establish governance for the initiatives and put progress reporting in place.

*Generated from meeting transcript analysis.*
`
