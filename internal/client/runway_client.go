package client

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/config"
)

// RunwayClient implements ImageGenerator for the RunwayML API
type RunwayClient struct {
	api    apiClient
	apiKey string
	logger *zap.Logger
}

type runwayGenerationRequest struct {
	Model         string  `json:"model"`
	Prompt        string  `json:"prompt"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	NumFrames     int     `json:"num_frames"`
	NumSteps      int     `json:"num_steps"`
	GuidanceScale float64 `json:"guidance_scale"`
	Scheduler     string  `json:"scheduler"`
}

type runwayGenerationResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// NewRunwayClient creates a new RunwayML API client
func NewRunwayClient(cfg *config.RunwayMLConfig, httpCfg *config.HTTPClientConfig, logger *zap.Logger) *RunwayClient {
	apiKey := cfg.APIKey
	return &RunwayClient{
		api: newAPIClient("runwayml", cfg.BaseURL, httpCfg, logger, func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}),
		apiKey: apiKey,
		logger: logger.With(zap.String("service", "runwayml")),
	}
}

func (c *RunwayClient) Name() string { return "runwayml" }

// IsConfigured returns true if the client has valid configuration
func (c *RunwayClient) IsConfigured() bool {
	return c.apiKey != ""
}

// GenerateImage renders a single 1024x1024 frame
func (c *RunwayClient) GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error) {
	if !c.IsConfigured() {
		return &GeneratedImage{Data: placeholderPNG, ContentType: "image/png"}, nil
	}

	reqBody := runwayGenerationRequest{
		Model:         "gen-3",
		Prompt:        prompt,
		Width:         1024,
		Height:        1024,
		NumFrames:     1,
		NumSteps:      50,
		GuidanceScale: 7.5,
		Scheduler:     "ddim",
	}

	var result runwayGenerationResponse
	if err := c.api.post(ctx, "/generations", reqBody, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 || result.Data[0].URL == "" {
		return nil, fmt.Errorf("no image in response")
	}
	return &GeneratedImage{URL: result.Data[0].URL}, nil
}
