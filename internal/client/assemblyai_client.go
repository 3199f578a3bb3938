package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/config"
	"github.com/smartmeetingai/api/internal/model"
)

// AssemblyAIClient implements Transcriber for the AssemblyAI API
type AssemblyAIClient struct {
	api          apiClient
	apiKey       string
	pollInterval time.Duration
	maxWait      time.Duration
	stubDelay    time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

type assemblyUploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type assemblyTranscriptRequest struct {
	AudioURL        string `json:"audio_url"`
	SpeakerLabels   bool   `json:"speaker_labels"`
	AutoChapters    bool   `json:"auto_chapters"`
	EntityDetection bool   `json:"entity_detection"`
	AutoHighlights  bool   `json:"auto_highlights"`
}

type assemblyTranscript struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	Text           string            `json:"text"`
	Error          string            `json:"error"`
	Confidence     float64           `json:"confidence"`
	AudioDuration  float64           `json:"audio_duration"`
	Chapters       []model.Chapter   `json:"chapters"`
	Utterances     []model.Utterance `json:"utterances"`
	Entities       []model.Entity    `json:"entities"`
	AutoHighlights struct {
		Results []model.Highlight `json:"results"`
	} `json:"auto_highlights_result"`
}

// NewAssemblyAIClient creates a new AssemblyAI API client
func NewAssemblyAIClient(cfg *config.AssemblyAIConfig, httpCfg *config.HTTPClientConfig, logger *zap.Logger) *AssemblyAIClient {
	apiKey := cfg.APIKey
	pollInterval := time.Duration(cfg.PollIntervalMs) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	maxWait := time.Duration(cfg.MaxWait) * time.Second
	if maxWait <= 0 {
		maxWait = 30 * time.Minute
	}

	return &AssemblyAIClient{
		api: newAPIClient("assemblyai", cfg.BaseURL, httpCfg, logger, func(req *http.Request) {
			req.Header.Set("authorization", apiKey)
		}),
		apiKey:       apiKey,
		pollInterval: pollInterval,
		maxWait:      maxWait,
		stubDelay:    time.Duration(cfg.StubDelayMs) * time.Millisecond,
		logger:       logger.With(zap.String("service", "assemblyai")),
		now:          time.Now,
	}
}

func (c *AssemblyAIClient) Name() string { return "assemblyai" }

// IsConfigured returns true if the client has valid configuration
func (c *AssemblyAIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// Transcribe uploads the media, starts a transcript and waits for it
func (c *AssemblyAIClient) Transcribe(ctx context.Context, open Opener) (*model.Transcript, error) {
	if !c.IsConfigured() {
		return c.mockTranscribe(ctx)
	}

	var upload assemblyUploadResponse
	if err := c.api.upload(ctx, "/upload", open, &upload); err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	req := assemblyTranscriptRequest{
		AudioURL:        upload.UploadURL,
		SpeakerLabels:   true,
		AutoChapters:    true,
		EntityDetection: true,
		AutoHighlights:  true,
	}
	var started assemblyTranscript
	if err := c.api.post(ctx, "/transcript", req, &started); err != nil {
		return nil, fmt.Errorf("failed to start transcript: %w", err)
	}

	result, err := c.pollTranscript(ctx, started.ID)
	if err != nil {
		return nil, err
	}

	return &model.Transcript{
		Text:          result.Text,
		Chapters:      result.Chapters,
		Highlights:    result.AutoHighlights.Results,
		Speakers:      result.Utterances,
		Entities:      result.Entities,
		Confidence:    result.Confidence,
		AudioDuration: result.AudioDuration,
		Service:       c.Name(),
		GeneratedAt:   c.now().UTC(),
	}, nil
}

// pollTranscript polls for transcript completion
func (c *AssemblyAIClient) pollTranscript(ctx context.Context, transcriptID string) (*assemblyTranscript, error) {
	deadline := c.now().Add(c.maxWait)
	attempt := 0

	for c.now().Before(deadline) {
		attempt++
		var result assemblyTranscript
		if err := c.api.get(ctx, "/transcript/"+transcriptID, &result); err != nil {
			c.logger.Warn("poll transcript error", zap.Int("attempt", attempt), zap.String("transcript_id", transcriptID), zap.Error(err))
			return nil, err
		}

		c.logger.Debug("poll transcript", zap.Int("attempt", attempt), zap.String("transcript_id", transcriptID), zap.String("status", result.Status))

		switch result.Status {
		case "completed":
			return &result, nil
		case "error":
			msg := result.Error
			if msg == "" {
				msg = "Transcription failed"
			}
			return nil, fmt.Errorf("transcription failed: %s", msg)
		}

		if err := sleepCtx(ctx, c.pollInterval); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("transcription timed out after %v", c.maxWait)
}

func (c *AssemblyAIClient) mockTranscribe(ctx context.Context) (*model.Transcript, error) {
	c.logger.Info("mock transcription")
	if err := sleepCtx(ctx, c.stubDelay); err != nil {
		return nil, err
	}

	return &model.Transcript{
		Text: "This is a mock transcript of the meeting. We discussed quarterly results and future plans. " +
			"The team presented their findings and we made important decisions about the upcoming projects.",
		Chapters: []model.Chapter{
			{Summary: "Quarterly Results Discussion", Headline: "Q4 Performance Review", Gist: "Team discussed quarterly performance metrics"},
			{Summary: "Future Planning", Headline: "Strategic Planning Session", Gist: "Planned upcoming projects and initiatives"},
		},
		Highlights: []model.Highlight{
			{Text: "quarterly results", Rank: 0.95},
			{Text: "future plans", Rank: 0.88},
			{Text: "important decisions", Rank: 0.92},
		},
		Speakers: []model.Utterance{
			{Speaker: "A", Text: "Welcome everyone to our quarterly meeting."},
			{Speaker: "B", Text: "Let me present the quarterly results."},
			{Speaker: "A", Text: "Excellent work team, let's discuss future plans."},
		},
		Entities: []model.Entity{
			{Text: "quarterly results", EntityType: "topic"},
			{Text: "future plans", EntityType: "topic"},
			{Text: "team", EntityType: "organization"},
		},
		Confidence:    0.95,
		AudioDuration: 1800,
		Service:       c.Name() + "-mock",
		GeneratedAt:   c.now().UTC(),
	}, nil
}
