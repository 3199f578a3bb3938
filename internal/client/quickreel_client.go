package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/config"
	"github.com/smartmeetingai/api/internal/model"
)

const (
	mockProjectPrefix = "mock_project_"

	// mockCompletionDelay is how long a mock project stays processing
	mockCompletionDelay = 5 * time.Second
)

// QuickReelClient implements ReelClipper for the QuickReel API
type QuickReelClient struct {
	api       apiClient
	apiKey    string
	stubDelay time.Duration
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	lastMock int64
}

type quickReelClipRequest struct {
	VideoURL           string                      `json:"videoUrl"`
	WebhookURL         string                      `json:"webhookUrl,omitempty"`
	Language           string                      `json:"language"`
	ClipSettings       quickReelClipSettings       `json:"clipSettings"`
	BrollSettings      quickReelBrollSettings      `json:"brollSettings"`
	BgmSettings        quickReelBgmSettings        `json:"bgmSettings"`
	SubtitleStyles     quickReelSubtitleStyles     `json:"subtitleStyles"`
	AdditionalFeatures quickReelAdditionalFeatures `json:"additionalFeatures"`
}

type quickReelClipSettings struct {
	ReelsCount   int      `json:"reelsCount"`
	Prompt       string   `json:"prompt"`
	Keywords     []string `json:"keywords"`
	ReelDuration string   `json:"reelDuration"`
}

type quickReelBrollSettings struct {
	Type      string `json:"type"`
	Frequency string `json:"frequency"`
}

type quickReelBgmSettings struct {
	Volume  float64 `json:"volume"`
	FadeIn  float64 `json:"fadeIn"`
	FadeOut float64 `json:"fadeOut"`
}

type quickReelSubtitleStyles struct {
	Template string `json:"template"`
	Position string `json:"position"`
	FontSize string `json:"fontSize"`
}

type quickReelAdditionalFeatures struct {
	AddBgm             bool `json:"addBgm"`
	AddBroll           bool `json:"addBroll"`
	RemoveFillerWords  bool `json:"removeFillerWords"`
	RemoveSilenceParts bool `json:"removeSilenceParts"`
	AddHook            bool `json:"addHook"`
}

type quickReelClipResponse struct {
	ProjectID string `json:"projectId"`
}

type quickReelProject struct {
	ProjectID string          `json:"projectId"`
	Status    string          `json:"status"`
	Outputs   []quickReelClip `json:"outputs"`
	Error     string          `json:"error"`
}

type quickReelClip struct {
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// NewQuickReelClient creates a new QuickReel API client
func NewQuickReelClient(cfg *config.QuickReelConfig, httpCfg *config.HTTPClientConfig, logger *zap.Logger) *QuickReelClient {
	apiKey := cfg.APIKey
	return &QuickReelClient{
		api: newAPIClient("quickreel", cfg.BaseURL, httpCfg, logger, func(req *http.Request) {
			req.Header.Set("x-api-key", apiKey)
		}),
		apiKey:    apiKey,
		stubDelay: time.Duration(cfg.StubDelayMs) * time.Millisecond,
		logger:    logger.With(zap.String("service", "quickreel")),
		now:       time.Now,
	}
}

func (c *QuickReelClient) Name() string { return "quickreel" }

// IsConfigured returns true if the client has valid configuration
func (c *QuickReelClient) IsConfigured() bool {
	return c.apiKey != ""
}

// SubmitReel starts a clipping project; the result arrives asynchronously
func (c *QuickReelClient) SubmitReel(ctx context.Context, req *ReelRequest) (*ReelSubmission, error) {
	if !c.IsConfigured() {
		return c.mockSubmit(ctx, req)
	}

	platforms := req.Platforms
	if len(platforms) == 0 {
		platforms = []string{model.PlatformInstagram}
	}

	body := quickReelClipRequest{
		VideoURL:   req.VideoURL,
		WebhookURL: req.WebhookURL,
		Language:   "english",
		ClipSettings: quickReelClipSettings{
			ReelsCount:   1,
			Prompt:       reelPrompt(req.Caption, platforms),
			Keywords:     captionKeywords(req.Caption),
			ReelDuration: durationRange(req.Duration),
		},
		BrollSettings: quickReelBrollSettings{Type: "mixed", Frequency: "medium"},
		BgmSettings:   quickReelBgmSettings{Volume: 0.3, FadeIn: 0.5, FadeOut: 0.5},
		SubtitleStyles: quickReelSubtitleStyles{
			Template: "productive",
			Position: "bottom-center",
			FontSize: "m",
		},
		AdditionalFeatures: quickReelAdditionalFeatures{
			AddBgm:             true,
			AddBroll:           true,
			RemoveFillerWords:  true,
			RemoveSilenceParts: true,
			AddHook:            true,
		},
	}

	var result quickReelClipResponse
	if err := c.api.post(ctx, "/clip", body, &result); err != nil {
		return nil, err
	}
	if result.ProjectID == "" {
		return nil, fmt.Errorf("quickreel returned no project id")
	}

	c.logger.Info("reel submitted", zap.String("project_id", result.ProjectID), zap.Int("duration", req.Duration))
	return &ReelSubmission{ProjectID: result.ProjectID}, nil
}

// CheckReel retrieves the state of a clipping project
func (c *QuickReelClient) CheckReel(ctx context.Context, projectID string) (*ReelStatus, error) {
	if !c.IsConfigured() {
		return c.mockCheck(ctx, projectID)
	}

	var result quickReelProject
	if err := c.api.get(ctx, "/projects/"+projectID, &result); err != nil {
		return nil, err
	}

	status := &ReelStatus{ProjectID: projectID, State: model.RemoteStateProcessing}
	switch result.Status {
	case "completed":
		if len(result.Outputs) == 0 {
			// completed without outputs is reported as still processing
			return status, nil
		}
		status.State = model.RemoteStateCompleted
		status.VideoURL = result.Outputs[0].VideoURL
		status.ThumbnailURL = result.Outputs[0].ThumbnailURL
		status.CompletedAt = c.now().UTC()
	case "failed", "error":
		status.State = model.RemoteStateFailed
		status.Error = result.Error
		if status.Error == "" {
			status.Error = "Unknown error"
		}
	}
	return status, nil
}

func (c *QuickReelClient) mockSubmit(ctx context.Context, req *ReelRequest) (*ReelSubmission, error) {
	c.logger.Info("mock reel submission", zap.Int("duration", req.Duration), zap.String("caption", req.Caption))
	if err := sleepCtx(ctx, c.stubDelay); err != nil {
		return nil, err
	}

	c.mu.Lock()
	ts := c.now().UnixNano()
	if ts <= c.lastMock {
		ts = c.lastMock + 1
	}
	c.lastMock = ts
	c.mu.Unlock()

	return &ReelSubmission{ProjectID: fmt.Sprintf("%s%d", mockProjectPrefix, ts)}, nil
}

// mockCheck completes mock projects mockCompletionDelay after submission.
func (c *QuickReelClient) mockCheck(ctx context.Context, projectID string) (*ReelStatus, error) {
	if err := sleepCtx(ctx, c.stubDelay); err != nil {
		return nil, err
	}

	status := &ReelStatus{ProjectID: projectID, State: model.RemoteStateProcessing}
	if !strings.HasPrefix(projectID, mockProjectPrefix) {
		return status, nil
	}
	ts, err := strconv.ParseInt(strings.TrimPrefix(projectID, mockProjectPrefix), 10, 64)
	if err != nil {
		return status, nil
	}

	now := c.now()
	if now.Sub(time.Unix(0, ts)) > mockCompletionDelay {
		status.State = model.RemoteStateCompleted
		status.VideoURL = fmt.Sprintf("/static/reels/mock_reel_%d.mp4", ts)
		status.ThumbnailURL = fmt.Sprintf("/static/thumbnails/mock_thumbnail_%d.jpg", ts)
		status.CompletedAt = now.UTC()
	}
	return status, nil
}

// durationRange maps a reel duration in seconds to QuickReel's range buckets
func durationRange(seconds int) string {
	switch {
	case seconds <= 30:
		return "10-30"
	case seconds <= 60:
		return "30-60"
	case seconds <= 90:
		return "60-90"
	case seconds <= 120:
		return "90-120"
	default:
		return "10-30"
	}
}

func reelPrompt(caption string, platforms []string) string {
	platformText := "social media"
	if len(platforms) > 0 {
		platformText = strings.Join(platforms, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create a viral %s video that captures attention and drives engagement. ", platformText)
	fmt.Fprintf(&b, "Focus on the key message: %s. ", caption)
	b.WriteString("Make it engaging, fast-paced, and optimized for social media viewing. ")
	b.WriteString("Include dynamic visuals, clear messaging, and compelling hooks to maximize viewer retention.")
	return b.String()
}

var keywordStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true, "in": true,
	"on": true, "at": true, "to": true, "for": true, "of": true, "with": true, "by": true,
}

// captionKeywords keeps up to five lowercase caption words longer than three
// characters that are not stopwords.
func captionKeywords(caption string) []string {
	keywords := []string{}
	for _, word := range strings.Fields(strings.ToLower(caption)) {
		if keywordStopwords[word] || len(word) <= 3 {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == 5 {
			break
		}
	}
	return keywords
}
