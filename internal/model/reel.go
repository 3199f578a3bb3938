package model

import (
	"fmt"
	"time"
)

// ReelConfig is one requested reel
type ReelConfig struct {
	Duration  int      `json:"duration" validate:"omitempty,oneof=15 30 60 90"`
	Caption   string   `json:"caption" validate:"max=2200"`
	Platforms []string `json:"platforms" validate:"omitempty,dive,oneof=instagram tiktok youtube facebook"`
	Style     string   `json:"style" validate:"omitempty,oneof=professional casual creative minimal"`
}

// DurationOrDefault returns the requested duration, 30 seconds when unset.
func (c ReelConfig) DurationOrDefault() int {
	if c.Duration == 0 {
		return 30
	}
	return c.Duration
}

func (c ReelConfig) StyleOrDefault() string {
	if c.Style == "" {
		return StyleProfessional
	}
	return c.Style
}

// SubmitPlatforms is the platform list sent to the clipping service.
func (c ReelConfig) SubmitPlatforms() []string {
	if len(c.Platforms) == 0 {
		return []string{PlatformInstagram}
	}
	return c.Platforms
}

// Reel is the result of one ReelConfig, positionally aligned with Task.Configs.
type Reel struct {
	ID        string     `json:"id"`
	Duration  int        `json:"duration"`
	Style     string     `json:"style"`
	Caption   string     `json:"caption"`
	Platforms []string   `json:"platforms"`
	URL       string     `json:"url,omitempty"`
	Thumbnail string     `json:"thumbnail,omitempty"`
	FilePath  string     `json:"file_path,omitempty"`
	Status    ReelStatus `json:"status"`
	Progress  int        `json:"progress"`
	Message   string     `json:"message"`

	ProjectID    string      `json:"project_id,omitempty"`
	RemoteStatus RemoteState `json:"remote_status,omitempty"`
	Error        string      `json:"error,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
}

// ReelID builds the id of the n-th (1-based) reel of a task.
func ReelID(taskID string, n int) string {
	return fmt.Sprintf("reel_%s_%d", taskID, n)
}

// NewReel returns a reel record carrying the descriptive fields of cfg.
func NewReel(taskID string, n int, cfg ReelConfig) Reel {
	platforms := cfg.Platforms
	if platforms == nil {
		platforms = []string{}
	}
	return Reel{
		ID:        ReelID(taskID, n),
		Duration:  cfg.DurationOrDefault(),
		Style:     cfg.StyleOrDefault(),
		Caption:   cfg.Caption,
		Platforms: platforms,
	}
}

// ReelSignal is a terminal (or progress) observation of an external reel job,
// from either a status poll or a webhook.
type ReelSignal struct {
	ProjectID    string
	State        RemoteState
	VideoURL     string
	ThumbnailURL string
	Error        string
	CompletedAt  time.Time
	Source       string
}

const (
	SignalSourcePoll    = "poll"
	SignalSourceWebhook = "webhook"
)
