package client

import (
	"context"
	"io"
	"time"

	"github.com/smartmeetingai/api/internal/model"
)

// Provider is implemented by every external job client
type Provider interface {
	Name() string
	IsConfigured() bool
}

// ReelClipper turns a source video into a short-form reel
type ReelClipper interface {
	Provider
	SubmitReel(ctx context.Context, req *ReelRequest) (*ReelSubmission, error)
	CheckReel(ctx context.Context, projectID string) (*ReelStatus, error)
}

// Transcriber converts the audio track of a video into a transcript
type Transcriber interface {
	Provider
	Transcribe(ctx context.Context, open Opener) (*model.Transcript, error)
}

// ImageGenerator renders an image from a text prompt
type ImageGenerator interface {
	Provider
	GenerateImage(ctx context.Context, prompt string) (*GeneratedImage, error)
}

// TextGenerator produces a chat completion
type TextGenerator interface {
	Provider
	ChatCompletion(ctx context.Context, system, user string) (string, error)
}

// Opener opens the media to send; it may be called again on retry.
type Opener func() (io.ReadCloser, error)

// ReelRequest represents a reel clipping request
type ReelRequest struct {
	VideoURL   string
	Duration   int
	Caption    string
	Platforms  []string
	WebhookURL string
}

// ReelSubmission is the outcome of a submit call: either an asynchronous
// ProjectID or an inline result.
type ReelSubmission struct {
	ProjectID    string
	VideoURL     string
	ThumbnailURL string
}

// Async reports whether the result arrives later under ProjectID.
func (s *ReelSubmission) Async() bool {
	return s.ProjectID != "" && s.VideoURL == ""
}

// ReelStatus represents the state of a clipping project
type ReelStatus struct {
	ProjectID    string
	State        model.RemoteState
	VideoURL     string
	ThumbnailURL string
	Error        string
	CompletedAt  time.Time
}

// GeneratedImage holds either a remote URL or the image bytes
type GeneratedImage struct {
	URL         string
	Data        []byte
	ContentType string
}
