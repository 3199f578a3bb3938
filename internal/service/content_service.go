package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/client"
	"github.com/smartmeetingai/api/internal/model"
	"github.com/smartmeetingai/api/internal/storage"
	"github.com/smartmeetingai/api/internal/store"
)

// ContentService produces transcripts, posters and blog articles for a task.
// Posters and blogs need a transcript first.
type ContentService struct {
	store        store.TaskStore
	media        LocalMedia
	transcribers []client.Transcriber
	images       []client.ImageGenerator
	texts        []client.TextGenerator
	logger       *zap.Logger
	now          func() time.Time
}

// ContentProviders lists the providers of each kind in priority order
type ContentProviders struct {
	Transcribers []client.Transcriber
	Images       []client.ImageGenerator
	Texts        []client.TextGenerator
}

func NewContentService(taskStore store.TaskStore, media LocalMedia, providers ContentProviders, logger *zap.Logger) *ContentService {
	return &ContentService{
		store:        taskStore,
		media:        media,
		transcribers: providers.Transcribers,
		images:       providers.Images,
		texts:        providers.Texts,
		logger:       logger.With(zap.String("component", "content")),
		now:          time.Now,
	}
}

// GenerateTranscript transcribes the task's video and stores the result
func (s *ContentService) GenerateTranscript(ctx context.Context, taskID string) (*model.Transcript, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.FilePath == "" || !s.media.Exists(task.FilePath) {
		return nil, model.ErrVideoNotFound
	}

	open := func() (io.ReadCloser, error) { return s.media.Open(task.FilePath) }
	transcript, service, err := runChain(s.transcribers, s.logger, func(p client.Transcriber) (*model.Transcript, error) {
		return p.Transcribe(ctx, open)
	})
	if err != nil {
		return nil, fmt.Errorf("transcript generation failed: %w", err)
	}
	if transcript.Service == "" {
		transcript.Service = service
	}
	if transcript.GeneratedAt.IsZero() {
		transcript.GeneratedAt = s.now().UTC()
	}

	if _, err := s.store.Update(ctx, taskID, func(t *model.Task) error {
		t.Transcript = transcript
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("transcript generated", zap.String("task_id", taskID), zap.String("service", transcript.Service))
	return transcript, nil
}

// GeneratePoster renders a meeting poster from the stored transcript
func (s *ContentService) GeneratePoster(ctx context.Context, taskID string) (*model.Poster, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Transcript == nil {
		return nil, model.ErrTranscriptRequired
	}

	prompt := posterPrompt(task.Transcript.Text, meetingDetails(task))
	img, service, err := runChain(s.images, s.logger, func(p client.ImageGenerator) (*client.GeneratedImage, error) {
		return p.GenerateImage(ctx, prompt)
	})
	if err != nil {
		return nil, fmt.Errorf("poster generation failed: %w", err)
	}

	poster := &model.Poster{
		ImageURL:    img.URL,
		RemoteURL:   img.URL,
		Prompt:      prompt,
		Service:     service,
		GeneratedAt: s.now().UTC(),
	}
	if len(img.Data) > 0 {
		url, err := s.storePoster(ctx, taskID, img)
		if err != nil {
			return nil, err
		}
		poster.ImageURL = url
		poster.RemoteURL = ""
	}

	if _, err := s.store.Update(ctx, taskID, func(t *model.Task) error {
		t.Poster = poster
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("poster generated", zap.String("task_id", taskID), zap.String("service", service))
	return poster, nil
}

func (s *ContentService) storePoster(ctx context.Context, taskID string, img *client.GeneratedImage) (string, error) {
	contentType := img.ContentType
	if contentType == "" {
		contentType = mimetype.Detect(img.Data).String()
	}
	ext := ".png"
	if m := mimetype.Lookup(contentType); m != nil && m.Extension() != "" {
		ext = m.Extension()
	}

	key := fmt.Sprintf("%s/poster_%s_%d%s", storage.DirPosters, taskID, s.now().Unix(), ext)
	if _, err := s.media.Upload(ctx, key, bytes.NewReader(img.Data), contentType); err != nil {
		return "", fmt.Errorf("failed to store poster: %w", err)
	}
	// served from the same origin as the API
	return "/static/" + key, nil
}

// GenerateBlog writes a blog article from the stored transcript
func (s *ContentService) GenerateBlog(ctx context.Context, taskID string) (*model.Blog, error) {
	task, err := s.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.Transcript == nil {
		return nil, model.ErrTranscriptRequired
	}

	prompt := blogPrompt(task.Transcript.Text, meetingDetails(task))
	content, service, err := runChain(s.texts, s.logger, func(p client.TextGenerator) (string, error) {
		return p.ChatCompletion(ctx, blogSystemPrompt, prompt)
	})
	if err != nil {
		return nil, fmt.Errorf("blog generation failed: %w", err)
	}

	blog := &model.Blog{
		Content:     content,
		WordCount:   len(strings.Fields(content)),
		Service:     service,
		GeneratedAt: s.now().UTC(),
	}

	if _, err := s.store.Update(ctx, taskID, func(t *model.Task) error {
		t.Blog = blog
		return nil
	}); err != nil {
		return nil, err
	}

	s.logger.Info("blog generated", zap.String("task_id", taskID), zap.String("service", service), zap.Int("words", blog.WordCount))
	return blog, nil
}
