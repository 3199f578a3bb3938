package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/model"
	"github.com/smartmeetingai/api/internal/storage"
	"github.com/smartmeetingai/api/internal/store"
)

// sniffLen is how much of an upload is inspected for its content type
const sniffLen = 3072

// UploadService stores uploaded videos and creates their task records
type UploadService struct {
	store  store.Store
	media  LocalMedia
	mirror storage.MediaStore
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// NewUploadService creates the upload service. mirror may be nil; when set
// every upload is also copied there and the copy is what the clipping
// service fetches.
func NewUploadService(st store.Store, media LocalMedia, mirror storage.MediaStore, logger *zap.Logger) *UploadService {
	return &UploadService{
		store:  st,
		media:  media,
		mirror: mirror,
		logger: logger.With(zap.String("component", "upload")),
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// AllowedFile reports whether filename has an accepted video extension
func AllowedFile(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range model.AllowedVideoExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// SecureFilename reduces a client supplied name to a safe base name
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, "._")
	if name == "" || name == "/" {
		return ""
	}
	return name
}

// Upload stores body as a new video and returns the created task
func (s *UploadService) Upload(ctx context.Context, filename string, size int64, body io.Reader) (*model.Task, error) {
	name := SecureFilename(filename)
	if name == "" || !AllowedFile(name) {
		return nil, model.ErrInvalidFileType
	}

	id := s.newID()
	key := fmt.Sprintf("%s/%s_%s", storage.DirUploads, id, name)

	br := bufio.NewReaderSize(body, sniffLen)
	head, _ := br.Peek(sniffLen)
	contentType := mimetype.Detect(head).String()

	if _, err := s.media.Upload(ctx, key, br, contentType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if info, err := s.statSize(key); err == nil {
		size = info
	}

	now := s.now().UTC()
	file := &model.FileRecord{
		ID:          id,
		Filename:    name,
		FilePath:    key,
		Size:        size,
		ContentType: contentType,
		UploadedAt:  now,
	}

	task := &model.Task{
		ID:       id,
		Status:   model.TaskStatusUploaded,
		Message:  "Video uploaded successfully",
		Filename: name,
		FilePath: key,
		VideoInfo: model.VideoInfo{
			FileSizeMB: math.Round(float64(size)/(1024*1024)*100) / 100,
			Duration:   "00:05:30",
			Resolution: "1920x1080",
			Format:     strings.ToUpper(strings.TrimPrefix(filepath.Ext(name), ".")),
			MimeType:   contentType,
			UploadTime: now,
		},
		Reels:     []model.Reel{},
		CreatedAt: now,
	}

	if s.mirror != nil {
		if url, err := s.mirrorUpload(ctx, key, contentType); err != nil {
			s.logger.Warn("failed to mirror upload, serving it locally", zap.String("file_id", id), zap.Error(err))
		} else {
			file.StorageKey = key
			task.SourceURL = url
		}
	}

	if err := s.store.SaveFile(ctx, file); err != nil {
		s.discard(ctx, file, false)
		return nil, fmt.Errorf("failed to save file record: %w", err)
	}
	if err := s.store.Create(ctx, task); err != nil {
		s.discard(ctx, file, true)
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.logger.Info("video uploaded",
		zap.String("file_id", id),
		zap.String("filename", name),
		zap.Int64("size", size),
		zap.String("content_type", contentType),
	)
	return task, nil
}

// discard removes what a failed upload already stored: the local video, its
// mirrored copy and, when saved, the file record.
func (s *UploadService) discard(ctx context.Context, file *model.FileRecord, recordSaved bool) {
	ctx = context.WithoutCancel(ctx)
	log := s.logger.With(zap.String("file_id", file.ID))

	if err := s.media.Delete(ctx, file.FilePath); err != nil {
		log.Warn("failed to remove orphaned upload", zap.String("key", file.FilePath), zap.Error(err))
	}
	if s.mirror != nil && file.StorageKey != "" {
		if err := s.mirror.Delete(ctx, file.StorageKey); err != nil {
			log.Warn("failed to remove orphaned mirror copy", zap.String("key", file.StorageKey), zap.Error(err))
		}
	}
	if recordSaved {
		if err := s.store.DeleteFile(ctx, file.ID); err != nil && !errors.Is(err, model.ErrFileNotFound) {
			log.Warn("failed to remove orphaned file record", zap.Error(err))
		}
	}
}

func (s *UploadService) statSize(key string) (int64, error) {
	f, err := s.media.Open(key)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (s *UploadService) mirrorUpload(ctx context.Context, key, contentType string) (string, error) {
	f, err := s.media.Open(key)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.mirror.Upload(ctx, key, f, contentType)
}
