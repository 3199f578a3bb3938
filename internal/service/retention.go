package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/model"
	"github.com/smartmeetingai/api/internal/storage"
	"github.com/smartmeetingai/api/internal/store"
)

// RetentionSweeper removes tasks older than maxAge together with their media.
type RetentionSweeper struct {
	store  store.Store
	media  LocalMedia
	mirror storage.MediaStore
	maxAge time.Duration
	cron   *cron.Cron
	logger *zap.Logger
	now    func() time.Time
}

func NewRetentionSweeper(st store.Store, media LocalMedia, mirror storage.MediaStore, maxAge time.Duration, logger *zap.Logger) *RetentionSweeper {
	return &RetentionSweeper{
		store:  st,
		media:  media,
		mirror: mirror,
		maxAge: maxAge,
		cron:   cron.New(),
		logger: logger.With(zap.String("component", "retention")),
		now:    time.Now,
	}
}

// Start schedules Sweep with a cron spec such as "@daily"
func (s *RetentionSweeper) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("retention sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule and waits for a running sweep
func (s *RetentionSweeper) Stop() {
	<-s.cron.Stop().Done()
}

// errTaskRetained keeps a task that no longer qualifies once re-read under
// its lock.
var errTaskRetained = errors.New("task retained")

// Sweep deletes every task created before the retention cutoff. Tasks still
// processing are kept so that a live run never loses its record. The decision
// is repeated under the task's lock and media goes only after the record.
func (s *RetentionSweeper) Sweep(ctx context.Context) (int, error) {
	tasks, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-s.maxAge)
	expired := func(t *model.Task) bool {
		return t.CreatedAt.Before(cutoff) && t.Status != model.TaskStatusProcessing
	}

	removed := 0
	for _, t := range tasks {
		if !expired(t) {
			continue
		}

		deleted, err := s.store.DeleteIf(ctx, t.ID, func(current *model.Task) error {
			if !expired(current) {
				return errTaskRetained
			}
			return nil
		})
		switch {
		case err == nil:
		case errors.Is(err, errTaskRetained), errors.Is(err, model.ErrTaskNotFound):
			s.logger.Debug("task no longer expired, keeping it", zap.String("task_id", t.ID))
			continue
		default:
			s.logger.Warn("failed to delete task", zap.String("task_id", t.ID), zap.Error(err))
			continue
		}

		s.removeMedia(ctx, deleted)
		if err := s.store.DeleteFile(ctx, t.ID); err != nil && !errors.Is(err, model.ErrFileNotFound) {
			s.logger.Warn("failed to delete file record", zap.String("task_id", t.ID), zap.Error(err))
		}
		removed++
	}

	s.logger.Info("retention sweep finished", zap.Int("removed", removed), zap.Int("scanned", len(tasks)))
	return removed, nil
}

// removeMedia deletes the upload and every local artifact of t
func (s *RetentionSweeper) removeMedia(ctx context.Context, t *model.Task) {
	keys := []string{t.FilePath}
	for _, reel := range t.Reels {
		for _, u := range []string{reel.URL, reel.Thumbnail} {
			if key, ok := s.media.KeyForURL(u); ok {
				keys = append(keys, key)
			}
		}
	}
	if key, ok := s.media.KeyForURL(t.VideoURL); ok {
		keys = append(keys, key)
	}
	if key, ok := s.media.KeyForURL(t.ThumbnailURL); ok {
		keys = append(keys, key)
	}
	if t.Poster != nil {
		if key, ok := s.media.KeyForURL(t.Poster.ImageURL); ok {
			keys = append(keys, key)
		}
	}

	seen := make(map[string]bool)
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if err := s.media.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to delete media", zap.String("task_id", t.ID), zap.String("key", key), zap.Error(err))
		}
	}

	if s.mirror == nil {
		return
	}
	file, err := s.store.GetFile(ctx, t.ID)
	if err != nil || file.StorageKey == "" {
		return
	}
	if err := s.mirror.Delete(ctx, file.StorageKey); err != nil {
		s.logger.Warn("failed to delete mirrored upload", zap.String("task_id", t.ID), zap.Error(err))
	}
}

// Stats summarises the stored tasks
func Stats(ctx context.Context, taskStore store.TaskStore) (*model.StatsResponse, error) {
	tasks, err := taskStore.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &model.StatsResponse{
		Success:      true,
		TotalFiles:   len(tasks),
		StatusCounts: make(map[model.TaskStatus]int),
	}
	var total float64
	for _, t := range tasks {
		total += t.VideoInfo.FileSizeMB
		stats.StatusCounts[t.Status]++
	}
	stats.TotalSizeMB = math.Round(total*100) / 100
	return stats, nil
}
