package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/model"
	"github.com/smartmeetingai/api/internal/store"
	"github.com/smartmeetingai/api/internal/worker"
)

// GenerationService accepts reel generation requests and hands them to the
// dispatcher.
type GenerationService struct {
	store      store.TaskStore
	dispatcher worker.Dispatcher
	logger     *zap.Logger
	newRunID   func() string
}

func NewGenerationService(taskStore store.TaskStore, dispatcher worker.Dispatcher, logger *zap.Logger) *GenerationService {
	return &GenerationService{
		store:      taskStore,
		dispatcher: dispatcher,
		logger:     logger,
		newRunID:   uuid.NewString,
	}
}

// Start resets the task for a fresh run with the given configs and dispatches
// it. It returns as soon as the run is scheduled. The new run token takes the
// task over from any run still in flight.
func (s *GenerationService) Start(ctx context.Context, req *model.GenerateReelsRequest) error {
	runID := s.newRunID()
	_, err := s.store.Update(ctx, req.FileID, func(t *model.Task) error {
		t.Status = model.TaskStatusProcessing
		t.Progress = 0
		t.Message = "Reel generation started"
		t.RunID = runID
		t.Configs = req.Configs
		t.Reels = []model.Reel{}
		t.ProjectID = ""
		t.VideoURL = ""
		t.ThumbnailURL = ""
		t.Error = ""
		t.CompletedAt = nil
		return nil
	})
	if err != nil {
		return err
	}

	log := s.logger.With(zap.String("task_id", req.FileID), zap.String("run_id", runID))
	if err := s.dispatcher.Dispatch(ctx, req.FileID, runID); err != nil {
		log.Error("failed to dispatch reel run", zap.Error(err))
		message := fmt.Sprintf("Error: %v", err)
		_, uerr := s.store.Update(ctx, req.FileID, func(t *model.Task) error {
			if t.RunID != runID {
				return store.ErrNoChange
			}
			t.Status = model.TaskStatusError
			t.Progress = 0
			t.Message = message
			t.Error = err.Error()
			return nil
		})
		if uerr != nil && !errors.Is(uerr, store.ErrNoChange) {
			log.Error("failed to record dispatch error", zap.Error(uerr))
		}
		return fmt.Errorf("failed to start reel generation: %w", err)
	}

	log.Info("reel generation started", zap.Int("configs", len(req.Configs)))
	return nil
}
