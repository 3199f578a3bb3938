package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/client"
	"github.com/smartmeetingai/api/internal/model"
	"github.com/smartmeetingai/api/internal/store"
)

// ErrRunSuperseded stops a run whose task was claimed by a newer generation
// request.
var ErrRunSuperseded = errors.New("reel run superseded by a newer request")

// Notifier receives task progress for live subscribers
type Notifier interface {
	BroadcastProgress(taskID string, progress int, status model.TaskStatus, message string)
	BroadcastComplete(taskID string, result interface{})
	BroadcastError(taskID string, code, message string)
}

// MediaSource resolves the uploaded video of a task
type MediaSource interface {
	Exists(key string) bool
	GetPublicURL(key string) string
}

// Runner executes one generation run for a task. runID is the token the
// generation request stamped on the task; writes stop once it changes.
type Runner interface {
	Run(ctx context.Context, taskID, runID string) error
}

// OrchestratorConfig holds the timing knobs of a run
type OrchestratorConfig struct {
	ReelDelay   time.Duration // pause after each reel
	CallTimeout time.Duration // bound on a single clipping call
	WebhookURL  string
}

// ReelOrchestrator drives a task from processing to completed, one reel per
// config, recording failures per reel without aborting the batch.
type ReelOrchestrator struct {
	store   store.TaskStore
	clipper client.ReelClipper
	media   MediaSource
	hub     Notifier
	cfg     OrchestratorConfig
	logger  *zap.Logger
	now     func() time.Time
}

func NewReelOrchestrator(taskStore store.TaskStore, clipper client.ReelClipper, media MediaSource, hub Notifier, cfg OrchestratorConfig, logger *zap.Logger) *ReelOrchestrator {
	if hub == nil {
		hub = nopNotifier{}
	}
	return &ReelOrchestrator{
		store:   taskStore,
		clipper: clipper,
		media:   media,
		hub:     hub,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "orchestrator")),
		now:     time.Now,
	}
}

// Run processes every config attached to the task. Errors that end the run
// are also recorded on the task as status error, unless a newer request owns
// the task by then.
func (o *ReelOrchestrator) Run(ctx context.Context, taskID, runID string) (err error) {
	log := o.logger.With(zap.String("task_id", taskID), zap.String("run_id", runID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("reel run panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = o.abort(taskID, runID, fmt.Errorf("reel run panicked: %v", r))
		}
	}()

	task, err := o.store.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			log.Warn("task not found, nothing to generate")
			return err
		}
		return o.abort(taskID, runID, err)
	}
	if task.RunID != runID {
		log.Info("reel run superseded before start")
		return ErrRunSuperseded
	}

	log.Info("starting reel run", zap.Int("configs", len(task.Configs)))
	if err := o.updateProgress(ctx, taskID, runID, 5, "Starting video processing..."); err != nil {
		return o.abort(taskID, runID, err)
	}

	if task.FilePath == "" || !o.media.Exists(task.FilePath) {
		return o.abort(taskID, runID, fmt.Errorf("%w: %s", model.ErrVideoNotFound, task.Filename))
	}

	sourceURL := task.SourceURL
	if sourceURL == "" {
		sourceURL = o.media.GetPublicURL(task.FilePath)
	}

	total := len(task.Configs)
	for i, cfg := range task.Configs {
		if err := ctx.Err(); err != nil {
			return o.abort(taskID, runID, err)
		}

		progress := i*80/total + 10
		if err := o.updateProgress(ctx, taskID, runID, progress, fmt.Sprintf("Generating reel %d/%d...", i+1, total)); err != nil {
			return o.abort(taskID, runID, err)
		}

		reel := o.generateReel(ctx, taskID, i, cfg, sourceURL)
		if err := o.appendReel(ctx, taskID, runID, reel); err != nil {
			return o.abort(taskID, runID, err)
		}

		if err := sleepCtx(ctx, o.cfg.ReelDelay); err != nil {
			return o.abort(taskID, runID, err)
		}
	}

	final, err := o.update(ctx, taskID, runID, func(t *model.Task) error {
		completedAt := o.now().UTC()
		t.Status = model.TaskStatusCompleted
		t.CompletedAt = &completedAt
		t.Progress = 100
		t.Message = "All reels generated successfully!"
		return nil
	})
	if err != nil {
		return o.abort(taskID, runID, err)
	}

	o.hub.BroadcastProgress(taskID, 100, model.TaskStatusCompleted, final.Message)
	o.hub.BroadcastComplete(taskID, final.Reels)
	log.Info("reel run completed", zap.Int("reels", len(final.Reels)))
	return nil
}

// generateReel calls the clipping service for config i and builds its reel
// record. Failures become a failed reel.
func (o *ReelOrchestrator) generateReel(ctx context.Context, taskID string, i int, cfg model.ReelConfig, sourceURL string) model.Reel {
	reel := model.NewReel(taskID, i+1, cfg)

	callCtx := ctx
	if o.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.cfg.CallTimeout)
		defer cancel()
	}

	sub, err := o.clipper.SubmitReel(callCtx, &client.ReelRequest{
		VideoURL:   sourceURL,
		Duration:   cfg.DurationOrDefault(),
		Caption:    cfg.Caption,
		Platforms:  cfg.SubmitPlatforms(),
		WebhookURL: o.cfg.WebhookURL,
	})
	if err == nil && sub.ProjectID == "" && sub.VideoURL == "" {
		err = errors.New("no project id or video in response")
	}
	if err != nil {
		o.logger.Warn("reel generation failed",
			zap.String("task_id", taskID),
			zap.String("reel_id", reel.ID),
			zap.Error(err),
		)
		reel.Status = model.ReelStatusFailed
		reel.Progress = 0
		reel.Error = err.Error()
		reel.Message = fmt.Sprintf("Error: Reel generation failed: %v", err)
		return reel
	}

	reel.Status = model.ReelStatusCompleted
	reel.Progress = 100
	reel.Message = "Reel generated successfully"
	reel.URL = sub.VideoURL
	reel.Thumbnail = sub.ThumbnailURL
	reel.FilePath = sub.VideoURL
	if sub.Async() {
		reel.ProjectID = sub.ProjectID
		reel.RemoteStatus = model.RemoteStateProcessing
	} else {
		completedAt := o.now().UTC()
		reel.RemoteStatus = model.RemoteStateCompleted
		reel.CompletedAt = &completedAt
	}
	return reel
}

// update applies fn only while runID still owns the task.
func (o *ReelOrchestrator) update(ctx context.Context, taskID, runID string, fn store.UpdateFunc) (*model.Task, error) {
	return o.store.Update(ctx, taskID, func(t *model.Task) error {
		if t.RunID != runID {
			return ErrRunSuperseded
		}
		return fn(t)
	})
}

// appendReel stores the next reel and, for asynchronous results, the live
// project id in a single update so that pollers and webhooks can resolve it
// at once.
func (o *ReelOrchestrator) appendReel(ctx context.Context, taskID, runID string, reel model.Reel) error {
	_, err := o.update(ctx, taskID, runID, func(t *model.Task) error {
		t.Reels = append(t.Reels, reel)
		if reel.ProjectID != "" {
			t.ProjectID = reel.ProjectID
		}
		return nil
	})
	return err
}

// updateProgress records progress for the run. Only a lost task or a newer
// run is reported; other store errors are logged and the run goes on.
func (o *ReelOrchestrator) updateProgress(ctx context.Context, taskID, runID string, progress int, message string) error {
	_, err := o.update(ctx, taskID, runID, func(t *model.Task) error {
		t.Status = model.TaskStatusProcessing
		t.Progress = progress
		t.Message = message
		return nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrRunSuperseded), errors.Is(err, model.ErrTaskNotFound):
		return err
	default:
		o.logger.Warn("failed to update progress", zap.String("task_id", taskID), zap.Error(err))
	}
	o.hub.BroadcastProgress(taskID, progress, model.TaskStatusProcessing, message)
	return nil
}

// abort ends the run with cause. The task is marked errored unless a newer
// run owns it, in which case ErrRunSuperseded is returned instead.
func (o *ReelOrchestrator) abort(taskID, runID string, cause error) error {
	if errors.Is(cause, ErrRunSuperseded) {
		o.logger.Info("reel run superseded, stopping", zap.String("task_id", taskID), zap.String("run_id", runID))
		return cause
	}
	if err := o.failTask(taskID, runID, cause); errors.Is(err, ErrRunSuperseded) {
		o.logger.Info("reel run superseded, stopping",
			zap.String("task_id", taskID),
			zap.String("run_id", runID),
			zap.NamedError("cause", cause),
		)
		return ErrRunSuperseded
	}
	return cause
}

// failTask marks the task as errored. It runs detached from the run context,
// which may already be cancelled.
func (o *ReelOrchestrator) failTask(taskID, runID string, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	message := fmt.Sprintf("Error: %v", cause)
	_, err := o.update(ctx, taskID, runID, func(t *model.Task) error {
		t.Status = model.TaskStatusError
		t.Progress = 0
		t.Message = message
		t.Error = cause.Error()
		return nil
	})
	if errors.Is(err, ErrRunSuperseded) {
		return err
	}
	if err != nil {
		o.logger.Error("failed to mark task as errored", zap.String("task_id", taskID), zap.Error(err))
	}
	o.hub.BroadcastError(taskID, "GENERATION_FAILED", message)
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopNotifier struct{}

func (nopNotifier) BroadcastProgress(string, int, model.TaskStatus, string) {}
func (nopNotifier) BroadcastComplete(string, interface{})                   {}
func (nopNotifier) BroadcastError(string, string, string)                   {}
