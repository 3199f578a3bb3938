package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Task types and queues
const (
	TaskTypeReelGenerate = "reels:generate"
	QueueReels           = "reels"
)

type reelTaskPayload struct {
	TaskID string `json:"taskId"`
	RunID  string `json:"runId"`
}

// AsynqDispatcher enqueues runs on Redis for a separate worker process.
// Runs are never retried by the queue; a caller retries with a new request.
type AsynqDispatcher struct {
	client *asynq.Client
	logger *zap.Logger
}

func NewAsynqDispatcher(client *asynq.Client, logger *zap.Logger) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, logger: logger}
}

func (d *AsynqDispatcher) Dispatch(ctx context.Context, taskID, runID string) error {
	task, err := newReelTask(taskID, runID)
	if err != nil {
		return err
	}

	info, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueReels),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue reel run: %w", err)
	}

	d.logger.Info("reel run enqueued",
		zap.String("task_id", taskID),
		zap.String("run_id", runID),
		zap.String("queue_task_id", info.ID),
	)
	return nil
}

func newReelTask(taskID, runID string) (*asynq.Task, error) {
	data, err := json.Marshal(reelTaskPayload{TaskID: taskID, RunID: runID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReelGenerate, data), nil
}

// ReelWorker processes queued reel runs
type ReelWorker struct {
	runner Runner
	logger *zap.Logger
}

func NewReelWorker(runner Runner, logger *zap.Logger) *ReelWorker {
	return &ReelWorker{runner: runner, logger: logger}
}

// ProcessTask handles reel generation task processing
func (w *ReelWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload reelTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.TaskID == "" {
		return fmt.Errorf("task payload without task id: %w", asynq.SkipRetry)
	}

	w.logger.Info("processing queued reel run", zap.String("task_id", payload.TaskID), zap.String("run_id", payload.RunID))
	err := w.runner.Run(ctx, payload.TaskID, payload.RunID)
	if errors.Is(err, ErrRunSuperseded) {
		w.logger.Info("queued reel run superseded", zap.String("task_id", payload.TaskID), zap.String("run_id", payload.RunID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("reel run %s: %v: %w", payload.TaskID, err, asynq.SkipRetry)
	}
	return nil
}

// Register mounts the worker's handlers on mux
func (w *ReelWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypeReelGenerate, w.ProcessTask)
}
