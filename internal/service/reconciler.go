package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/client"
	"github.com/smartmeetingai/api/internal/model"
	"github.com/smartmeetingai/api/internal/store"
	"github.com/smartmeetingai/api/internal/worker"
)

// Reconciler merges the outcome of asynchronous reel jobs into their task,
// whether it arrives from a status poll or a webhook.
type Reconciler struct {
	store   store.TaskStore
	clipper client.ReelClipper
	hub     worker.Notifier
	logger  *zap.Logger
	now     func() time.Time
}

func NewReconciler(taskStore store.TaskStore, clipper client.ReelClipper, hub worker.Notifier, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:   taskStore,
		clipper: clipper,
		hub:     hub,
		logger:  logger.With(zap.String("component", "reconciler")),
		now:     time.Now,
	}
}

// Apply merges sig into the task that owns its project id. A signal for a
// project that is already terminal leaves the record untouched, so repeated
// deliveries are harmless. Unknown project ids return model.ErrUnknownProject.
func (r *Reconciler) Apply(ctx context.Context, sig model.ReelSignal) (*model.Task, error) {
	if sig.ProjectID == "" {
		return nil, model.ErrUnknownProject
	}

	taskID, err := r.store.TaskIDForProject(ctx, sig.ProjectID)
	if err != nil {
		return nil, err
	}

	task, err := r.store.Update(ctx, taskID, func(t *model.Task) error {
		return r.merge(t, sig)
	})
	switch {
	case errors.Is(err, store.ErrNoChange):
		r.logger.Debug("signal already applied",
			zap.String("task_id", taskID),
			zap.String("project_id", sig.ProjectID),
			zap.String("source", sig.Source),
		)
		return task, nil
	case errors.Is(err, model.ErrTaskNotFound):
		return nil, model.ErrUnknownProject
	case err != nil:
		return nil, err
	}

	r.logger.Info("reel signal applied",
		zap.String("task_id", taskID),
		zap.String("project_id", sig.ProjectID),
		zap.String("state", string(sig.State)),
		zap.String("source", sig.Source),
	)
	if r.hub != nil {
		r.hub.BroadcastProgress(task.ID, task.Progress, task.Status, task.Message)
	}
	return task, nil
}

func (r *Reconciler) merge(t *model.Task, sig model.ReelSignal) error {
	if !sig.State.IsTerminal() {
		return store.ErrNoChange
	}

	idx := t.ReelIndexForProject(sig.ProjectID)
	live := t.ProjectID == sig.ProjectID
	if idx < 0 && !live {
		// the index still points here but a newer run dropped this project
		return model.ErrUnknownProject
	}

	completedAt := sig.CompletedAt
	if completedAt.IsZero() {
		completedAt = r.now()
	}
	completedAt = completedAt.UTC()

	if idx >= 0 {
		reel := &t.Reels[idx]
		if reel.RemoteStatus.IsTerminal() {
			return store.ErrNoChange
		}
		reel.RemoteStatus = sig.State
		if sig.State == model.RemoteStateCompleted {
			reel.URL = sig.VideoURL
			reel.Thumbnail = sig.ThumbnailURL
			reel.FilePath = sig.VideoURL
			reel.CompletedAt = &completedAt
		} else {
			reel.Status = model.ReelStatusFailed
			reel.Progress = 0
			reel.Error = signalError(sig)
			reel.Message = fmt.Sprintf("Error: %s", reel.Error)
		}
	} else if t.VideoURL != "" || t.Status == model.TaskStatusFailed {
		return store.ErrNoChange
	}

	if !live {
		return nil
	}

	if sig.State == model.RemoteStateCompleted {
		t.VideoURL = sig.VideoURL
		t.ThumbnailURL = sig.ThumbnailURL
	} else {
		t.Error = signalError(sig)
	}

	// task status belongs to the orchestrator until every config has a reel
	if len(t.Reels) < len(t.Configs) {
		return nil
	}
	if sig.State == model.RemoteStateCompleted {
		t.Status = model.TaskStatusCompleted
		if t.CompletedAt == nil {
			t.CompletedAt = &completedAt
		}
	} else {
		t.Status = model.TaskStatusFailed
	}
	return nil
}

func signalError(sig model.ReelSignal) string {
	if sig.Error == "" {
		return "Unknown error"
	}
	return sig.Error
}

// Poll returns the task after checking every reel that is still waiting on
// the clipping service. Check failures are logged and the stored view is
// returned.
func (r *Reconciler) Poll(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := r.store.Get(ctx, taskID)
	if err != nil {
		return nil, err
	}

	pending := pendingProjects(task)
	if len(pending) == 0 {
		return task, nil
	}

	applied := false
	for _, pid := range pending {
		st, err := r.clipper.CheckReel(ctx, pid)
		if err != nil {
			r.logger.Warn("status check failed", zap.String("task_id", taskID), zap.String("project_id", pid), zap.Error(err))
			continue
		}
		if !st.State.IsTerminal() {
			continue
		}

		updated, err := r.Apply(ctx, model.ReelSignal{
			ProjectID:    pid,
			State:        st.State,
			VideoURL:     st.VideoURL,
			ThumbnailURL: st.ThumbnailURL,
			Error:        st.Error,
			CompletedAt:  st.CompletedAt,
			Source:       model.SignalSourcePoll,
		})
		if err != nil {
			r.logger.Warn("failed to apply polled status", zap.String("task_id", taskID), zap.String("project_id", pid), zap.Error(err))
			continue
		}
		task = updated
		applied = true
	}

	if !applied {
		return task, nil
	}
	return r.store.Get(ctx, taskID)
}

// pendingProjects lists the project ids still awaiting a terminal result.
func pendingProjects(t *model.Task) []string {
	var ids []string
	liveSeen := false
	for _, reel := range t.Reels {
		if reel.ProjectID == "" || reel.RemoteStatus != model.RemoteStateProcessing {
			continue
		}
		ids = append(ids, reel.ProjectID)
		if reel.ProjectID == t.ProjectID {
			liveSeen = true
		}
	}
	if t.ProjectID != "" && !liveSeen && t.Status == model.TaskStatusProcessing && t.ReelIndexForProject(t.ProjectID) < 0 {
		ids = append(ids, t.ProjectID)
	}
	return ids
}
