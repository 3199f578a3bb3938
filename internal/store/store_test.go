package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/smartmeetingai/api/internal/model"
)

func newTestTask(id string) *model.Task {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &model.Task{
		ID:       id,
		Status:   model.TaskStatusUploaded,
		Filename: "standup.mp4",
		FilePath: "uploads/" + id + "_standup.mp4",
		VideoInfo: model.VideoInfo{
			FileSizeMB: 12.5,
			Duration:   "00:05:30",
			Resolution: "1920x1080",
			Format:     "MP4",
			UploadTime: created,
		},
		Reels:     []model.Reel{},
		CreatedAt: created,
	}
}

// runStoreContract exercises behaviour every Store implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("SaveGetRoundTrip", func(t *testing.T) {
		s := newStore(t)
		task := newTestTask("t-roundtrip")
		task.Configs = []model.ReelConfig{{Duration: 30, Caption: "hello", Platforms: []string{"tiktok"}, Style: "casual"}}
		task.Reels = []model.Reel{model.NewReel(task.ID, 1, task.Configs[0])}
		task.Transcript = &model.Transcript{Text: "we discussed the budget", AudioDuration: 120, Service: "assemblyai", GeneratedAt: task.CreatedAt}

		if err := s.Save(ctx, task); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := s.Get(ctx, task.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if diff := cmp.Diff(task, got); diff != "" {
			t.Errorf("round trip mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		if _, err := s.Get(ctx, "nope"); !errors.Is(err, model.ErrTaskNotFound) {
			t.Errorf("expected ErrTaskNotFound, got %v", err)
		}
	})

	t.Run("CreateDuplicate", func(t *testing.T) {
		s := newStore(t)
		if err := s.Create(ctx, newTestTask("dup")); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.Create(ctx, newTestTask("dup")); !errors.Is(err, model.ErrTaskExists) {
			t.Errorf("expected ErrTaskExists, got %v", err)
		}
	})

	t.Run("UpdateStatusStampsLastUpdated", func(t *testing.T) {
		s := newStore(t)
		task := newTestTask("t-status")
		if err := s.Create(ctx, task); err != nil {
			t.Fatalf("create: %v", err)
		}
		if err := s.UpdateStatus(ctx, task.ID, model.TaskStatusProcessing, 10, "Generating reel 1/2..."); err != nil {
			t.Fatalf("update status: %v", err)
		}
		got, err := s.Get(ctx, task.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.Status != model.TaskStatusProcessing || got.Progress != 10 || got.Message != "Generating reel 1/2..." {
			t.Errorf("unexpected status fields: %+v", got)
		}
		if got.LastUpdated == nil {
			t.Error("expected last_updated to be stamped")
		}
		if got.Filename != task.Filename {
			t.Errorf("partial update lost filename: %q", got.Filename)
		}
	})

	t.Run("UpdateStatusMissing", func(t *testing.T) {
		s := newStore(t)
		err := s.UpdateStatus(ctx, "missing", model.TaskStatusProcessing, 5, "")
		if !errors.Is(err, model.ErrTaskNotFound) {
			t.Errorf("expected ErrTaskNotFound, got %v", err)
		}
	})

	t.Run("UpdateNoChange", func(t *testing.T) {
		s := newStore(t)
		task := newTestTask("t-nochange")
		if err := s.Create(ctx, task); err != nil {
			t.Fatalf("create: %v", err)
		}
		got, err := s.Update(ctx, task.ID, func(t *model.Task) error {
			t.Message = "should not persist"
			return ErrNoChange
		})
		if !errors.Is(err, ErrNoChange) {
			t.Fatalf("expected ErrNoChange, got %v", err)
		}
		if got == nil || got.Message != "" {
			t.Errorf("expected unchanged record, got %+v", got)
		}
		stored, _ := s.Get(ctx, task.ID)
		if stored.Message != "" || stored.LastUpdated != nil {
			t.Errorf("record was written: %+v", stored)
		}
	})

	t.Run("ConcurrentUpdatesKeepEveryWrite", func(t *testing.T) {
		s := newStore(t)
		task := newTestTask("t-concurrent")
		if err := s.Create(ctx, task); err != nil {
			t.Fatalf("create: %v", err)
		}

		const writers = 25
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, err := s.Update(ctx, task.ID, func(t *model.Task) error {
					t.Reels = append(t.Reels, model.Reel{ID: fmt.Sprintf("r%d", n), Status: model.ReelStatusCompleted})
					return nil
				})
				if err != nil {
					t.Errorf("update %d: %v", n, err)
				}
			}(i)
		}
		wg.Wait()

		got, err := s.Get(ctx, task.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if len(got.Reels) != writers {
			t.Errorf("expected %d reels, got %d", writers, len(got.Reels))
		}
	})

	t.Run("ProjectIndexFollowsRecord", func(t *testing.T) {
		s := newStore(t)
		task := newTestTask("t-index")
		if err := s.Create(ctx, task); err != nil {
			t.Fatalf("create: %v", err)
		}
		_, err := s.Update(ctx, task.ID, func(t *model.Task) error {
			t.ProjectID = "proj-1"
			t.Reels = append(t.Reels, model.Reel{ID: "r1", ProjectID: "proj-1", RemoteStatus: model.RemoteStateProcessing})
			return nil
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}

		id, err := s.TaskIDForProject(ctx, "proj-1")
		if err != nil || id != task.ID {
			t.Fatalf("expected %s, got %q (%v)", task.ID, id, err)
		}

		if err := s.IndexProject(ctx, "proj-manual", task.ID); err != nil {
			t.Fatalf("index: %v", err)
		}
		if id, _ := s.TaskIDForProject(ctx, "proj-manual"); id != task.ID {
			t.Errorf("manual index not resolved: %q", id)
		}

		if err := s.Delete(ctx, task.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if _, err := s.Get(ctx, task.ID); !errors.Is(err, model.ErrTaskNotFound) {
			t.Errorf("expected task gone, got %v", err)
		}
		if _, err := s.TaskIDForProject(ctx, "proj-1"); !errors.Is(err, model.ErrUnknownProject) {
			t.Errorf("expected index entry removed, got %v", err)
		}
	})

	t.Run("StaleSaveOverwritesInterleavedUpdate", func(t *testing.T) {
		// Save is a full replace: a copy read before an Update loses that
		// Update's fields when written back.
		s := newStore(t)
		task := newTestTask("t-stale")
		if err := s.Create(ctx, task); err != nil {
			t.Fatalf("create: %v", err)
		}
		stale, _ := s.Get(ctx, task.ID)

		if _, err := s.Update(ctx, task.ID, func(t *model.Task) error {
			t.ProjectID = "proj-stale"
			return nil
		}); err != nil {
			t.Fatalf("update: %v", err)
		}

		stale.Message = "written from stale copy"
		if err := s.Save(ctx, stale); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, _ := s.Get(ctx, task.ID)
		if got.ProjectID != "" {
			t.Errorf("expected stale save to win, project_id=%q", got.ProjectID)
		}
		if got.Message != "written from stale copy" {
			t.Errorf("unexpected message %q", got.Message)
		}
	})

	t.Run("ResetDropsProjectsFromIndex", func(t *testing.T) {
		s := newStore(t)
		task := newTestTask("t-reset")
		task.ProjectID = "proj-old"
		task.Reels = []model.Reel{{ID: "r1", ProjectID: "proj-old", RemoteStatus: model.RemoteStateProcessing}}
		if err := s.Create(ctx, task); err != nil {
			t.Fatalf("create: %v", err)
		}

		if _, err := s.Update(ctx, task.ID, func(t *model.Task) error {
			t.ProjectID = "proj-new"
			t.Reels = []model.Reel{{ID: "r1", ProjectID: "proj-new", RemoteStatus: model.RemoteStateProcessing}}
			return nil
		}); err != nil {
			t.Fatalf("update: %v", err)
		}

		if _, err := s.TaskIDForProject(ctx, "proj-old"); !errors.Is(err, model.ErrUnknownProject) {
			t.Errorf("expected proj-old dropped from index, got %v", err)
		}
		if id, err := s.TaskIDForProject(ctx, "proj-new"); err != nil || id != task.ID {
			t.Errorf("expected proj-new indexed, got %q (%v)", id, err)
		}

		reset, _ := s.Get(ctx, task.ID)
		reset.ProjectID = ""
		reset.Reels = []model.Reel{}
		if err := s.Save(ctx, reset); err != nil {
			t.Fatalf("save: %v", err)
		}
		if _, err := s.TaskIDForProject(ctx, "proj-new"); !errors.Is(err, model.ErrUnknownProject) {
			t.Errorf("expected proj-new dropped after save, got %v", err)
		}
	})

	t.Run("DeleteIf", func(t *testing.T) {
		s := newStore(t)
		task := newTestTask("t-delete-if")
		task.Reels = []model.Reel{{ID: "r1", ProjectID: "proj-del", RemoteStatus: model.RemoteStateProcessing}}
		if err := s.Create(ctx, task); err != nil {
			t.Fatalf("create: %v", err)
		}

		errBusy := errors.New("busy")
		if _, err := s.DeleteIf(ctx, task.ID, func(t *model.Task) error { return errBusy }); !errors.Is(err, errBusy) {
			t.Fatalf("expected refusal, got %v", err)
		}
		if _, err := s.Get(ctx, task.ID); err != nil {
			t.Fatalf("refused delete removed the task: %v", err)
		}

		deleted, err := s.DeleteIf(ctx, task.ID, func(t *model.Task) error { return nil })
		if err != nil {
			t.Fatalf("delete: %v", err)
		}
		if deleted.FilePath != task.FilePath {
			t.Errorf("expected the deleted record back, got %+v", deleted)
		}
		if _, err := s.Get(ctx, task.ID); !errors.Is(err, model.ErrTaskNotFound) {
			t.Errorf("expected task gone, got %v", err)
		}
		if _, err := s.TaskIDForProject(ctx, "proj-del"); !errors.Is(err, model.ErrUnknownProject) {
			t.Errorf("expected index entry removed, got %v", err)
		}
		if _, err := s.DeleteIf(ctx, task.ID, nil); !errors.Is(err, model.ErrTaskNotFound) {
			t.Errorf("expected ErrTaskNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		s := newStore(t)
		first := newTestTask("a")
		second := newTestTask("b")
		second.CreatedAt = first.CreatedAt.Add(time.Hour)
		_ = s.Create(ctx, second)
		_ = s.Create(ctx, first)

		tasks, err := s.List(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(tasks) != 2 || tasks[0].ID != "a" || tasks[1].ID != "b" {
			t.Errorf("unexpected list order: %+v", tasks)
		}
	})

	t.Run("Files", func(t *testing.T) {
		s := newStore(t)
		rec := &model.FileRecord{
			ID:          "f1",
			Filename:    "standup.mp4",
			FilePath:    "uploads/f1_standup.mp4",
			Size:        1024,
			ContentType: "video/mp4",
			UploadedAt:  time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		}
		if err := s.SaveFile(ctx, rec); err != nil {
			t.Fatalf("save file: %v", err)
		}
		got, err := s.GetFile(ctx, "f1")
		if err != nil {
			t.Fatalf("get file: %v", err)
		}
		if diff := cmp.Diff(rec, got); diff != "" {
			t.Errorf("file mismatch (-want +got):\n%s", diff)
		}
		files, _ := s.ListFiles(ctx)
		if len(files) != 1 {
			t.Errorf("expected 1 file, got %d", len(files))
		}
		if err := s.DeleteFile(ctx, "f1"); err != nil {
			t.Fatalf("delete file: %v", err)
		}
		if _, err := s.GetFile(ctx, "f1"); !errors.Is(err, model.ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, got %v", err)
		}
	})
}
