package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap/zaptest"

	"github.com/smartmeetingai/api/internal/client"
	"github.com/smartmeetingai/api/internal/model"
	"github.com/smartmeetingai/api/internal/storage"
	"github.com/smartmeetingai/api/internal/store"
)

const testBaseURL = "http://localhost:8000"

func newTestStore(t *testing.T) *store.JSONStore {
	t.Helper()
	st, err := store.NewJSONStore(afero.NewMemMapFs(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	return st
}

func newTestMedia(t *testing.T) (*storage.LocalStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return storage.NewLocalStore(fs, testBaseURL), fs
}

func seedTask(t *testing.T, st store.Store, task *model.Task) {
	t.Helper()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	if task.Reels == nil {
		task.Reels = []model.Reel{}
	}
	if err := st.Create(context.Background(), task); err != nil {
		t.Fatalf("Create: %v", err)
	}
}

func getTask(t *testing.T, st store.TaskStore, id string) *model.Task {
	t.Helper()
	task, err := st.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	return task
}

type fakeClipper struct {
	mu     sync.Mutex
	checks map[string]*client.ReelStatus
	errs   map[string]error
	calls  []string
}

func (f *fakeClipper) Name() string       { return "fake" }
func (f *fakeClipper) IsConfigured() bool { return true }

func (f *fakeClipper) SubmitReel(ctx context.Context, req *client.ReelRequest) (*client.ReelSubmission, error) {
	return &client.ReelSubmission{ProjectID: "proj"}, nil
}

func (f *fakeClipper) CheckReel(ctx context.Context, projectID string) (*client.ReelStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, projectID)
	if err := f.errs[projectID]; err != nil {
		return nil, err
	}
	if st, ok := f.checks[projectID]; ok {
		return st, nil
	}
	return &client.ReelStatus{ProjectID: projectID, State: model.RemoteStateProcessing}, nil
}
