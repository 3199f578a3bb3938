package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/smartmeetingai/api/internal/model"
)

// ErrNoChange may be returned by an Update callback to leave the record untouched.
var ErrNoChange = errors.New("no change")

// UpdateFunc mutates a task in place during a read-modify-write cycle.
type UpdateFunc func(task *model.Task) error

// TaskStore is the keyed record of upload and processing state.
type TaskStore interface {
	Create(ctx context.Context, task *model.Task) error
	Get(ctx context.Context, id string) (*model.Task, error)
	Save(ctx context.Context, task *model.Task) error
	UpdateStatus(ctx context.Context, id string, status model.TaskStatus, progress int, message string) error
	Update(ctx context.Context, id string, fn UpdateFunc) (*model.Task, error)
	List(ctx context.Context) ([]*model.Task, error)
	Delete(ctx context.Context, id string) error
	// DeleteIf removes the task only when fn accepts the current record,
	// checked under the same lock as Update. fn's error is returned as is.
	DeleteIf(ctx context.Context, id string, fn UpdateFunc) (*model.Task, error)
	IndexProject(ctx context.Context, projectID, taskID string) error
	TaskIDForProject(ctx context.Context, projectID string) (string, error)
}

// FileStore keeps upload metadata.
type FileStore interface {
	SaveFile(ctx context.Context, file *model.FileRecord) error
	GetFile(ctx context.Context, id string) (*model.FileRecord, error)
	DeleteFile(ctx context.Context, id string) error
	ListFiles(ctx context.Context) ([]*model.FileRecord, error)
}

// Store is the combined task and file store.
type Store interface {
	TaskStore
	FileStore
}

// statusUpdate returns the UpdateFunc applied by UpdateStatus.
func statusUpdate(status model.TaskStatus, progress int, message string) UpdateFunc {
	return func(t *model.Task) error {
		t.Status = status
		t.Progress = progress
		t.Message = message
		return nil
	}
}

func stamp(t *model.Task, now time.Time) {
	ts := now.UTC()
	t.LastUpdated = &ts
}

// cloneTask deep-copies a task through its JSON form so that callers never
// share slices with the stored record.
func cloneTask(t *model.Task) (*model.Task, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	var out model.Task
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// projectIDs lists every correlation id a task carries.
func projectIDs(t *model.Task) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	add(t.ProjectID)
	for _, r := range t.Reels {
		add(r.ProjectID)
	}
	return ids
}

// droppedProjects lists the ids in prev that next no longer carries.
func droppedProjects(prev []string, next *model.Task) []string {
	keep := make(map[string]bool)
	for _, pid := range projectIDs(next) {
		keep[pid] = true
	}
	var dropped []string
	for _, pid := range prev {
		if !keep[pid] {
			dropped = append(dropped, pid)
		}
	}
	return dropped
}

// keyMutex hands out one mutex per key, dropping it once no goroutine holds
// or waits for it.
type keyMutex struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyMutex() *keyMutex {
	return &keyMutex{locks: make(map[string]*keyEntry)}
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
