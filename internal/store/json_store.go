package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/model"
)

const (
	TasksDocument = "tasks.json"
	FilesDocument = "files.json"
)

// JSONStore keeps tasks and file records in two JSON documents. Every
// mutation rewrites the whole document and flushes it before returning.
type JSONStore struct {
	fs     afero.Fs
	logger *zap.Logger
	now    func() time.Time

	keys *keyMutex

	mu       sync.RWMutex
	tasks    map[string]*model.Task
	files    map[string]*model.FileRecord
	projects map[string]string

	tasksFlush sync.Mutex
	filesFlush sync.Mutex
}

// NewJSONStore opens the documents under the root of fs, creating them lazily.
func NewJSONStore(fs afero.Fs, logger *zap.Logger) (*JSONStore, error) {
	s := &JSONStore{
		fs:       fs,
		logger:   logger,
		now:      time.Now,
		keys:     newKeyMutex(),
		tasks:    make(map[string]*model.Task),
		files:    make(map[string]*model.FileRecord),
		projects: make(map[string]string),
	}

	if err := readDocument(fs, TasksDocument, &s.tasks); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", TasksDocument, err)
	}
	if err := readDocument(fs, FilesDocument, &s.files); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", FilesDocument, err)
	}

	for id, t := range s.tasks {
		if t == nil {
			delete(s.tasks, id)
			continue
		}
		t.ID = id
		for _, pid := range projectIDs(t) {
			s.projects[pid] = id
		}
	}

	logger.Info("json store loaded",
		zap.Int("tasks", len(s.tasks)),
		zap.Int("files", len(s.files)),
	)
	return s, nil
}

func (s *JSONStore) Create(ctx context.Context, task *model.Task) error {
	release := s.keys.Lock(task.ID)
	defer release()

	stored, err := cloneTask(task)
	if err != nil {
		return err
	}

	s.mu.RLock()
	_, exists := s.tasks[task.ID]
	s.mu.RUnlock()
	if exists {
		return model.ErrTaskExists
	}

	return s.commitTask(task.ID, stored)
}

func (s *JSONStore) Get(ctx context.Context, id string) (*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, model.ErrTaskNotFound
	}
	return cloneTask(t)
}

// Save replaces the whole record. Concurrent writers race: the last Save wins,
// including over fields written by an interleaved Update.
func (s *JSONStore) Save(ctx context.Context, task *model.Task) error {
	release := s.keys.Lock(task.ID)
	defer release()

	stored, err := cloneTask(task)
	if err != nil {
		return err
	}

	return s.commitTask(task.ID, stored)
}

func (s *JSONStore) UpdateStatus(ctx context.Context, id string, status model.TaskStatus, progress int, message string) error {
	_, err := s.Update(ctx, id, statusUpdate(status, progress, message))
	return err
}

// Update runs fn on a private copy of the record under the key lock and
// stores the result. If fn returns ErrNoChange the current record is returned
// together with ErrNoChange and nothing is written.
func (s *JSONStore) Update(ctx context.Context, id string, fn UpdateFunc) (*model.Task, error) {
	release := s.keys.Lock(id)
	defer release()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := fn(current); err != nil {
		if errors.Is(err, ErrNoChange) {
			unchanged, getErr := s.Get(ctx, id)
			if getErr != nil {
				return nil, getErr
			}
			return unchanged, ErrNoChange
		}
		return nil, err
	}

	current.ID = id
	stamp(current, s.now())

	stored, err := cloneTask(current)
	if err != nil {
		return nil, err
	}

	if err := s.commitTask(id, stored); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *JSONStore) List(ctx context.Context) ([]*model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		c, err := cloneTask(t)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *JSONStore) Delete(ctx context.Context, id string) error {
	_, err := s.DeleteIf(ctx, id, nil)
	return err
}

// DeleteIf removes the task when fn, run on a copy under the key lock,
// returns nil. A nil fn always deletes.
func (s *JSONStore) DeleteIf(ctx context.Context, id string, fn UpdateFunc) (*model.Task, error) {
	release := s.keys.Lock(id)
	defer release()

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if fn != nil {
		if err := fn(current); err != nil {
			return nil, err
		}
	}

	if err := s.commitTask(id, nil); err != nil {
		return nil, err
	}
	return current, nil
}

// IndexProject maps an external correlation id to its task. Ids carried in a
// stored record are indexed automatically; the index is rebuilt from the
// records on load.
func (s *JSONStore) IndexProject(ctx context.Context, projectID, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[projectID] = taskID
	return nil
}

func (s *JSONStore) TaskIDForProject(ctx context.Context, projectID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.projects[projectID]
	if !ok {
		return "", model.ErrUnknownProject
	}
	return id, nil
}

func (s *JSONStore) SaveFile(ctx context.Context, file *model.FileRecord) error {
	c := *file
	return s.commitFile(file.ID, &c)
}

func (s *JSONStore) GetFile(ctx context.Context, id string) (*model.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[id]
	if !ok {
		return nil, model.ErrFileNotFound
	}
	c := *f
	return &c, nil
}

func (s *JSONStore) DeleteFile(ctx context.Context, id string) error {
	s.mu.RLock()
	_, ok := s.files[id]
	s.mu.RUnlock()
	if !ok {
		return model.ErrFileNotFound
	}
	return s.commitFile(id, nil)
}

func (s *JSONStore) ListFiles(ctx context.Context) ([]*model.FileRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.FileRecord, 0, len(s.files))
	for _, f := range s.files {
		c := *f
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

// commitTask installs next for id, or removes the task when next is nil, and
// flushes the document. A failed flush restores the previous record and its
// index entries. Caller holds the key lock.
func (s *JSONStore) commitTask(id string, next *model.Task) error {
	s.mu.Lock()
	prev, had := s.tasks[id]
	indexed := s.indexedProjects(id)
	if next != nil {
		s.put(next)
	} else {
		s.remove(id)
	}
	s.mu.Unlock()

	if err := s.flushTasks(); err != nil {
		s.mu.Lock()
		s.remove(id)
		if had {
			s.tasks[id] = prev
		}
		for _, pid := range indexed {
			s.projects[pid] = id
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *JSONStore) commitFile(id string, next *model.FileRecord) error {
	s.mu.Lock()
	prev, had := s.files[id]
	if next != nil {
		s.files[id] = next
	} else {
		delete(s.files, id)
	}
	s.mu.Unlock()

	if err := s.flushFiles(); err != nil {
		s.mu.Lock()
		if had {
			s.files[id] = prev
		} else {
			delete(s.files, id)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// put stores t and indexes its correlation ids. Ids carried only by the
// record it replaces leave the index. Caller holds s.mu.
func (s *JSONStore) put(t *model.Task) {
	if prev, ok := s.tasks[t.ID]; ok {
		for _, pid := range droppedProjects(projectIDs(prev), t) {
			if s.projects[pid] == t.ID {
				delete(s.projects, pid)
			}
		}
	}
	s.tasks[t.ID] = t
	for _, pid := range projectIDs(t) {
		s.projects[pid] = t.ID
	}
}

// remove drops the task and every index entry pointing at it. Caller holds s.mu.
func (s *JSONStore) remove(id string) {
	delete(s.tasks, id)
	for pid, taskID := range s.projects {
		if taskID == id {
			delete(s.projects, pid)
		}
	}
}

func (s *JSONStore) indexedProjects(id string) []string {
	var pids []string
	for pid, taskID := range s.projects {
		if taskID == id {
			pids = append(pids, pid)
		}
	}
	return pids
}

// flushTasks snapshots the task map after taking the flush lock, so the last
// completed flush always carries the newest state.
func (s *JSONStore) flushTasks() error {
	s.tasksFlush.Lock()
	defer s.tasksFlush.Unlock()

	s.mu.RLock()
	data, err := json.MarshalIndent(s.tasks, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", TasksDocument, err)
	}
	if err := writeDocument(s.fs, TasksDocument, data); err != nil {
		s.logger.Error("failed to write task store", zap.Error(err))
		return err
	}
	return nil
}

func (s *JSONStore) flushFiles() error {
	s.filesFlush.Lock()
	defer s.filesFlush.Unlock()

	s.mu.RLock()
	data, err := json.MarshalIndent(s.files, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", FilesDocument, err)
	}
	if err := writeDocument(s.fs, FilesDocument, data); err != nil {
		s.logger.Error("failed to write file store", zap.Error(err))
		return err
	}
	return nil
}

func readDocument(fs afero.Fs, name string, v interface{}) error {
	data, err := afero.ReadFile(fs, name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// writeDocument replaces name atomically: temp file, fsync, rename.
func writeDocument(fs afero.Fs, name string, data []byte) error {
	tmp := name + ".tmp"
	f, err := fs.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := fs.Rename(tmp, name); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
