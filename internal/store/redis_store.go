package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/model"
)

const (
	taskIndexKey = "jobs"
	fileIndexKey = "files"

	maxTxRetries = 100
)

// RedisStore keeps each task as a JSON value under job:<id>, for deployments
// where several processes share the store.
type RedisStore struct {
	redis  *redis.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisStore(redisClient *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{
		redis:  redisClient,
		logger: logger,
		now:    time.Now,
	}
}

func (s *RedisStore) Create(ctx context.Context, task *model.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, taskKey(task.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	if !ok {
		return model.ErrTaskExists
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, taskIndexKey, task.ID)
		indexProjects(ctx, pipe, task)
		return nil
	})
	return err
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Task, error) {
	data, err := s.redis.Get(ctx, taskKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, model.ErrTaskNotFound
		}
		return nil, err
	}

	var task model.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *RedisStore) Save(ctx context.Context, task *model.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}

	prev, err := s.Get(ctx, task.ID)
	if err != nil && !errors.Is(err, model.ErrTaskNotFound) {
		return err
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, taskKey(task.ID), data, 0)
		pipe.SAdd(ctx, taskIndexKey, task.ID)
		if prev != nil {
			unindexProjects(ctx, pipe, droppedProjects(projectIDs(prev), task))
		}
		indexProjects(ctx, pipe, task)
		return nil
	})
	return err
}

func (s *RedisStore) UpdateStatus(ctx context.Context, id string, status model.TaskStatus, progress int, message string) error {
	_, err := s.Update(ctx, id, statusUpdate(status, progress, message))
	return err
}

// Update applies fn inside a WATCH/MULTI transaction, retrying when another
// writer touched the record in between.
func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*model.Task, error) {
	key := taskKey(id)
	var result *model.Task

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				return model.ErrTaskNotFound
			}
			return err
		}

		var task model.Task
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}
		prevProjects := projectIDs(&task)

		if err := fn(&task); err != nil {
			if errors.Is(err, ErrNoChange) {
				var unchanged model.Task
				if uerr := json.Unmarshal(data, &unchanged); uerr != nil {
					return uerr
				}
				result = &unchanged
			}
			return err
		}

		task.ID = id
		stamp(&task, s.now())

		payload, err := json.Marshal(&task)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)
			unindexProjects(ctx, pipe, droppedProjects(prevProjects, &task))
			indexProjects(ctx, pipe, &task)
			return nil
		})
		if err == nil {
			result = &task
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return result, nil
		case errors.Is(err, ErrNoChange):
			return result, ErrNoChange
		case errors.Is(err, redis.TxFailedErr):
			s.logger.Debug("task update conflict, retrying", zap.String("task_id", id), zap.Int("attempt", i+1))
			continue
		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("task %s: update conflict after %d attempts", id, maxTxRetries)
}

func (s *RedisStore) List(ctx context.Context) ([]*model.Task, error) {
	ids, err := s.redis.SMembers(ctx, taskIndexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*model.Task{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = taskKey(id)
	}

	values, err := s.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	tasks := make([]*model.Task, 0, len(values))
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			continue
		}
		var task model.Task
		if err := json.Unmarshal([]byte(str), &task); err != nil {
			s.logger.Warn("skipping unreadable task", zap.String("task_id", ids[i]), zap.Error(err))
			continue
		}
		tasks = append(tasks, &task)
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	_, err := s.DeleteIf(ctx, id, nil)
	return err
}

// DeleteIf removes the task inside a WATCH/MULTI transaction when fn accepts
// the current record. A nil fn always deletes.
func (s *RedisStore) DeleteIf(ctx context.Context, id string, fn UpdateFunc) (*model.Task, error) {
	key := taskKey(id)
	var deleted *model.Task

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				return model.ErrTaskNotFound
			}
			return err
		}

		var task model.Task
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}
		if fn != nil {
			if err := fn(&task); err != nil {
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, taskIndexKey, id)
			unindexProjects(ctx, pipe, projectIDs(&task))
			return nil
		})
		if err == nil {
			deleted = &task
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return deleted, nil
		case errors.Is(err, redis.TxFailedErr):
			s.logger.Debug("task delete conflict, retrying", zap.String("task_id", id), zap.Int("attempt", i+1))
			continue
		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("task %s: delete conflict after %d attempts", id, maxTxRetries)
}

func (s *RedisStore) IndexProject(ctx context.Context, projectID, taskID string) error {
	return s.redis.Set(ctx, projectKey(projectID), taskID, 0).Err()
}

func (s *RedisStore) TaskIDForProject(ctx context.Context, projectID string) (string, error) {
	id, err := s.redis.Get(ctx, projectKey(projectID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", model.ErrUnknownProject
		}
		return "", err
	}
	return id, nil
}

func (s *RedisStore) SaveFile(ctx context.Context, file *model.FileRecord) error {
	data, err := json.Marshal(file)
	if err != nil {
		return err
	}
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, fileKey(file.ID), data, 0)
		pipe.SAdd(ctx, fileIndexKey, file.ID)
		return nil
	})
	return err
}

func (s *RedisStore) GetFile(ctx context.Context, id string) (*model.FileRecord, error) {
	data, err := s.redis.Get(ctx, fileKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, model.ErrFileNotFound
		}
		return nil, err
	}
	var file model.FileRecord
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

func (s *RedisStore) DeleteFile(ctx context.Context, id string) error {
	n, err := s.redis.Del(ctx, fileKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrFileNotFound
	}
	return s.redis.SRem(ctx, fileIndexKey, id).Err()
}

func (s *RedisStore) ListFiles(ctx context.Context) ([]*model.FileRecord, error) {
	ids, err := s.redis.SMembers(ctx, fileIndexKey).Result()
	if err != nil {
		return nil, err
	}
	files := make([]*model.FileRecord, 0, len(ids))
	for _, id := range ids {
		f, err := s.GetFile(ctx, id)
		if err != nil {
			if errors.Is(err, model.ErrFileNotFound) {
				continue
			}
			return nil, err
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].UploadedAt.Before(files[j].UploadedAt) })
	return files, nil
}

func indexProjects(ctx context.Context, pipe redis.Pipeliner, task *model.Task) {
	for _, pid := range projectIDs(task) {
		pipe.Set(ctx, projectKey(pid), task.ID, 0)
	}
}

func unindexProjects(ctx context.Context, pipe redis.Pipeliner, ids []string) {
	for _, pid := range ids {
		pipe.Del(ctx, projectKey(pid))
	}
}

func taskKey(id string) string    { return fmt.Sprintf("job:%s", id) }
func fileKey(id string) string    { return fmt.Sprintf("file:%s", id) }
func projectKey(id string) string { return fmt.Sprintf("project:%s", id) }
