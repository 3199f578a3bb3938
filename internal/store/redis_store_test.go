package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, zaptest.NewLogger(t)), mr
}

func TestRedisStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		s, _ := newTestRedisStore(t)
		return s
	})
}

func TestRedisStore_KeyLayout(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	task := newTestTask("t-layout")
	task.ProjectID = "proj-layout"
	if err := s.Save(ctx, task); err != nil {
		t.Fatalf("save: %v", err)
	}

	if !mr.Exists("job:t-layout") {
		t.Error("expected job:t-layout key")
	}
	if got, _ := mr.Get("project:proj-layout"); got != "t-layout" {
		t.Errorf("expected project index to point at task, got %q", got)
	}
	if ok, _ := mr.SIsMember("jobs", "t-layout"); !ok {
		t.Error("expected task id in jobs set")
	}
}
