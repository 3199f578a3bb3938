package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/smartmeetingai/api/internal/model"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHub_BroadcastReachesTaskSubscribers(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	go hub.Run()

	subscriber := &Client{TaskID: "task-1", Send: make(chan []byte, 4)}
	other := &Client{TaskID: "task-2", Send: make(chan []byte, 4)}
	hub.Register(subscriber)
	hub.Register(other)
	waitFor(t, func() bool { return hub.Subscribers("task-1") == 1 && hub.Subscribers("task-2") == 1 })

	hub.BroadcastProgress("task-1", 42, model.TaskStatusProcessing, "Generating reel 1/2...")

	select {
	case data := <-subscriber.Send:
		var msg model.WSProgressMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if msg.Type != model.WSMessageTypeProgress || msg.TaskID != "task-1" || msg.Progress != 42 {
			t.Errorf("unexpected message %+v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not receive broadcast")
	}

	select {
	case data := <-other.Send:
		t.Errorf("unexpected message for other task: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	go hub.Run()

	client := &Client{TaskID: "task-1", Send: make(chan []byte, 1)}
	hub.Register(client)
	hub.Unregister(client)
	waitFor(t, func() bool { return hub.Subscribers("task-1") == 0 })

	if _, ok := <-client.Send; ok {
		t.Error("expected send channel to be closed")
	}

	// a second unregister must not close the channel twice
	hub.Unregister(client)
}

func TestHub_DropsSlowConsumer(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t))
	go hub.Run()

	slow := &Client{TaskID: "task-1", Send: make(chan []byte)}
	hub.Register(slow)
	waitFor(t, func() bool { return hub.Subscribers("task-1") == 1 })

	hub.BroadcastError("task-1", "GENERATION_FAILED", "boom")
	waitFor(t, func() bool { return hub.Subscribers("task-1") == 0 })
}
