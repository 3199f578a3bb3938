package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/smartmeetingai/api/internal/config"
)

func newTestAssemblyAI(t *testing.T, baseURL, apiKey string) *AssemblyAIClient {
	t.Helper()
	return NewAssemblyAIClient(&config.AssemblyAIConfig{
		APIKey:         apiKey,
		BaseURL:        baseURL,
		PollIntervalMs: 1,
		MaxWait:        5,
	}, testHTTPConfig(), zaptest.NewLogger(t))
}

func openerFor(data string, opens *int32) Opener {
	return func() (io.ReadCloser, error) {
		atomic.AddInt32(opens, 1)
		return io.NopCloser(bytes.NewReader([]byte(data))), nil
	}
}

func TestAssemblyAITranscribe(t *testing.T) {
	var uploads, polls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("authorization") != "aai-key" {
			t.Errorf("expected authorization header on %s", r.URL.Path)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/upload":
			body, _ := io.ReadAll(r.Body)
			if string(body) != "video bytes" {
				t.Errorf("unexpected upload body %q", body)
			}
			// first upload attempt fails so the opener is called again
			if atomic.AddInt32(&uploads, 1) == 1 {
				http.Error(w, "busy", http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(`{"upload_url":"https://cdn.assemblyai.com/upload/abc"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/transcript":
			var req assemblyTranscriptRequest
			json.NewDecoder(r.Body).Decode(&req)
			if req.AudioURL != "https://cdn.assemblyai.com/upload/abc" || !req.AutoChapters || !req.SpeakerLabels {
				t.Errorf("unexpected transcript request %+v", req)
			}
			w.Write([]byte(`{"id":"tr_1","status":"queued"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/transcript/tr_1":
			if atomic.AddInt32(&polls, 1) < 3 {
				w.Write([]byte(`{"id":"tr_1","status":"processing"}`))
				return
			}
			w.Write([]byte(`{
				"id":"tr_1","status":"completed","text":"hello team","confidence":0.9,"audio_duration":62,
				"chapters":[{"summary":"s","headline":"h","gist":"g","start":0,"end":1000}],
				"utterances":[{"speaker":"A","text":"hello team"}],
				"auto_highlights_result":{"results":[{"text":"team","rank":0.5}]}
			}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var opens int32
	c := newTestAssemblyAI(t, srv.URL, "aai-key")
	tr, err := c.Transcribe(context.Background(), openerFor("video bytes", &opens))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if tr.Text != "hello team" || tr.Service != "assemblyai" {
		t.Errorf("unexpected transcript %+v", tr)
	}
	if len(tr.Chapters) != 1 || len(tr.Speakers) != 1 || len(tr.Highlights) != 1 {
		t.Errorf("expected chapters, speakers and highlights, got %+v", tr)
	}
	if tr.AudioDuration != 62 {
		t.Errorf("expected audio duration 62, got %v", tr.AudioDuration)
	}
	if opens != 2 {
		t.Errorf("expected media to be opened twice, got %d", opens)
	}
	if polls != 3 {
		t.Errorf("expected 3 polls, got %d", polls)
	}
}

func TestAssemblyAITranscribe_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upload":
			w.Write([]byte(`{"upload_url":"u"}`))
		case "/transcript":
			w.Write([]byte(`{"id":"tr_2","status":"queued"}`))
		default:
			w.Write([]byte(`{"id":"tr_2","status":"error","error":"audio has no speech"}`))
		}
	}))
	defer srv.Close()

	var opens int32
	c := newTestAssemblyAI(t, srv.URL, "aai-key")
	_, err := c.Transcribe(context.Background(), openerFor("x", &opens))
	if err == nil || !strings.Contains(err.Error(), "audio has no speech") {
		t.Fatalf("expected remote error, got %v", err)
	}
}

func TestAssemblyAITranscribe_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/upload":
			w.Write([]byte(`{"upload_url":"u"}`))
		case "/transcript":
			w.Write([]byte(`{"id":"tr_3","status":"queued"}`))
		default:
			w.Write([]byte(`{"id":"tr_3","status":"processing"}`))
		}
	}))
	defer srv.Close()

	c := NewAssemblyAIClient(&config.AssemblyAIConfig{
		APIKey:         "aai-key",
		BaseURL:        srv.URL,
		PollIntervalMs: 50,
		MaxWait:        60,
	}, testHTTPConfig(), zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var opens int32
	_, err := c.Transcribe(ctx, openerFor("x", &opens))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestAssemblyAITranscribe_Mock(t *testing.T) {
	c := newTestAssemblyAI(t, "", "")
	var opens int32
	tr, err := c.Transcribe(context.Background(), openerFor("x", &opens))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Service != "assemblyai-mock" {
		t.Errorf("expected mock service, got %q", tr.Service)
	}
	if tr.AudioDuration != 1800 || tr.Text == "" || len(tr.Chapters) == 0 {
		t.Errorf("unexpected mock transcript %+v", tr)
	}
	if opens != 0 {
		t.Errorf("mock must not read the media, opened %d times", opens)
	}
}
