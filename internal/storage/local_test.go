package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestLocalStore_UploadOpenDelete(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStore(afero.NewMemMapFs(), "http://localhost:5000/")

	url, err := s.Upload(ctx, "posters/poster_1.png", strings.NewReader("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "http://localhost:5000/static/posters/poster_1.png" {
		t.Errorf("unexpected url %q", url)
	}

	f, err := s.Open("posters/poster_1.png")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "png-bytes" {
		t.Errorf("unexpected content %q", data)
	}

	if err := s.Delete(ctx, "posters/poster_1.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Exists("posters/poster_1.png") {
		t.Error("expected file removed")
	}
	if err := s.Delete(ctx, "posters/poster_1.png"); err != nil {
		t.Errorf("second delete should be a no-op, got %v", err)
	}
}

func TestLocalStore_PublicURL(t *testing.T) {
	s := NewLocalStore(afero.NewMemMapFs(), "http://localhost:5000")

	if got := s.GetPublicURL("uploads/abc_meeting.mp4"); got != "http://localhost:5000/uploads/abc_meeting.mp4" {
		t.Errorf("unexpected upload url %q", got)
	}
	if got := s.GetPublicURL("reels/r.mp4"); got != "http://localhost:5000/static/reels/r.mp4" {
		t.Errorf("unexpected reel url %q", got)
	}
}

func TestLocalStore_KeyForURL(t *testing.T) {
	s := NewLocalStore(afero.NewMemMapFs(), "http://localhost:5000")

	tests := []struct {
		url string
		key string
		ok  bool
	}{
		{"/static/reels/mock_reel_1.mp4", "reels/mock_reel_1.mp4", true},
		{"http://localhost:5000/static/posters/p.png", "posters/p.png", true},
		{"http://localhost:5000/uploads/a.mp4", "uploads/a.mp4", true},
		{"https://cdn.quickreel.io/out/video.mp4", "", false},
		{"/static/../secret", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		key, ok := s.KeyForURL(tt.url)
		if key != tt.key || ok != tt.ok {
			t.Errorf("KeyForURL(%q) = %q, %v; want %q, %v", tt.url, key, ok, tt.key, tt.ok)
		}
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s := NewLocalStore(afero.NewMemMapFs(), "")
	if _, err := s.Upload(context.Background(), "../escape", strings.NewReader("x"), "text/plain"); err == nil {
		t.Error("expected traversal key to be rejected")
	}
}
