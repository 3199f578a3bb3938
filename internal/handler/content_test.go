package handler_test

import (
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestContent_TranscriptFirst(t *testing.T) {
	ta := setupApp(t)
	id := uploadVideo(t, ta)
	payload := fmt.Sprintf(`{"file_id":%q}`, id)

	for _, path := range []string{"/generate-poster", "/api/generate-blog"} {
		resp, err := doRequest(ta.app, "POST", path, payload, nil)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		assertStatus(t, resp, http.StatusBadRequest)
		assertFailure(t, parseJSON(t, resp), "Transcript not found. Generate transcript first.")
	}

	resp, err := doRequest(ta.app, "POST", "/generate-transcript", payload, nil)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	transcript, _ := body["transcript"].(map[string]interface{})
	if transcript == nil || transcript["transcript"] == "" || transcript["service"] != "assemblyai-mock" {
		t.Fatalf("unexpected transcript response %v", body)
	}

	resp, err = doRequest(ta.app, "POST", "/generate-poster", payload, nil)
	if err != nil {
		t.Fatalf("poster: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	body = parseJSON(t, resp)
	poster, _ := body["poster"].(map[string]interface{})
	if url, _ := poster["image_url"].(string); !strings.HasPrefix(url, "/static/posters/poster_"+id) {
		t.Errorf("expected local poster url, got %v", poster)
	}

	resp, err = doRequest(ta.app, "POST", "/generate-blog", payload, nil)
	if err != nil {
		t.Fatalf("blog: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	body = parseJSON(t, resp)
	blog, _ := body["blog"].(map[string]interface{})
	if blog == nil || blog["blog_content"] == "" || blog["word_count"] == float64(0) {
		t.Errorf("unexpected blog response %v", body)
	}
}

func TestContent_UnknownFile(t *testing.T) {
	ta := setupApp(t)

	for _, path := range []string{"/generate-transcript", "/generate-poster", "/generate-blog"} {
		resp, err := doRequest(ta.app, "POST", path, `{"file_id":"missing"}`, nil)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		assertStatus(t, resp, http.StatusNotFound)
		assertFailure(t, parseJSON(t, resp), "File not found")
	}
}

func TestContent_MissingFileID(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, "POST", "/generate-transcript", `{}`, nil)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	assertStatus(t, resp, http.StatusBadRequest)
	assertFailure(t, parseJSON(t, resp), "file_id is required")
}
