package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/spf13/afero"
	"go.uber.org/zap/zaptest"

	"github.com/smartmeetingai/api/internal/client"
	"github.com/smartmeetingai/api/internal/config"
	"github.com/smartmeetingai/api/internal/handler"
	"github.com/smartmeetingai/api/internal/middleware"
	"github.com/smartmeetingai/api/internal/service"
	"github.com/smartmeetingai/api/internal/storage"
	"github.com/smartmeetingai/api/internal/store"
	"github.com/smartmeetingai/api/internal/worker"
)

const testBaseURL = "http://localhost:5000"

// testApp holds all components needed for testing
type testApp struct {
	app        *fiber.App
	store      *store.JSONStore
	fs         afero.Fs
	dispatcher *worker.GoroutineDispatcher
}

// setupApp wires the API like cmd/server but with unconfigured external
// clients, so every provider runs in stub mode without delays.
func setupApp(t *testing.T) *testApp {
	t.Helper()
	logger := zaptest.NewLogger(t)

	st, err := store.NewJSONStore(afero.NewMemMapFs(), logger)
	if err != nil {
		t.Fatalf("NewJSONStore: %v", err)
	}
	fs := afero.NewMemMapFs()
	media := storage.NewLocalStore(fs, testBaseURL)

	httpCfg := &config.HTTPClientConfig{Timeout: 5, RetryAttempts: 1}
	quickreel := client.NewQuickReelClient(&config.QuickReelConfig{}, httpCfg, logger)
	assemblyai := client.NewAssemblyAIClient(&config.AssemblyAIConfig{}, httpCfg, logger)
	openai := client.NewOpenAIClient(&config.OpenAIConfig{}, httpCfg, logger)
	runway := client.NewRunwayClient(&config.RunwayMLConfig{}, httpCfg, logger)
	groq := client.NewGroqClient(&config.GroqConfig{}, httpCfg, logger)

	orchestrator := worker.NewReelOrchestrator(st, quickreel, media, nil, worker.OrchestratorConfig{
		CallTimeout: 5 * time.Second,
	}, logger)
	dispatcher := worker.NewGoroutineDispatcher(orchestrator, 2, logger)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		dispatcher.Shutdown(ctx)
	})

	generation := service.NewGenerationService(st, dispatcher, logger)
	reconciler := service.NewReconciler(st, quickreel, nil, logger)
	content := service.NewContentService(st, media, service.ContentProviders{
		Transcribers: []client.Transcriber{assemblyai},
		Images:       []client.ImageGenerator{openai, runway},
		Texts:        []client.TextGenerator{openai, groq},
	}, logger)
	upload := service.NewUploadService(st, media, nil, logger)
	sweeper := service.NewRetentionSweeper(st, media, nil, 7*24*time.Hour, logger)

	validate := validator.New()
	handlers := &handler.Handlers{
		Upload:  handler.NewUploadHandler(upload, 50*1024*1024, logger),
		Reel:    handler.NewReelHandler(generation, reconciler, st, media, validate, logger),
		Content: handler.NewContentHandler(content, validate, logger),
		Admin:   handler.NewAdminHandler(st, sweeper, []client.Provider{quickreel, assemblyai, openai, runway, groq}, logger),
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 50 * 1024 * 1024,
	})
	rateLimiter := middleware.NewRateLimiter(nil, logger)
	handler.RegisterRoutes(app, handlers, rateLimiter, config.RateLimitConfig{})
	handler.RegisterRoutes(app.Group("/api"), handlers, rateLimiter, config.RateLimitConfig{})

	return &testApp{app: app, store: st, fs: fs, dispatcher: dispatcher}
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doUpload posts content as the multipart "video" field.
func doUpload(t *testing.T, app *fiber.App, path, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("video", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload request: %v", err)
	}
	return resp
}

// uploadVideo uploads a small video and returns its file id.
func uploadVideo(t *testing.T, ta *testApp) string {
	t.Helper()
	resp := doUpload(t, ta.app, "/upload", "standup.mp4", []byte("\x00\x00\x00\x18ftypmp42fake-video"))
	assertStatus(t, resp, http.StatusOK)
	body := parseJSON(t, resp)
	id, _ := body["file_id"].(string)
	if id == "" {
		t.Fatalf("upload returned no file_id: %v", body)
	}
	return id
}

// waitForRun blocks until the background run of taskID finished.
func waitForRun(t *testing.T, ta *testApp, taskID string) {
	t.Helper()
	run, ok := ta.dispatcher.Active(taskID)
	if !ok {
		return
	}
	select {
	case <-run.Done():
	case <-time.After(10 * time.Second):
		t.Fatalf("run for %s did not finish", taskID)
	}
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// assertFailure checks the error envelope.
func assertFailure(t *testing.T, body map[string]interface{}, message string) {
	t.Helper()
	if body["success"] != false {
		t.Errorf("expected success=false, got %v", body["success"])
	}
	if message != "" && body["message"] != message {
		t.Errorf("expected message %q, got %v", message, body["message"])
	}
	if _, ok := body["error"].(string); !ok {
		t.Errorf("expected error field, got %v", body)
	}
}
