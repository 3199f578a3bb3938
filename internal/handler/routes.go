package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/smartmeetingai/api/internal/config"
	"github.com/smartmeetingai/api/internal/middleware"
)

// Handlers groups the route handlers of the API
type Handlers struct {
	Upload  *UploadHandler
	Reel    *ReelHandler
	Content *ContentHandler
	Admin   *AdminHandler
}

// RegisterRoutes mounts every API route on r. The server mounts them both at
// the root and under /api.
func RegisterRoutes(r fiber.Router, h *Handlers, rl *middleware.RateLimiter, limits config.RateLimitConfig) {
	r.Get("/health", h.Admin.Health)
	r.Get("/stats", h.Admin.Stats)
	r.Post("/cleanup", h.Admin.Cleanup)
	r.Get("/reel-options", h.Reel.Options)

	r.Post("/upload", rl.UploadLimit(limits.UploadPerHour), h.Upload.Upload)

	r.Post("/generate-reels", rl.GenerateLimit(limits.GeneratePerHour), h.Reel.Generate)
	r.Get("/status/:taskId", h.Reel.Status)
	r.Get("/download/:fileId/:reelId", h.Reel.Download)
	r.Post("/webhook", h.Reel.Webhook)

	content := rl.ContentLimit(limits.ContentPerHour)
	r.Post("/generate-transcript", content, h.Content.Transcript)
	r.Post("/generate-poster", content, h.Content.Poster)
	r.Post("/generate-blog", content, h.Content.Blog)
}
