package handler

import (
	"errors"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/model"
	"github.com/smartmeetingai/api/internal/service"
	"github.com/smartmeetingai/api/internal/store"
	"github.com/smartmeetingai/api/pkg/response"
)

type ReelHandler struct {
	generation *service.GenerationService
	reconciler *service.Reconciler
	store      store.TaskStore
	media      service.LocalMedia
	validator  *validator.Validate
	logger     *zap.Logger
}

func NewReelHandler(generation *service.GenerationService, reconciler *service.Reconciler, taskStore store.TaskStore, media service.LocalMedia, v *validator.Validate, logger *zap.Logger) *ReelHandler {
	return &ReelHandler{
		generation: generation,
		reconciler: reconciler,
		store:      taskStore,
		media:      media,
		validator:  v,
		logger:     logger,
	}
}

// Generate handles POST /generate-reels
func (h *ReelHandler) Generate(c *fiber.Ctx) error {
	var req model.GenerateReelsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	if err := h.generation.Start(c.UserContext(), &req); err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			return response.NotFound(c, "File not found")
		}
		h.logger.Error("failed to start reel generation", zap.String("file_id", req.FileID), zap.Error(err))
		return response.ServiceError(c, "Failed to start reel generation")
	}

	return response.OK(c, model.MessageResponse{
		Success: true,
		Message: "Reel generation started",
	})
}

// Status handles GET /status/:taskId
func (h *ReelHandler) Status(c *fiber.Ctx) error {
	taskID := c.Params("taskId")

	task, err := h.reconciler.Poll(c.UserContext(), taskID)
	if err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			return response.NotFound(c, "Task not found")
		}
		h.logger.Error("failed to read task status", zap.String("task_id", taskID), zap.Error(err))
		return response.ServiceError(c, "Failed to read task status")
	}

	return response.OK(c, model.NewStatusResponse(task))
}

// Download handles GET /download/:fileId/:reelId
func (h *ReelHandler) Download(c *fiber.Ctx) error {
	fileID := c.Params("fileId")
	reelID := c.Params("reelId")

	task, err := h.store.Get(c.UserContext(), fileID)
	if err != nil {
		if errors.Is(err, model.ErrTaskNotFound) {
			return response.NotFound(c, "Task not found")
		}
		return response.ServiceError(c, "Failed to read task")
	}

	reel, ok := task.FindReel(reelID)
	if !ok {
		return response.NotFound(c, "Reel not found")
	}

	if key, ok := h.media.KeyForURL(reel.URL); ok && h.media.Exists(key) {
		f, err := h.media.Open(key)
		if err != nil {
			return response.ServiceError(c, "Failed to open reel")
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return response.ServiceError(c, "Failed to open reel")
		}
		c.Attachment("reel_" + reelID + ".mp4")
		return c.SendStream(f, int(info.Size()))
	}

	// reels hosted by the clipping service are fetched from there
	if u, err := url.Parse(reel.URL); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return c.Redirect(reel.URL, fiber.StatusFound)
	}

	return response.NotFound(c, "Reel file not found")
}

// Webhook handles POST /webhook. Callbacks for unknown projects are
// acknowledged so the sender does not retry them.
func (h *ReelHandler) Webhook(c *fiber.Ctx) error {
	var req model.WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if req.ProjectID == "" {
		h.logger.Warn("webhook without project id", zap.String("status", req.Status))
		return response.OK(c, model.MessageResponse{Success: true, Message: "Webhook ignored"})
	}

	_, err := h.reconciler.Apply(c.UserContext(), webhookSignal(&req))
	switch {
	case errors.Is(err, model.ErrUnknownProject):
		h.logger.Warn("webhook for unknown project", zap.String("project_id", req.ProjectID))
		return response.OK(c, model.MessageResponse{Success: true, Message: "Webhook ignored"})
	case err != nil:
		h.logger.Error("failed to apply webhook", zap.String("project_id", req.ProjectID), zap.Error(err))
		return response.ServiceError(c, "Failed to process webhook")
	}

	return response.OK(c, model.MessageResponse{Success: true, Message: "Webhook processed"})
}

func webhookSignal(req *model.WebhookRequest) model.ReelSignal {
	sig := model.ReelSignal{
		ProjectID: req.ProjectID,
		State:     model.RemoteStateProcessing,
		Error:     req.Error,
		Source:    model.SignalSourceWebhook,
	}
	switch req.Status {
	case "completed":
		if len(req.Outputs) > 0 {
			sig.State = model.RemoteStateCompleted
			sig.VideoURL = req.Outputs[0].VideoURL
			sig.ThumbnailURL = req.Outputs[0].ThumbnailURL
		}
	case "failed", "error":
		sig.State = model.RemoteStateFailed
	}
	return sig
}

// Options handles GET /reel-options
func (h *ReelHandler) Options(c *fiber.Ctx) error {
	return response.OK(c, model.ReelOptionsResponse{
		Durations:        model.ValidDurations,
		Platforms:        model.ValidPlatforms,
		Styles:           model.ValidStyles,
		MaxCaptionLength: model.MaxCaptionLength,
	})
}
