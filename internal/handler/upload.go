package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/model"
	"github.com/smartmeetingai/api/internal/service"
	"github.com/smartmeetingai/api/pkg/response"
)

type UploadHandler struct {
	service *service.UploadService
	maxSize int64
	logger  *zap.Logger
}

func NewUploadHandler(svc *service.UploadService, maxSize int64, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		service: svc,
		maxSize: maxSize,
		logger:  logger,
	}
}

// Upload handles POST /upload
func (h *UploadHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("video")
	if err != nil {
		return response.ValidationError(c, "No video file provided", nil)
	}
	if file.Filename == "" {
		return response.ValidationError(c, "No file selected", nil)
	}

	if h.maxSize > 0 && file.Size > h.maxSize {
		return response.ValidationError(c, fmt.Sprintf("File size exceeds %dMB limit", h.maxSize/(1024*1024)), map[string]interface{}{
			"maxSize":  h.maxSize,
			"fileSize": file.Size,
		})
	}

	if !service.AllowedFile(file.Filename) {
		return response.InvalidFileType(c, invalidTypeMessage())
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	task, err := h.service.Upload(c.UserContext(), file.Filename, file.Size, f)
	if err != nil {
		if errors.Is(err, model.ErrInvalidFileType) {
			return response.InvalidFileType(c, invalidTypeMessage())
		}
		h.logger.Error("upload failed", zap.String("filename", file.Filename), zap.Error(err))
		return response.ServiceError(c, "Failed to store upload")
	}

	return response.OK(c, model.UploadResponse{
		Success: true,
		FileID:  task.ID,
		Message: "Video uploaded successfully",
	})
}

func invalidTypeMessage() string {
	return "Invalid file type. Allowed: " + strings.Join(model.AllowedVideoExtensions, ", ")
}
