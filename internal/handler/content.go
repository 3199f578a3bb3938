package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/model"
	"github.com/smartmeetingai/api/internal/service"
	"github.com/smartmeetingai/api/pkg/response"
)

const transcriptFirstMessage = "Transcript not found. Generate transcript first."

type ContentHandler struct {
	service   *service.ContentService
	validator *validator.Validate
	logger    *zap.Logger
}

func NewContentHandler(svc *service.ContentService, v *validator.Validate, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{
		service:   svc,
		validator: v,
		logger:    logger,
	}
}

// parse binds the request body. On a bad body it writes the 400 response and
// returns a nil request together with the write error.
func (h *ContentHandler) parse(c *fiber.Ctx) (*model.FileRequest, error) {
	var req model.FileRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return nil, response.ValidationError(c, "file_id is required", formatValidationErrors(err))
	}
	return &req, nil
}

// Transcript handles POST /generate-transcript
func (h *ContentHandler) Transcript(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if req == nil {
		return err
	}

	transcript, err := h.service.GenerateTranscript(c.UserContext(), req.FileID)
	if err != nil {
		return h.fail(c, "transcript", req.FileID, err)
	}

	return response.OK(c, model.TranscriptResponse{
		Success:    true,
		Transcript: transcript,
		Message:    "Transcript generated successfully",
	})
}

// Poster handles POST /generate-poster
func (h *ContentHandler) Poster(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if req == nil {
		return err
	}

	poster, err := h.service.GeneratePoster(c.UserContext(), req.FileID)
	if err != nil {
		return h.fail(c, "poster", req.FileID, err)
	}

	return response.OK(c, model.PosterResponse{
		Success: true,
		Poster:  poster,
		Message: "Poster generated successfully",
	})
}

// Blog handles POST /generate-blog
func (h *ContentHandler) Blog(c *fiber.Ctx) error {
	req, err := h.parse(c)
	if req == nil {
		return err
	}

	blog, err := h.service.GenerateBlog(c.UserContext(), req.FileID)
	if err != nil {
		return h.fail(c, "blog", req.FileID, err)
	}

	return response.OK(c, model.BlogResponse{
		Success: true,
		Blog:    blog,
		Message: "Blog generated successfully",
	})
}

func (h *ContentHandler) fail(c *fiber.Ctx, artifact, fileID string, err error) error {
	switch {
	case errors.Is(err, model.ErrTaskNotFound):
		return response.NotFound(c, "File not found")
	case errors.Is(err, model.ErrVideoNotFound):
		return response.NotFound(c, "Video file not found")
	case errors.Is(err, model.ErrTranscriptRequired):
		return response.PreconditionFailed(c, transcriptFirstMessage)
	}
	h.logger.Error("content generation failed", zap.String("artifact", artifact), zap.String("file_id", fileID), zap.Error(err))
	return response.UpstreamError(c, "Failed to generate "+artifact)
}
