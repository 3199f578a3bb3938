package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/smartmeetingai/api/internal/client"
	"github.com/smartmeetingai/api/internal/model"
	"github.com/smartmeetingai/api/internal/service"
	"github.com/smartmeetingai/api/internal/store"
	"github.com/smartmeetingai/api/pkg/response"
)

// AdminHandler serves health, statistics and maintenance routes
type AdminHandler struct {
	store     store.TaskStore
	sweeper   *service.RetentionSweeper
	providers []client.Provider
	logger    *zap.Logger
}

func NewAdminHandler(taskStore store.TaskStore, sweeper *service.RetentionSweeper, providers []client.Provider, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		store:     taskStore,
		sweeper:   sweeper,
		providers: providers,
		logger:    logger,
	}
}

// Health handles GET /health
func (h *AdminHandler) Health(c *fiber.Ctx) error {
	services := fiber.Map{}
	for _, p := range h.providers {
		services[p.Name()] = p.IsConfigured()
	}
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  services,
	})
}

// Stats handles GET /stats
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := service.Stats(c.UserContext(), h.store)
	if err != nil {
		h.logger.Error("failed to collect stats", zap.Error(err))
		return response.ServiceError(c, "Failed to collect stats")
	}
	return response.OK(c, stats)
}

// Cleanup handles POST /cleanup
func (h *AdminHandler) Cleanup(c *fiber.Ctx) error {
	removed, err := h.sweeper.Sweep(c.UserContext())
	if err != nil {
		h.logger.Error("cleanup failed", zap.Error(err))
		return response.ServiceError(c, "Cleanup failed")
	}
	return response.OK(c, model.CleanupResponse{Success: true, Removed: removed})
}
