package handlers

import (
	"time"

	"github.com/ahmetcoskunkizilkaya/modengine/internal/database"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/dto"
	"github.com/ahmetcoskunkizilkaya/modengine/internal/services"
	"github.com/gofiber/fiber/v2"
)

type HealthHandler struct {
	scale services.ScaleProvider
}

func NewHealthHandler(scale services.ScaleProvider) *HealthHandler {
	return &HealthHandler{scale: scale}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	resp := dto.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		DB:        "ok",
	}
	if err := database.Ping(); err != nil {
		resp.DB = "unhealthy: " + err.Error()
		resp.Status = "degraded"
	} else if h.scale != nil {
		if scale, err := h.scale.CurrentScale(c.UserContext()); err == nil {
			resp.SiteScale = scale
		}
	}
	return c.JSON(resp)
}
