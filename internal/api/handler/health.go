package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// ReadinessCheck reports whether a dependency is ready to serve.
type ReadinessCheck func(ctx context.Context) error

type HealthHandler struct {
	ready ReadinessCheck
}

// NewHealthHandler creates the handler; a nil check means always ready.
func NewHealthHandler(ready ReadinessCheck) *HealthHandler {
	return &HealthHandler{ready: ready}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: "0.1.0",
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if h.ready != nil {
		if err := h.ready(c.Context()); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "dependencies not ready")
		}
	}
	return c.JSON(HealthResponse{
		Status: "ready",
	})
}
