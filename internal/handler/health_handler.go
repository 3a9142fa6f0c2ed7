package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arthurmmedeiros/find-my-streaming/internal/tmdb"
)

// HealthHandler reports service and upstream health.
type HealthHandler struct {
	client *tmdb.Client
	tokens *tmdb.TokenManager
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(client *tmdb.Client, tokens *tmdb.TokenManager) *HealthHandler {
	return &HealthHandler{client: client, tokens: tokens}
}

// Health probes the TMDB API and reports credential state.
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Health(c fiber.Ctx) error {
	healthy := h.client.HealthCheck(c.Context())
	info := h.tokens.Info()

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return c.JSON(fiber.Map{
		"status": status,
		"tmdb": fiber.Map{
			"accessible":    healthy,
			"authenticated": info.IsValid,
			"token_expiry":  info.ExpiresAt,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
