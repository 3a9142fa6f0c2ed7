package handler

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arthurmmedeiros/find-my-streaming/internal/middleware"
)

// Limiters groups the pre-configured rate limiters by endpoint class.
type Limiters struct {
	Recommendations *middleware.RateLimiter
	Search          *middleware.RateLimiter
	General         *middleware.RateLimiter
}

// Stop ends the background sweeps of all limiters.
func (l Limiters) Stop() {
	l.Recommendations.Stop()
	l.Search.Stop()
	l.General.Stop()
}

// AdminHandler exposes operational visibility over the rate limiters.
type AdminHandler struct {
	limiters Limiters
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(limiters Limiters) *AdminHandler {
	return &AdminHandler{limiters: limiters}
}

// Stats returns per-limiter counters.
// @Summary Rate limiter stats
// @Tags admin
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} ErrorResponse
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c fiber.Ctx) error {
	recommendations := h.limiters.Recommendations.GetStats()
	search := h.limiters.Search.GetStats()
	general := h.limiters.General.GetStats()

	return c.JSON(fiber.Map{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"rate_limiters": fiber.Map{
			"recommendations": recommendations,
			"search":          search,
			"general":         general,
		},
		"summary": fiber.Map{
			"total_active_users":    recommendations.TotalKeys + search.TotalKeys + general.TotalKeys,
			"recommendations_usage": recommendations.TotalKeys,
		},
	})
}

// ResetLimits clears the rate-limit entries for one client IP across all
// limiters.
// @Summary Reset rate limits for an IP
// @Tags admin
// @Produce json
// @Param ip query string true "Client IP"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /admin/limits [delete]
func (h *AdminHandler) ResetLimits(c fiber.Ctx) error {
	ip := c.Query("ip")
	if ip == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "ip parameter required",
		})
	}

	h.limiters.Recommendations.Reset(ip)
	h.limiters.Search.Reset(ip)
	h.limiters.General.Reset(ip)

	return c.JSON(fiber.Map{
		"message":   "rate limits reset for " + ip,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
