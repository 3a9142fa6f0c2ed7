package handler

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/arthurmmedeiros/find-my-streaming/internal/models"
	"github.com/arthurmmedeiros/find-my-streaming/internal/service"
)

const maxPromptLength = 500

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RecommendationHandler handles HTTP requests for AI recommendations.
type RecommendationHandler struct {
	svc *service.RecommendationService
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(svc *service.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{svc: svc}
}

// GetRecommendations turns a free-text prompt into ranked recommendations.
// @Summary Get AI recommendations
// @Tags recommendations
// @Accept json
// @Produce json
// @Param request body models.RecommendationRequest true "Prompt"
// @Success 200 {object} models.RecommendationResult
// @Failure 400 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /recommendations [post]
func (h *RecommendationHandler) GetRecommendations(c fiber.Ctx) error {
	var req models.RecommendationRequest
	if err := c.Bind().Body(&req); err != nil || req.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "Prompt is required and must be a string",
		})
	}
	if len(req.Prompt) > maxPromptLength {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "Prompt is too long. Please keep it under 500 characters.",
		})
	}
	if len(strings.TrimSpace(req.Prompt)) < 3 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "Prompt is too short. Please be more descriptive.",
		})
	}

	result, err := h.svc.GetRecommendations(c.Context(), req.Prompt)
	if err != nil {
		return respondRecommendationError(c, err)
	}

	slog.Info("recommendation request served",
		"prompt", truncate(req.Prompt, 50), "results", len(result.Results))
	return c.JSON(result)
}

// respondRecommendationError maps pipeline failures to user-facing
// statuses without leaking internal detail.
func respondRecommendationError(c fiber.Ctx, err error) error {
	slog.Error("recommendation request failed", "error", err)

	msg := err.Error()
	switch {
	case strings.Contains(msg, "API key"):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: "Service temporarily unavailable. Please try again later.",
		})
	case strings.Contains(msg, "quota"), strings.Contains(msg, "limit"):
		return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
			Error: "Service is experiencing high demand. Please try again in a few minutes.",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "Failed to generate recommendations. Please try again.",
		})
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
