package handler

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arthurmmedeiros/find-my-streaming/internal/models"
	"github.com/arthurmmedeiros/find-my-streaming/internal/service"
	"github.com/arthurmmedeiros/find-my-streaming/internal/tmdb"
)

// SearchHandler handles HTTP requests for catalog search and watch
// providers.
type SearchHandler struct {
	svc *service.SearchService
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(svc *service.SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// Search runs a multi-search over movies and TV shows. A blank query
// returns popular titles.
// @Summary Search movies and TV shows
// @Tags search
// @Produce json
// @Param query query string false "Search text"
// @Param page query int false "Page number" default(1)
// @Param year query int false "Release year filter"
// @Success 200 {object} map[string][]models.MediaItem
// @Failure 500 {object} ErrorResponse
// @Router /search [get]
func (h *SearchHandler) Search(c fiber.Ctx) error {
	query := c.Query("query")
	opts := tmdb.SearchOptions{
		Page: fiber.Query(c, "page", 1),
		Year: fiber.Query(c, "year", 0),
	}

	results, err := h.svc.Search(c.Context(), query, opts)
	if err != nil {
		slog.Error("search failed", "query", query, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "failed to search the catalog",
		})
	}

	return c.JSON(fiber.Map{"results": results})
}

// GetProviders returns the streaming platforms carrying a title.
// @Summary Get watch providers
// @Tags search
// @Produce json
// @Param mediaType path string true "movie or tv"
// @Param id path int true "Title ID"
// @Success 200 {object} models.WatchProviderResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /{mediaType}/{id}/providers [get]
func (h *SearchHandler) GetProviders(c fiber.Ctx) error {
	mediaType := models.MediaType(c.Params("mediaType"))
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "invalid title ID",
		})
	}

	providers, err := h.svc.Providers(c.Context(), mediaType, id)
	if err != nil {
		if errors.Is(err, tmdb.ErrInvalidMediaType) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Error: err.Error(),
			})
		}
		slog.Error("providers lookup failed", "media_type", mediaType, "id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "failed to retrieve watch providers",
		})
	}

	return c.JSON(providers)
}
