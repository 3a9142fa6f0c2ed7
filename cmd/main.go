package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	fiberRecover "github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/arthurmmedeiros/find-my-streaming/internal/config"
	"github.com/arthurmmedeiros/find-my-streaming/internal/database"
	"github.com/arthurmmedeiros/find-my-streaming/internal/genai"
	"github.com/arthurmmedeiros/find-my-streaming/internal/handler"
	"github.com/arthurmmedeiros/find-my-streaming/internal/middleware"
	"github.com/arthurmmedeiros/find-my-streaming/internal/service"
	"github.com/arthurmmedeiros/find-my-streaming/internal/tmdb"
)

func main() {
	// Structured logging
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Admin.Token == config.InsecureDefaultAdminToken {
		slog.Warn("ADMIN_TOKEN not set, using insecure default")
	}

	// Connect to Redis (non-fatal if unavailable, caching is disabled)
	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		slog.Warn("Redis unavailable, running without response cache", "error", err)
		rdb = nil
	}

	// TMDB access: token manager -> authenticated client -> catalog
	tokens := tmdb.NewTokenManager(cfg.TMDB.APIKey, cfg.TMDB.BaseURL)
	client := tmdb.NewClient(cfg.TMDB.BaseURL, tokens)
	catalog := tmdb.NewCatalog(client)

	// Text-generation model
	model := genai.NewClient(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Model)

	// Services
	recommendationSvc := service.NewRecommendationService(catalog, model)
	searchSvc := service.NewSearchService(catalog, rdb)

	// Rate limiters: strict for the AI endpoint, moderate for search,
	// lenient for the rest
	limiters := handler.Limiters{
		Recommendations: middleware.NewRateLimiter(cfg.RateLimit.RecommendationsMax, cfg.RateLimit.Window, nil),
		Search:          middleware.NewRateLimiter(cfg.RateLimit.SearchMax, cfg.RateLimit.Window, nil),
		General:         middleware.NewRateLimiter(cfg.RateLimit.GeneralMax, cfg.RateLimit.Window, nil),
	}
	defer limiters.Stop()

	// Handlers
	recommendationH := handler.NewRecommendationHandler(recommendationSvc)
	searchH := handler.NewSearchHandler(searchSvc)
	healthH := handler.NewHealthHandler(client, tokens)
	adminH := handler.NewAdminHandler(limiters)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Find My Streaming",
		ServerHeader: "find-my-streaming",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("unhandled error", "error", err, "status", code)
			return c.Status(code).JSON(handler.ErrorResponse{Error: err.Error()})
		},
	})

	// Middleware
	app.Use(fiberRecover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	// API routes
	api := app.Group("/api/v1")
	api.Get("/health", healthH.Health)
	api.Post("/recommendations", recommendationH.GetRecommendations,
		limiters.Recommendations.Handler("Too many recommendation requests. You can make 10 requests every 15 minutes. Please try again later."))
	api.Get("/search", searchH.Search, limiters.Search.Handler(""))
	api.Get("/:mediaType/:id/providers", searchH.GetProviders, limiters.General.Handler(""))

	admin := api.Group("/admin", middleware.AdminAuth(cfg.Admin.Token))
	admin.Get("/stats", adminH.Stats)
	admin.Delete("/limits", adminH.ResetLimits)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		addr := ":" + cfg.Port
		slog.Info("starting find-my-streaming", "addr", addr)
		if err := app.Listen(addr); err != nil {
			slog.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down...")

	if err := app.Shutdown(); err != nil {
		slog.Error("error shutting down HTTP server", "error", err)
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			slog.Error("error closing Redis connection", "error", err)
		}
	}

	slog.Info("shutdown complete")
}
