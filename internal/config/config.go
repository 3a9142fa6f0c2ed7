package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service.
type Config struct {
	TMDB      TMDBConfig
	Gemini    GeminiConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Admin     AdminConfig
	Port      string
}

// TMDBConfig holds TMDB API configuration.
type TMDBConfig struct {
	APIKey  string
	BaseURL string
}

// GeminiConfig holds text-generation model configuration.
type GeminiConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// RedisConfig holds Redis configuration for the response cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig holds per-endpoint request budgets, all sharing one window.
type RateLimitConfig struct {
	Window             time.Duration
	RecommendationsMax int
	SearchMax          int
	GeneralMax         int
}

// AdminConfig holds credentials for the operational stats endpoint.
type AdminConfig struct {
	Token string
}

// InsecureDefaultAdminToken is the fallback admin token. Any real
// deployment must override ADMIN_TOKEN.
const InsecureDefaultAdminToken = "dev-admin-token"

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	windowSec, _ := strconv.Atoi(getEnv("RATE_LIMIT_WINDOW_SECONDS", "900"))
	recMax, _ := strconv.Atoi(getEnv("RATE_LIMIT_RECOMMENDATIONS_MAX", "10"))
	searchMax, _ := strconv.Atoi(getEnv("RATE_LIMIT_SEARCH_MAX", "60"))
	generalMax, _ := strconv.Atoi(getEnv("RATE_LIMIT_GENERAL_MAX", "100"))

	cfg := &Config{
		TMDB: TMDBConfig{
			APIKey:  os.Getenv("TMDB_API_KEY"),
			BaseURL: getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		},
		Gemini: GeminiConfig{
			APIKey:  os.Getenv("GOOGLE_GEMINI_API_KEY"),
			BaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Model:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		RateLimit: RateLimitConfig{
			Window:             time.Duration(windowSec) * time.Second,
			RecommendationsMax: recMax,
			SearchMax:          searchMax,
			GeneralMax:         generalMax,
		},
		Admin: AdminConfig{
			Token: getEnv("ADMIN_TOKEN", InsecureDefaultAdminToken),
		},
		Port: getEnv("SERVER_PORT", "8080"),
	}

	if cfg.TMDB.BaseURL == "" {
		return nil, fmt.Errorf("TMDB_BASE_URL must not be empty")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
