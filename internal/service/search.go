package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arthurmmedeiros/find-my-streaming/internal/models"
	"github.com/arthurmmedeiros/find-my-streaming/internal/tmdb"
)

const (
	searchCacheTTL    = time.Hour
	providersCacheTTL = 24 * time.Hour
)

// SearchCatalog is the slice of the TMDB gateway the search service needs.
type SearchCatalog interface {
	SearchMulti(ctx context.Context, query string, opts tmdb.SearchOptions) ([]models.MediaItem, error)
	GetWatchProviders(ctx context.Context, mediaType models.MediaType, id int) (*models.WatchProviderResponse, error)
}

// SearchService wraps catalog search and provider lookups with an optional
// Redis cache. A nil Redis client disables caching, the service still works.
type SearchService struct {
	catalog SearchCatalog
	redis   *redis.Client
}

// NewSearchService creates a search service. rdb may be nil.
func NewSearchService(catalog SearchCatalog, rdb *redis.Client) *SearchService {
	return &SearchService{catalog: catalog, redis: rdb}
}

// Search runs a multi-search, serving repeated queries from cache for an
// hour.
func (s *SearchService) Search(ctx context.Context, query string, opts tmdb.SearchOptions) ([]models.MediaItem, error) {
	cacheKey := fmt.Sprintf("search:%s:%d:%d", query, opts.Page, opts.Year)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var results []models.MediaItem
			if json.Unmarshal([]byte(cached), &results) == nil {
				slog.Debug("search cache hit", "query", query)
				return results, nil
			}
		}
	}

	results, err := s.catalog.SearchMulti(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(results); err == nil {
			s.redis.Set(ctx, cacheKey, data, searchCacheTTL)
		}
	}
	return results, nil
}

// Providers returns the watch-provider listing for a title, cached for a
// day since platform availability changes slowly.
func (s *SearchService) Providers(ctx context.Context, mediaType models.MediaType, id int) (*models.WatchProviderResponse, error) {
	cacheKey := fmt.Sprintf("providers:%s:%d", mediaType, id)

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var providers models.WatchProviderResponse
			if json.Unmarshal([]byte(cached), &providers) == nil {
				slog.Debug("providers cache hit", "media_type", mediaType, "id", id)
				return &providers, nil
			}
		}
	}

	providers, err := s.catalog.GetWatchProviders(ctx, mediaType, id)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(providers); err == nil {
			s.redis.Set(ctx, cacheKey, data, providersCacheTTL)
		}
	}
	return providers, nil
}
