package tmdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/arthurmmedeiros/find-my-streaming/internal/models"
)

const imageBaseURL = "https://image.tmdb.org/t/p"

// ErrInvalidMediaType is returned when a caller asks for watch providers
// of something that is not a movie or TV show.
var ErrInvalidMediaType = errors.New("watch providers are only available for movies and TV shows")

// Catalog is the typed query surface over the TMDB API client.
type Catalog struct {
	client *Client
}

// NewCatalog creates a catalog gateway on top of an authenticated client.
func NewCatalog(client *Client) *Catalog {
	return &Catalog{client: client}
}

type searchPage struct {
	Page         int                `json:"page"`
	Results      []models.MediaItem `json:"results"`
	TotalPages   int                `json:"total_pages"`
	TotalResults int                `json:"total_results"`
}

// SearchOptions narrows a multi-search.
type SearchOptions struct {
	Page     int
	Year     int
	GenreIDs []int
}

// DiscoverOptions narrows a discover query.
type DiscoverOptions struct {
	Page      int
	GenreIDs  []int
	MinRating float64
	Year      int
}

// SearchMulti searches movies and TV shows. A blank query with no genre
// filter falls back to popular content. With a genre filter the search
// fans out to the discover endpoints instead, optionally narrowed by a
// local substring match on the query.
func (c *Catalog) SearchMulti(ctx context.Context, query string, opts SearchOptions) ([]models.MediaItem, error) {
	query = strings.TrimSpace(query)

	if query == "" && len(opts.GenreIDs) == 0 {
		return c.GetPopular(ctx), nil
	}

	if len(opts.GenreIDs) > 0 {
		var movies, shows []models.MediaItem
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			movies, err = c.DiscoverMovies(gctx, DiscoverOptions{Page: opts.Page, GenreIDs: opts.GenreIDs, Year: opts.Year})
			return err
		})
		g.Go(func() error {
			var err error
			shows, err = c.DiscoverTV(gctx, DiscoverOptions{Page: opts.Page, GenreIDs: opts.GenreIDs, Year: opts.Year})
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}

		combined := append(movies, shows...)
		if query == "" {
			return combined, nil
		}
		return filterByText(combined, query), nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(pageOrDefault(opts.Page)))
	params.Set("include_adult", "false")
	if opts.Year > 0 {
		params.Set("year", strconv.Itoa(opts.Year))
	}

	var page searchPage
	if err := c.client.Get(ctx, "/search/multi", params, &page); err != nil {
		return nil, fmt.Errorf("search multi: %w", err)
	}

	// Multi-search mixes in people; keep only movies and TV shows.
	results := make([]models.MediaItem, 0, len(page.Results))
	for _, item := range page.Results {
		if item.MediaType == models.MediaTypeMovie || item.MediaType == models.MediaTypeTV {
			results = append(results, item)
		}
	}
	return results, nil
}

// DiscoverMovies fetches movies matching the given filters, most popular
// first.
func (c *Catalog) DiscoverMovies(ctx context.Context, opts DiscoverOptions) ([]models.MediaItem, error) {
	params := discoverParams(opts)
	if opts.MinRating > 0 {
		// A rating floor alone surfaces obscure titles with a handful
		// of votes; require a minimum vote count alongside it.
		params.Set("vote_average.gte", formatRating(opts.MinRating))
		params.Set("vote_count.gte", "100")
	}
	if opts.Year > 0 {
		params.Set("year", strconv.Itoa(opts.Year))
	}

	var page searchPage
	if err := c.client.Get(ctx, "/discover/movie", params, &page); err != nil {
		return nil, fmt.Errorf("discover movies: %w", err)
	}
	return tagMediaType(page.Results, models.MediaTypeMovie), nil
}

// DiscoverTV fetches TV shows matching the given filters, most popular
// first.
func (c *Catalog) DiscoverTV(ctx context.Context, opts DiscoverOptions) ([]models.MediaItem, error) {
	params := discoverParams(opts)
	if opts.MinRating > 0 {
		params.Set("vote_average.gte", formatRating(opts.MinRating))
		params.Set("vote_count.gte", "50")
	}
	if opts.Year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(opts.Year))
	}

	var page searchPage
	if err := c.client.Get(ctx, "/discover/tv", params, &page); err != nil {
		return nil, fmt.Errorf("discover tv: %w", err)
	}
	return tagMediaType(page.Results, models.MediaTypeTV), nil
}

// GetPopular returns a shuffled mix of the current popular movies and TV
// shows, at most 15 items. Either upstream failing degrades that half to
// empty rather than failing the whole call.
func (c *Catalog) GetPopular(ctx context.Context) []models.MediaItem {
	var movies, shows []models.MediaItem
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var page searchPage
		if err := c.client.Get(gctx, "/movie/popular", url.Values{"page": {"1"}}, &page); err != nil {
			slog.Warn("popular movies unavailable", "error", err)
			return nil
		}
		movies = tagMediaType(page.Results, models.MediaTypeMovie)
		return nil
	})
	g.Go(func() error {
		var page searchPage
		if err := c.client.Get(gctx, "/tv/popular", url.Values{"page": {"1"}}, &page); err != nil {
			slog.Warn("popular TV unavailable", "error", err)
			return nil
		}
		shows = tagMediaType(page.Results, models.MediaTypeTV)
		return nil
	})
	_ = g.Wait()

	if len(movies) > 10 {
		movies = movies[:10]
	}
	if len(shows) > 10 {
		shows = shows[:10]
	}

	combined := append(movies, shows...)
	rand.Shuffle(len(combined), func(i, j int) {
		combined[i], combined[j] = combined[j], combined[i]
	})
	if len(combined) > 15 {
		combined = combined[:15]
	}
	return combined
}

// GetWatchProviders fetches the streaming/rental/purchase platforms for a
// title, keyed by country code.
func (c *Catalog) GetWatchProviders(ctx context.Context, mediaType models.MediaType, id int) (*models.WatchProviderResponse, error) {
	if mediaType != models.MediaTypeMovie && mediaType != models.MediaTypeTV {
		return nil, ErrInvalidMediaType
	}

	var providers models.WatchProviderResponse
	endpoint := fmt.Sprintf("/%s/%d/watch/providers", mediaType, id)
	if err := c.client.Get(ctx, endpoint, nil, &providers); err != nil {
		return nil, fmt.Errorf("watch providers: %w", err)
	}
	return &providers, nil
}

// ImageURL builds the full image URL for a TMDB image path. Returns the
// empty string for an empty path.
func ImageURL(path, size string) string {
	if path == "" {
		return ""
	}
	if size == "" {
		size = "original"
	}
	return imageBaseURL + "/" + size + path
}

func discoverParams(opts DiscoverOptions) url.Values {
	params := url.Values{}
	params.Set("sort_by", "popularity.desc")
	params.Set("page", strconv.Itoa(pageOrDefault(opts.Page)))
	if len(opts.GenreIDs) > 0 {
		ids := make([]string, len(opts.GenreIDs))
		for i, id := range opts.GenreIDs {
			ids[i] = strconv.Itoa(id)
		}
		params.Set("with_genres", strings.Join(ids, ","))
	}
	return params
}

func pageOrDefault(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func formatRating(rating float64) string {
	return strconv.FormatFloat(rating, 'f', -1, 64)
}

func tagMediaType(items []models.MediaItem, mediaType models.MediaType) []models.MediaItem {
	for i := range items {
		items[i].MediaType = mediaType
	}
	return items
}

func filterByText(items []models.MediaItem, query string) []models.MediaItem {
	query = strings.ToLower(query)
	filtered := make([]models.MediaItem, 0, len(items))
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.DisplayTitle()), query) ||
			strings.Contains(strings.ToLower(item.Overview), query) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
