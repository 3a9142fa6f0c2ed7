package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/arthurmmedeiros/find-my-streaming/internal/models"
	"github.com/arthurmmedeiros/find-my-streaming/internal/tmdb"
)

const maxResults = 12

// Generator is a single-shot text-generation model: one prompt in, one
// text response out. The engine makes no assumption about the vendor or
// the shape of the output, hence the defensive parsing below.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Catalog is the slice of the TMDB gateway the engine needs.
type Catalog interface {
	SearchMulti(ctx context.Context, query string, opts tmdb.SearchOptions) ([]models.MediaItem, error)
	DiscoverMovies(ctx context.Context, opts tmdb.DiscoverOptions) ([]models.MediaItem, error)
	DiscoverTV(ctx context.Context, opts tmdb.DiscoverOptions) ([]models.MediaItem, error)
	GetPopular(ctx context.Context) []models.MediaItem
}

// genreMapping translates natural-language genre names to TMDB genre IDs.
var genreMapping = map[string]int{
	"action":          28,
	"adventure":       12,
	"animation":       16,
	"comedy":          35,
	"crime":           80,
	"documentary":     99,
	"drama":           18,
	"family":          10751,
	"fantasy":         14,
	"history":         36,
	"horror":          27,
	"music":           10402,
	"mystery":         9648,
	"romance":         10749,
	"science fiction": 878,
	"sci-fi":          878,
	"thriller":        53,
	"war":             10752,
	"western":         37,
}

// genreNames holds the mapping keys in a fixed order so the heuristic
// fallback produces the same criteria for the same prompt every time.
var genreNames = func() []string {
	names := make([]string, 0, len(genreMapping))
	for name := range genreMapping {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}()

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// RecommendationService turns a free-text prompt into ranked movie/TV
// recommendations with a natural-language explanation.
type RecommendationService struct {
	catalog Catalog
	model   Generator
}

// NewRecommendationService creates a recommendation engine.
func NewRecommendationService(catalog Catalog, model Generator) *RecommendationService {
	return &RecommendationService{catalog: catalog, model: model}
}

// GetRecommendations runs the full pipeline: criteria extraction, catalog
// search, ranking, and explanation. Model failures are absorbed into
// deterministic fallbacks along the way; only catalog failures surface,
// wrapped into a single generic error.
func (s *RecommendationService) GetRecommendations(ctx context.Context, prompt string) (*models.RecommendationResult, error) {
	criteria := s.ExtractCriteria(ctx, prompt)

	results, err := s.SearchContent(ctx, criteria)
	if err != nil {
		slog.Error("recommendation search failed", "error", err)
		return nil, fmt.Errorf("failed to generate recommendation: %w", err)
	}

	explanation := s.GenerateExplanation(ctx, prompt, criteria, results)

	return &models.RecommendationResult{
		Results:        results,
		Explanation:    explanation,
		SearchCriteria: criteria,
	}, nil
}

const extractPrompt = `You are a movie/TV recommendation expert. Extract search criteria from the user's prompt and return ONLY a valid JSON object.

Guidelines:
- mediaType: "movie", "tv", or "both" based on what they want
- genres: array of genre names (action, comedy, romance, horror, etc.)
- minRating: number 0-10 if they mention wanting good/high ratings (default 7 for "good ratings")
- year: specific year or decade if mentioned
- keywords: important descriptive words for search
- mood: overall feeling they want (happy, sad, exciting, relaxing, etc.)

Example responses:
{"mediaType": "movie", "genres": ["romance"], "minRating": 7, "keywords": ["love", "romantic"], "mood": "romantic"}
{"mediaType": "both", "genres": ["action", "thriller"], "keywords": ["fast-paced", "suspense"]}

User prompt: "%s"

Return only the JSON object:`

// ExtractCriteria asks the model to turn the prompt into structured search
// criteria. Any model or parse failure falls back to a deterministic
// keyword heuristic, so extraction never fails the request.
func (s *RecommendationService) ExtractCriteria(ctx context.Context, prompt string) models.RecommendationCriteria {
	text, err := s.model.Generate(ctx, fmt.Sprintf(extractPrompt, prompt))
	if err != nil {
		slog.Warn("criteria extraction model call failed, using heuristic", "error", err)
		return fallbackCriteria(prompt)
	}

	raw := jsonObjectPattern.FindString(strings.TrimSpace(text))
	if raw == "" {
		slog.Warn("no JSON object in model response, using heuristic")
		return fallbackCriteria(prompt)
	}

	var criteria models.RecommendationCriteria
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
		slog.Warn("failed to parse criteria JSON, using heuristic", "error", err)
		return fallbackCriteria(prompt)
	}

	switch criteria.MediaType {
	case models.MediaTypeMovie, models.MediaTypeTV, models.MediaTypeBoth:
	default:
		criteria.MediaType = models.MediaTypeBoth
	}
	if criteria.Genres == nil {
		criteria.Genres = []string{}
	}
	if criteria.Keywords == nil {
		criteria.Keywords = []string{}
	}
	return criteria
}

// fallbackCriteria derives criteria from the prompt alone: known genre
// names, movie/tv markers, a rating floor for "good"/"high", and every
// word longer than three characters as a keyword.
func fallbackCriteria(prompt string) models.RecommendationCriteria {
	lower := strings.ToLower(prompt)

	genres := []string{}
	for _, name := range genreNames {
		if strings.Contains(lower, name) {
			genres = append(genres, name)
		}
	}

	mediaType := models.MediaTypeBoth
	if strings.Contains(lower, "movie") {
		mediaType = models.MediaTypeMovie
	} else if strings.Contains(lower, "tv") || strings.Contains(lower, "series") {
		mediaType = models.MediaTypeTV
	}

	var minRating float64
	if strings.Contains(lower, "good") || strings.Contains(lower, "high") {
		minRating = 7
	}

	keywords := []string{}
	for _, word := range strings.Fields(prompt) {
		if len(word) > 3 {
			keywords = append(keywords, word)
		}
	}

	return models.RecommendationCriteria{
		MediaType: mediaType,
		Genres:    genres,
		MinRating: minRating,
		Keywords:  keywords,
	}
}

// SearchContent fans out catalog queries for the criteria, then merges,
// deduplicates, filters, and ranks the results.
func (s *RecommendationService) SearchContent(ctx context.Context, criteria models.RecommendationCriteria) ([]models.MediaItem, error) {
	genreIDs := mapGenreIDs(criteria.Genres)

	searchMovies := criteria.MediaType == models.MediaTypeMovie || criteria.MediaType == models.MediaTypeBoth
	searchTV := criteria.MediaType == models.MediaTypeTV || criteria.MediaType == models.MediaTypeBoth

	var lists [][]models.MediaItem
	var mu sync.Mutex
	appendList := func(items []models.MediaItem) {
		mu.Lock()
		lists = append(lists, items)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	launched := false

	if len(genreIDs) > 0 {
		opts := tmdb.DiscoverOptions{
			Page:      1,
			GenreIDs:  genreIDs,
			MinRating: criteria.MinRating,
			Year:      criteria.Year,
		}
		if searchMovies {
			launched = true
			g.Go(func() error {
				items, err := s.catalog.DiscoverMovies(gctx, opts)
				if err != nil {
					return err
				}
				appendList(items)
				return nil
			})
		}
		if searchTV {
			launched = true
			g.Go(func() error {
				items, err := s.catalog.DiscoverTV(gctx, opts)
				if err != nil {
					return err
				}
				appendList(items)
				return nil
			})
		}
	}

	if len(criteria.Keywords) > 0 {
		launched = true
		query := strings.Join(criteria.Keywords, " ")
		g.Go(func() error {
			items, err := s.catalog.SearchMulti(gctx, query, tmdb.SearchOptions{Page: 1, Year: criteria.Year})
			if err != nil {
				return err
			}
			appendList(items)
			return nil
		})
	}

	if !launched {
		lists = append(lists, s.catalog.GetPopular(ctx))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := dedupe(lists)

	if criteria.MediaType != models.MediaTypeBoth {
		filtered := merged[:0]
		for _, item := range merged {
			if item.MediaType == criteria.MediaType {
				filtered = append(filtered, item)
			}
		}
		merged = filtered
	}

	// Genre-filtered discover queries already apply the rating floor
	// server-side; only filter locally when that path was not taken.
	if criteria.MinRating > 0 && len(genreIDs) == 0 {
		filtered := merged[:0]
		for _, item := range merged {
			if item.VoteAverage >= criteria.MinRating && item.VoteCount >= 50 {
				filtered = append(filtered, item)
			}
		}
		merged = filtered
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return rankScore(merged[i]) > rankScore(merged[j])
	})
	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged, nil
}

// rankScore balances quality against reach: the rating weighted by the
// log of popularity.
func rankScore(item models.MediaItem) float64 {
	return item.VoteAverage * math.Log(item.Popularity+1)
}

func mapGenreIDs(genres []string) []int {
	seen := make(map[int]bool)
	ids := make([]int, 0, len(genres))
	for _, genre := range genres {
		id, ok := genreMapping[strings.ToLower(genre)]
		if ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// dedupe flattens the result lists keeping the first occurrence of each
// (id, media type) pair.
func dedupe(lists [][]models.MediaItem) []models.MediaItem {
	seen := make(map[models.MediaKey]bool)
	var merged []models.MediaItem
	for _, list := range lists {
		for _, item := range list {
			if seen[item.Key()] {
				continue
			}
			seen[item.Key()] = true
			merged = append(merged, item)
		}
	}
	return merged
}

const explainPrompt = `Generate a brief, friendly explanation for why these recommendations match the user's request.

User asked for: "%s"
Search criteria found: %s
Number of results: %d

Write a 1-2 sentence explanation that's conversational and helpful.
Examples:
- "Based on your request for romance movies with good ratings, I found 8 highly-rated romantic films that should be perfect for a cozy night in."
- "Here are 5 thrilling action movies that match your criteria - all have great ratings and plenty of excitement."

Keep it concise and natural:`

// GenerateExplanation produces the natural-language summary for the
// results. A model failure degrades to a templated sentence.
func (s *RecommendationService) GenerateExplanation(ctx context.Context, prompt string, criteria models.RecommendationCriteria, results []models.MediaItem) string {
	if len(results) == 0 {
		return "I couldn't find any results matching your criteria. Try adjusting your search terms."
	}

	criteriaJSON, _ := json.Marshal(criteria)
	text, err := s.model.Generate(ctx, fmt.Sprintf(explainPrompt, prompt, criteriaJSON, len(results)))
	if err != nil {
		slog.Warn("explanation model call failed, using template", "error", err)
		return fmt.Sprintf("I found %d recommendations based on your search for %s content.",
			len(results), strings.Join(criteria.Genres, ", "))
	}
	return strings.TrimSpace(text)
}
