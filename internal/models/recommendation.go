package models

// RecommendationCriteria is the structured form of a free-text prompt.
// Produced once per request and immutable afterwards.
type RecommendationCriteria struct {
	MediaType MediaType `json:"mediaType"`
	Genres    []string  `json:"genres"`
	MinRating float64   `json:"minRating,omitempty"`
	Year      int       `json:"year,omitempty"`
	Keywords  []string  `json:"keywords"`
	Mood      string    `json:"mood,omitempty"`
}

// RecommendationRequest is the body of the recommendations endpoint.
type RecommendationRequest struct {
	Prompt string `json:"prompt"`
}

// RecommendationResult is the response of the recommendations endpoint.
// Results are rank-ordered and hold at most 12 items, each with a unique
// (id, media_type) pair.
type RecommendationResult struct {
	Results        []MediaItem            `json:"results"`
	Explanation    string                 `json:"explanation"`
	SearchCriteria RecommendationCriteria `json:"searchCriteria"`
}
