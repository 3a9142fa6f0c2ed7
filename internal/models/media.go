package models

// MediaType identifies what kind of entry a TMDB result is.
type MediaType string

const (
	MediaTypeMovie  MediaType = "movie"
	MediaTypeTV     MediaType = "tv"
	MediaTypePerson MediaType = "person"
	MediaTypeBoth   MediaType = "both"
)

// MediaItem is a movie or TV show from TMDB multi-search/discover results.
// The MediaType discriminant decides which of the variant fields are set:
// movies carry Title/ReleaseDate, TV shows carry Name/FirstAirDate.
// IDs are only unique per media type, so identity is the (ID, MediaType) pair.
type MediaItem struct {
	ID          int       `json:"id"`
	MediaType   MediaType `json:"media_type"`
	PosterPath  string    `json:"poster_path"`
	Overview    string    `json:"overview"`
	Popularity  float64   `json:"popularity"`
	VoteAverage float64   `json:"vote_average"`
	VoteCount   int       `json:"vote_count"`

	// Movie variant
	Title       string `json:"title,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`

	// TV variant
	Name         string `json:"name,omitempty"`
	FirstAirDate string `json:"first_air_date,omitempty"`
}

// MediaKey is the identity of a MediaItem.
type MediaKey struct {
	ID        int
	MediaType MediaType
}

// Key returns the item's identity pair.
func (m MediaItem) Key() MediaKey {
	return MediaKey{ID: m.ID, MediaType: m.MediaType}
}

// DisplayTitle returns the title for movies and the name for TV shows.
func (m MediaItem) DisplayTitle() string {
	switch m.MediaType {
	case MediaTypeMovie:
		return m.Title
	case MediaTypeTV:
		return m.Name
	}
	return ""
}

// ReleaseYear returns the release date for movies and the first air date
// for TV shows.
func (m MediaItem) ReleaseYear() string {
	switch m.MediaType {
	case MediaTypeMovie:
		return m.ReleaseDate
	case MediaTypeTV:
		return m.FirstAirDate
	}
	return ""
}

// Provider is a streaming/rental/purchase platform for a title.
type Provider struct {
	ProviderID      int    `json:"provider_id"`
	ProviderName    string `json:"provider_name"`
	LogoPath        string `json:"logo_path"`
	DisplayPriority int    `json:"display_priority"`
}

// CountryProviders groups providers for one country by offer type.
type CountryProviders struct {
	Link     string     `json:"link,omitempty"`
	Flatrate []Provider `json:"flatrate,omitempty"`
	Rent     []Provider `json:"rent,omitempty"`
	Buy      []Provider `json:"buy,omitempty"`
	Free     []Provider `json:"free,omitempty"`
}

// WatchProviderResponse is the TMDB watch-providers listing keyed by
// country code.
type WatchProviderResponse struct {
	ID      int                         `json:"id"`
	Results map[string]CountryProviders `json:"results"`
}
