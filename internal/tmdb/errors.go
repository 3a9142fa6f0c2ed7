package tmdb

import "fmt"

// AuthenticationError reports an invalid or expired credential.
type AuthenticationError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// RequestError reports a non-2xx response or an API-level failure from TMDB.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("TMDB API request failed: status %d: %s", e.StatusCode, e.Body)
}
