package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const (
	// Refresh this long before the cached token actually expires.
	tokenBufferTime = 5 * time.Minute
	tokenTTL        = 24 * time.Hour
)

type cachedToken struct {
	token     string
	expiresAt time.Time
	isValid   bool
}

// refreshCall is a single in-flight refresh shared by all waiting callers.
type refreshCall struct {
	done  chan struct{}
	token string
	err   error
}

// TokenManager caches the TMDB bearer credential in memory and refreshes it
// ahead of expiry. Concurrent callers during a refresh all wait on the same
// upstream call. The cache does not survive restarts, which is fine: the
// credential is derived from the configured API key.
type TokenManager struct {
	apiKey  string
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	cached  *cachedToken
	pending *refreshCall
}

// NewTokenManager creates a token manager for the given TMDB API key.
func NewTokenManager(apiKey, baseURL string) *TokenManager {
	return &TokenManager{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetValidToken returns a valid bearer token, refreshing if necessary.
func (t *TokenManager) GetValidToken(ctx context.Context) (string, error) {
	t.mu.Lock()

	if t.tokenValidLocked() {
		token := t.cached.token
		t.mu.Unlock()
		return token, nil
	}

	// Join an in-flight refresh if one exists.
	if t.pending != nil {
		call := t.pending
		t.mu.Unlock()
		select {
		case <-call.done:
			return call.token, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	call := &refreshCall{done: make(chan struct{})}
	t.pending = call
	t.mu.Unlock()

	token, err := t.refreshToken(ctx)

	t.mu.Lock()
	call.token = token
	call.err = err
	t.pending = nil
	t.mu.Unlock()
	close(call.done)

	return token, err
}

// tokenValidLocked reports whether the cached token is still usable.
// Caller must hold t.mu.
func (t *TokenManager) tokenValidLocked() bool {
	if t.cached == nil || !t.cached.isValid {
		return false
	}
	return time.Now().Before(t.cached.expiresAt.Add(-tokenBufferTime))
}

func (t *TokenManager) refreshToken(ctx context.Context) (string, error) {
	if t.apiKey == "" {
		return "", &AuthenticationError{Message: "TMDB_API_KEY is not configured"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/authentication", nil)
	if err != nil {
		return "", fmt.Errorf("build authentication request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		t.InvalidateToken()
		return "", &AuthenticationError{Message: "failed to refresh authentication token", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.InvalidateToken()
		return "", &AuthenticationError{
			Message:    fmt.Sprintf("authentication failed: %s", resp.Status),
			StatusCode: resp.StatusCode,
		}
	}

	var body struct {
		Success       *bool  `json:"success"`
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.InvalidateToken()
		return "", &AuthenticationError{Message: "failed to decode authentication response", Err: err}
	}
	if body.Success != nil && !*body.Success {
		t.InvalidateToken()
		return "", &AuthenticationError{
			Message:    fmt.Sprintf("TMDB API error: %s", body.StatusMessage),
			StatusCode: body.StatusCode,
		}
	}

	// TMDB server-to-server calls use the API key itself as the bearer
	// token; the authentication endpoint only confirms the key works.
	t.mu.Lock()
	t.cached = &cachedToken{
		token:     t.apiKey,
		expiresAt: time.Now().Add(tokenTTL),
		isValid:   true,
	}
	t.mu.Unlock()

	slog.Debug("TMDB token refreshed")
	return t.apiKey, nil
}

// InvalidateToken marks the cached token invalid without clearing it,
// forcing the next GetValidToken to refresh.
func (t *TokenManager) InvalidateToken() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cached != nil {
		t.cached.isValid = false
	}
}

// TokenInfo describes the cached credential without exposing its value.
type TokenInfo struct {
	HasToken  bool      `json:"has_token"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	IsValid   bool      `json:"is_valid"`
}

// Info returns cached credential metadata for the health endpoint.
func (t *TokenManager) Info() TokenInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cached == nil {
		return TokenInfo{}
	}
	return TokenInfo{
		HasToken:  true,
		ExpiresAt: t.cached.expiresAt,
		IsValid:   t.cached.isValid,
	}
}
