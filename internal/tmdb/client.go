package tmdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const maxRetries = 3

// Client performs authenticated TMDB API calls. A 401 invalidates the
// cached token and the call is retried with linear backoff, bounded by a
// single attempt counter.
type Client struct {
	baseURL    string
	tokens     *TokenManager
	http       *http.Client
	retryDelay time.Duration
}

// NewClient creates an authenticated TMDB API client.
func NewClient(baseURL string, tokens *TokenManager) *Client {
	return &Client{
		baseURL: baseURL,
		tokens:  tokens,
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		retryDelay: time.Second,
	}
}

// Get issues an authenticated GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return c.request(ctx, http.MethodGet, endpoint, nil, out)
}

// Post issues an authenticated POST with a JSON body and decodes the
// response into out.
func (c *Client) Post(ctx context.Context, endpoint string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}
	return c.request(ctx, http.MethodPost, endpoint, payload, out)
}

// request runs the call with one retry policy covering both the 401
// response path and authentication failures from the token manager.
func (c *Client) request(ctx context.Context, method, endpoint string, body []byte, out any) error {
	for attempt := 0; ; attempt++ {
		err := c.doOnce(ctx, method, endpoint, body, out)
		if err == nil {
			return nil
		}

		// Only a 401 is worth retrying; a missing or malformed key
		// will not get better on a second attempt.
		var authErr *AuthenticationError
		if !errors.As(err, &authErr) || authErr.StatusCode != http.StatusUnauthorized {
			return err
		}
		if attempt >= maxRetries {
			return &AuthenticationError{
				Message:    "authentication failed after multiple retries",
				StatusCode: authErr.StatusCode,
				Err:        authErr,
			}
		}

		delay := c.retryDelay * time.Duration(attempt+1)
		slog.Warn("retrying TMDB request after auth error",
			"endpoint", endpoint, "attempt", attempt+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) doOnce(ctx context.Context, method, endpoint string, body []byte, out any) error {
	token, err := c.tokens.GetValidToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.tokens.InvalidateToken()
		return &AuthenticationError{
			Message:    "TMDB rejected the bearer token",
			StatusCode: http.StatusUnauthorized,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RequestError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	// TMDB reports some application-level failures inside a 2xx body.
	var status struct {
		Success       *bool  `json:"success"`
		StatusMessage string `json:"status_message"`
	}
	if err := json.Unmarshal(data, &status); err == nil &&
		status.Success != nil && !*status.Success {
		return &RequestError{StatusCode: resp.StatusCode, Body: status.StatusMessage}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// HealthCheck verifies the API is reachable and the credential works.
// Errors are logged, not returned.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if err := c.Get(ctx, "/configuration", nil, nil); err != nil {
		slog.Error("TMDB health check failed", "error", err)
		return false
	}
	return true
}
