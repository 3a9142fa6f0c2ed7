// Package genai calls a Gemini-style text-generation API. The service only
// needs a single-shot prompt -> text contract, so the client stays a thin
// HTTP wrapper behind the service layer's Generator interface.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Client is a text-generation model client.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
}

// NewClient creates a new text-generation client.
func NewClient(apiKey, baseURL, model string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends a single prompt to the model and returns its text response.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("text-generation API key is not configured")
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	slog.Debug("calling text-generation model", "model", c.model)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model returned status %d: %s", resp.StatusCode, string(data))
	}

	var out generateResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("model error %d: %s", out.Error.Code, out.Error.Message)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("model returned no candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
