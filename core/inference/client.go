package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"MelodyMind/core/apperr"
)

// LabelScore is one element of a classification reply.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Client talks to the Hugging Face inference API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client. An empty token is allowed; every call then
// fails with a ConfigurationError.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool {
	return c != nil && c.token != ""
}

// PostJSON sends payload as JSON to the model endpoint.
func (c *Client) PostJSON(ctx context.Context, modelID string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return c.post(ctx, modelID, body, "application/json")
}

// PostBinary sends raw bytes (image or audio) to the model endpoint.
func (c *Client) PostBinary(ctx context.Context, modelID string, data []byte) ([]byte, error) {
	return c.post(ctx, modelID, data, "")
}

func (c *Client) post(ctx context.Context, modelID string, body []byte, contentType string) ([]byte, error) {
	if !c.Configured() {
		return nil, &apperr.ConfigurationError{Capability: modelID, Reason: "HF_API_TOKEN not set"}
	}
	if modelID == "" {
		return nil, &apperr.ConfigurationError{Capability: "inference", Reason: "model id not set"}
	}

	url := fmt.Sprintf("%s/models/%s", c.baseURL, modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apperr.ProviderError{Model: modelID, StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}

// parseScores accepts both reply shapes: a flat list of {label, score} or a
// nested list whose first element is the list to scan. Anything else yields
// no scores.
func parseScores(raw []byte) []LabelScore {
	var nested [][]LabelScore
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0]
	}
	var flat []LabelScore
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat
	}
	return nil
}

// top returns the first element with the highest score. It reports false
// only for an empty list.
func top(scores []LabelScore) (LabelScore, bool) {
	if len(scores) == 0 {
		return LabelScore{}, false
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return best, true
}

// parseVector accepts a flat vector or a nested one (first row is used).
func parseVector(raw []byte) ([]float64, error) {
	var nested [][]float64
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("unexpected embedding response: %w", err)
	}
	return flat, nil
}
