package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// QdrantClient wraps HTTP calls to the Qdrant REST API
// This avoids compatibility issues with the official Go client library
type QdrantClient struct {
	baseURL    string
	httpClient *http.Client
}

// QdrantConfig holds configuration for a Qdrant connection
type QdrantConfig struct {
	URL     string
	Timeout time.Duration
}

// ScoredPoint is one similarity search hit
type ScoredPoint struct {
	ID      interface{}            `json:"id"`
	Score   float32                `json:"score"`
	Payload map[string]interface{} `json:"payload"`
}

type searchRequest struct {
	Vector         []float32 `json:"vector"`
	Limit          int       `json:"limit"`
	WithPayload    bool      `json:"with_payload"`
	ScoreThreshold float32   `json:"score_threshold,omitempty"`
}

type searchResponse struct {
	Result []ScoredPoint `json:"result"`
	Status interface{}   `json:"status"`
}

// NewQdrantClient creates a new Qdrant REST client
func NewQdrantClient(config QdrantConfig) *QdrantClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &QdrantClient{
		baseURL: config.URL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// SearchPoints runs a similarity query against a collection, capped at limit
// and filtered server-side to score >= scoreThreshold.
func (c *QdrantClient) SearchPoints(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]ScoredPoint, error) {
	reqBody := searchRequest{
		Vector:         vector,
		Limit:          limit,
		WithPayload:    true,
		ScoreThreshold: scoreThreshold,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query Qdrant: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Qdrant returned status %d: %s", resp.StatusCode, string(body))
	}

	var searchResp searchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return searchResp.Result, nil
}

// CollectionExists checks whether a collection is present
func (c *QdrantClient) CollectionExists(ctx context.Context, collection string) (bool, error) {
	url := fmt.Sprintf("%s/collections/%s/exists", c.baseURL, collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to query Qdrant: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("Qdrant returned status %d", resp.StatusCode)
	}

	var existsResp struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&existsResp); err != nil {
		return false, fmt.Errorf("failed to parse response: %w", err)
	}

	return existsResp.Result.Exists, nil
}

// Healthz checks if Qdrant is alive
func (c *QdrantClient) Healthz(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Qdrant not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Qdrant returned status %d", resp.StatusCode)
	}

	return nil
}
