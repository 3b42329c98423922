package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rag-server/internal/models"
)

// HTTPKeywordRepository implements KeywordRepository against a standalone
// keyword-search service.
type HTTPKeywordRepository struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPKeywordRepository creates a keyword repository for the service at baseURL
func NewHTTPKeywordRepository(baseURL string, timeout time.Duration) KeywordRepository {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPKeywordRepository{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type keywordSearchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type keywordSearchHit struct {
	Content string  `json:"content"`
	Score   float32 `json:"score"`
}

type keywordSearchResponse struct {
	Hits []keywordSearchHit `json:"hits"`
}

// Search queries the keyword service and maps hits to retrieved chunks
func (r *HTTPKeywordRepository) Search(ctx context.Context, query string, limit int) ([]models.RetrievedChunk, error) {
	jsonBody, err := json.Marshal(keywordSearchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, NewRepositoryError("keyword_search", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/search", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, NewRepositoryError("keyword_search", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, NewRepositoryError("keyword_search", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewRepositoryError("keyword_search", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewRepositoryError("keyword_search",
			fmt.Errorf("keyword service returned status %d: %s", resp.StatusCode, string(body)))
	}

	var searchResp keywordSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		return nil, NewRepositoryError("keyword_search", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(searchResp.Hits))
	for i, hit := range searchResp.Hits {
		if hit.Content == "" {
			continue
		}
		chunks = append(chunks, models.RetrievedChunk{
			Text:   hit.Content,
			Score:  hit.Score,
			Source: "keyword",
			Rank:   i,
		})
	}

	return chunks, nil
}
