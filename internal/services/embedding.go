package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"rag-server/internal/models"
)

const embeddingCacheTTL = 6 * time.Hour

// EmbeddingService wraps the engine's embedding capability behind a narrow
// text-to-vector interface, with an optional Redis cache for query vectors.
type EmbeddingService struct {
	engine EngineClient
	model  string
	cache  *redis.Client // nil disables caching
	logger *log.Logger
}

// NewEmbeddingService creates an embedding gateway for the configured model
func NewEmbeddingService(engine EngineClient, model string, cache *redis.Client, logger *log.Logger) *EmbeddingService {
	return &EmbeddingService{
		engine: engine,
		model:  model,
		cache:  cache,
		logger: logger,
	}
}

// EmbedQuery computes the embedding of a single query text
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := s.cacheGet(ctx, text); ok {
		s.logger.Printf("embedding cache hit (%d dims)", len(vector))
		return vector, nil
	}

	start := time.Now()
	resp, err := s.engine.Embeddings(ctx, &models.EmbeddingRequest{
		Model: s.model,
		Input: models.EmbeddingInput{Texts: []string{text}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("engine returned no embedding")
	}

	vector := resp.Data[0].Embedding
	s.logger.Printf("query embedded in %.2fms (dimension: %d)",
		time.Since(start).Seconds()*1000, len(vector))

	s.cacheSet(ctx, text, vector)
	return vector, nil
}

// Embed forwards a full embeddings request to the engine, filling in the
// configured model when the caller omitted one.
func (s *EmbeddingService) Embed(ctx context.Context, req *models.EmbeddingRequest) (*models.EmbeddingResponse, error) {
	engineReq := *req
	if engineReq.Model == "" {
		engineReq.Model = s.model
	}
	resp, err := s.engine.Embeddings(ctx, &engineReq)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	return resp, nil
}

func (s *EmbeddingService) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(s.model + "\x00" + strings.TrimSpace(text)))
	return "rag:embedding:" + hex.EncodeToString(sum[:])
}

func (s *EmbeddingService) cacheGet(ctx context.Context, text string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(text)).Bytes()
	if err != nil {
		return nil, false
	}
	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		return nil, false
	}
	return vector, true
}

func (s *EmbeddingService) cacheSet(ctx context.Context, text string, vector []float32) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(vector)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(text), raw, embeddingCacheTTL).Err(); err != nil {
		s.logger.Printf("embedding cache write failed: %v", err)
	}
}
