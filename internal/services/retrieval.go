package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"rag-server/internal/config"
	"rag-server/internal/models"
	"rag-server/internal/repositories"
)

const defaultSourceTimeout = 10 * time.Second

// Number of query keywords sent to the keyword-search service
const keywordQueryTerms = 8

// RetrievalQuery carries the per-request query text and its embedding
type RetrievalQuery struct {
	Text      string
	Embedding []float32
}

// RetrievalService fans a query out to every configured vector collection
// plus the optional keyword service, then filters, deduplicates and ranks
// the union into a bounded passage set.
type RetrievalService struct {
	vectorRepo    repositories.VectorRepository
	keywordRepo   repositories.KeywordRepository // nil when not configured
	collections   []config.CollectionSpec
	extractor     *KeywordExtractor
	sourceTimeout time.Duration
	logger        *log.Logger
}

// NewRetrievalService creates a new retrieval fan-out engine
func NewRetrievalService(
	vectorRepo repositories.VectorRepository,
	keywordRepo repositories.KeywordRepository,
	collections []config.CollectionSpec,
	logger *log.Logger,
) *RetrievalService {
	return &RetrievalService{
		vectorRepo:    vectorRepo,
		keywordRepo:   keywordRepo,
		collections:   collections,
		extractor:     NewKeywordExtractor(),
		sourceTimeout: defaultSourceTimeout,
		logger:        logger,
	}
}

// Retrieve runs the fan-out and returns the merged chunk set, capped so the
// estimated token total stays within budget (budget <= 0 means no context
// fits and yields an empty result). A failing source contributes nothing;
// retrieval only fails when every configured source fails.
func (s *RetrievalService) Retrieve(ctx context.Context, query RetrievalQuery, budget int) ([]models.RetrievedChunk, error) {
	sources := len(s.collections)
	if s.keywordRepo != nil {
		sources++
	}

	var (
		mu        sync.Mutex
		collected []models.RetrievedChunk
		succeeded int
	)
	var wg sync.WaitGroup

	for _, spec := range s.collections {
		wg.Add(1)
		go func(spec config.CollectionSpec) {
			defer wg.Done()

			srcCtx, cancel := context.WithTimeout(ctx, s.sourceTimeout)
			defer cancel()

			chunks, err := s.vectorRepo.SearchChunks(srcCtx, spec.CollectionName, query.Embedding, spec.Limit, spec.ScoreThreshold)
			if err != nil {
				srcErr := &models.RetrievalSourceError{Source: spec.CollectionName, Err: err}
				s.logger.Printf("WARN: %v", srcErr)
				return
			}

			// The store filters by threshold server-side; filter again here so
			// the invariant holds for stores that ignore the parameter.
			kept := chunks[:0]
			for _, c := range chunks {
				if c.Score >= spec.ScoreThreshold {
					kept = append(kept, c)
				}
			}

			mu.Lock()
			collected = append(collected, kept...)
			succeeded++
			mu.Unlock()
		}(spec)
	}

	if s.keywordRepo != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()

			srcCtx, cancel := context.WithTimeout(ctx, s.sourceTimeout)
			defer cancel()

			kwQuery := s.extractor.QueryString(query.Text, keywordQueryTerms)
			chunks, err := s.keywordRepo.Search(srcCtx, kwQuery, s.keywordLimit())
			if err != nil {
				srcErr := &models.RetrievalSourceError{Source: "keyword", Err: err}
				s.logger.Printf("WARN: %v", srcErr)
				return
			}

			mu.Lock()
			collected = append(collected, chunks...)
			succeeded++
			mu.Unlock()
		}()
	}

	wg.Wait()

	if succeeded == 0 && sources > 0 {
		return nil, fmt.Errorf("all %d retrieval sources failed", sources)
	}

	merged := mergeChunks(collected, budget)
	s.logger.Printf("retrieval merged %d of %d candidate chunks from %d/%d sources",
		len(merged), len(collected), succeeded, sources)

	return merged, nil
}

// keywordLimit caps keyword hits at the largest configured collection limit
func (s *RetrievalService) keywordLimit() int {
	limit := 5
	for _, spec := range s.collections {
		if spec.Limit > limit {
			limit = spec.Limit
		}
	}
	return limit
}

// mergeChunks deduplicates by normalized text (keeping the best score),
// sorts by score descending and truncates to the token budget, dropping the
// lowest-scoring chunks first.
func mergeChunks(chunks []models.RetrievedChunk, budget int) []models.RetrievedChunk {
	if len(chunks) == 0 {
		return nil
	}

	seen := make(map[string]int, len(chunks))
	deduped := make([]models.RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		key := c.NormalizedText()
		if key == "" {
			continue
		}
		if idx, dup := seen[key]; dup {
			if c.Score > deduped[idx].Score {
				deduped[idx] = c
			}
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, c)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		return deduped[i].Score > deduped[j].Score
	})

	if budget <= 0 {
		return nil
	}

	total := 0
	for i, c := range deduped {
		total += EstimateTokens(c.Text)
		if total > budget {
			return deduped[:i]
		}
	}
	return deduped
}

// EstimateTokens approximates the token count of text by its word count
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}
