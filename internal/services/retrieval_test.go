package services

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"rag-server/internal/config"
	"rag-server/internal/models"
)

func setupTestRetrievalService(collections []config.CollectionSpec, withKeyword bool) (*RetrievalService, *MockVectorRepository, *MockKeywordRepository) {
	mockVectorRepo := new(MockVectorRepository)
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)

	var mockKeywordRepo *MockKeywordRepository
	service := NewRetrievalService(mockVectorRepo, nil, collections, logger)
	if withKeyword {
		mockKeywordRepo = new(MockKeywordRepository)
		service = NewRetrievalService(mockVectorRepo, mockKeywordRepo, collections, logger)
	}

	return service, mockVectorRepo, mockKeywordRepo
}

func testCollections() []config.CollectionSpec {
	return []config.CollectionSpec{
		{URL: "http://localhost:6333", CollectionName: "alpha", Limit: 5, ScoreThreshold: 0.4},
		{URL: "http://localhost:6333", CollectionName: "beta", Limit: 5, ScoreThreshold: 0.4},
	}
}

func testQuery() RetrievalQuery {
	return RetrievalQuery{
		Text:      "how does the billing pipeline work",
		Embedding: []float32{0.1, 0.2, 0.3},
	}
}

func chunk(text string, score float32, source string) models.RetrievedChunk {
	return models.RetrievedChunk{Text: text, Score: score, Source: source}
}

func TestRetrieve_MergesAndRanksAcrossCollections(t *testing.T) {
	service, mockVectorRepo, _ := setupTestRetrievalService(testCollections(), false)

	mockVectorRepo.On("SearchChunks", mock.Anything, "alpha", mock.Anything, 5, float32(0.4)).Return([]models.RetrievedChunk{
		chunk("payments are batched nightly", 0.9, "alpha"),
		chunk("the ledger is append only", 0.8, "alpha"),
		chunk("invoices are generated per tenant", 0.7, "alpha"),
		chunk("refunds settle within two days", 0.5, "alpha"),
		chunk("archived records are cold storage", 0.3, "alpha"),
	}, nil)
	mockVectorRepo.On("SearchChunks", mock.Anything, "beta", mock.Anything, 5, float32(0.4)).Return([]models.RetrievedChunk{
		chunk("disputes pause the billing cycle", 0.6, "beta"),
		chunk("tax rates come from a lookup table", 0.45, "beta"),
		chunk("exports run on weekends", 0.2, "beta"),
	}, nil)

	merged, err := service.Retrieve(context.Background(), testQuery(), 10000)

	assert.NoError(t, err)
	assert.Len(t, merged, 6)
	scores := make([]float32, len(merged))
	for i, c := range merged {
		scores[i] = c.Score
	}
	assert.Equal(t, []float32{0.9, 0.8, 0.7, 0.6, 0.5, 0.45}, scores)
}

func TestRetrieve_FiltersBelowThresholdEvenIfStoreDoesNot(t *testing.T) {
	service, mockVectorRepo, _ := setupTestRetrievalService(testCollections()[:1], false)

	// The store returned hits below the threshold; they must not survive.
	mockVectorRepo.On("SearchChunks", mock.Anything, "alpha", mock.Anything, 5, float32(0.4)).Return([]models.RetrievedChunk{
		chunk("strong match", 0.8, "alpha"),
		chunk("weak match", 0.39, "alpha"),
		chunk("borderline match", 0.4, "alpha"),
	}, nil)

	merged, err := service.Retrieve(context.Background(), testQuery(), 10000)

	assert.NoError(t, err)
	assert.Len(t, merged, 2)
	for _, c := range merged {
		assert.GreaterOrEqual(t, c.Score, float32(0.4))
	}
}

func TestRetrieve_DeduplicatesKeepingBestScore(t *testing.T) {
	service, mockVectorRepo, _ := setupTestRetrievalService(testCollections(), false)

	mockVectorRepo.On("SearchChunks", mock.Anything, "alpha", mock.Anything, 5, float32(0.4)).Return([]models.RetrievedChunk{
		chunk("The Ledger is append only", 0.7, "alpha"),
	}, nil)
	mockVectorRepo.On("SearchChunks", mock.Anything, "beta", mock.Anything, 5, float32(0.4)).Return([]models.RetrievedChunk{
		chunk("the   ledger is append only", 0.85, "beta"),
	}, nil)

	merged, err := service.Retrieve(context.Background(), testQuery(), 10000)

	assert.NoError(t, err)
	assert.Len(t, merged, 1)
	assert.Equal(t, float32(0.85), merged[0].Score)
	assert.Equal(t, "beta", merged[0].Source)
}

func TestRetrieve_PartialFailureIsTolerated(t *testing.T) {
	service, mockVectorRepo, _ := setupTestRetrievalService(testCollections(), false)

	mockVectorRepo.On("SearchChunks", mock.Anything, "alpha", mock.Anything, 5, float32(0.4)).Return(nil, errors.New("connection refused"))
	mockVectorRepo.On("SearchChunks", mock.Anything, "beta", mock.Anything, 5, float32(0.4)).Return([]models.RetrievedChunk{
		chunk("the ledger is append only", 0.8, "beta"),
	}, nil)

	merged, err := service.Retrieve(context.Background(), testQuery(), 10000)

	assert.NoError(t, err)
	assert.Len(t, merged, 1)
}

func TestRetrieve_AllSourcesFailing(t *testing.T) {
	service, mockVectorRepo, mockKeywordRepo := setupTestRetrievalService(testCollections(), true)

	mockVectorRepo.On("SearchChunks", mock.Anything, mock.Anything, mock.Anything, 5, float32(0.4)).Return(nil, errors.New("connection refused"))
	mockKeywordRepo.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))

	merged, err := service.Retrieve(context.Background(), testQuery(), 10000)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 retrieval sources failed")
	assert.Nil(t, merged)
}

func TestRetrieve_KeywordSourceContributes(t *testing.T) {
	service, mockVectorRepo, mockKeywordRepo := setupTestRetrievalService(testCollections()[:1], true)

	mockVectorRepo.On("SearchChunks", mock.Anything, "alpha", mock.Anything, 5, float32(0.4)).Return([]models.RetrievedChunk{
		chunk("payments are batched nightly", 0.9, "alpha"),
	}, nil)
	mockKeywordRepo.On("Search", mock.Anything, mock.Anything, 5).Return([]models.RetrievedChunk{
		chunk("disputes pause the billing cycle", 0.6, "keyword"),
	}, nil)

	merged, err := service.Retrieve(context.Background(), testQuery(), 10000)

	assert.NoError(t, err)
	assert.Len(t, merged, 2)
	assert.Equal(t, "keyword", merged[1].Source)
}

func TestRetrieve_KeywordTimeoutFallsBackToVectorResults(t *testing.T) {
	service, mockVectorRepo, mockKeywordRepo := setupTestRetrievalService(testCollections(), true)

	mockVectorRepo.On("SearchChunks", mock.Anything, "alpha", mock.Anything, 5, float32(0.4)).Return([]models.RetrievedChunk{
		chunk("payments are batched nightly", 0.9, "alpha"),
	}, nil)
	mockVectorRepo.On("SearchChunks", mock.Anything, "beta", mock.Anything, 5, float32(0.4)).Return([]models.RetrievedChunk{
		chunk("the ledger is append only", 0.8, "beta"),
	}, nil)
	mockKeywordRepo.On("Search", mock.Anything, mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)

	merged, err := service.Retrieve(context.Background(), testQuery(), 10000)

	assert.NoError(t, err)
	assert.Len(t, merged, 2)
	for _, c := range merged {
		assert.NotEqual(t, "keyword", c.Source)
	}
}

func TestRetrieve_NoSources(t *testing.T) {
	service, _, _ := setupTestRetrievalService(nil, false)

	merged, err := service.Retrieve(context.Background(), testQuery(), 10000)

	assert.NoError(t, err)
	assert.Empty(t, merged)
}

func TestMergeChunks_TokenBudget(t *testing.T) {
	chunks := []models.RetrievedChunk{
		chunk("one two three four", 0.9, "alpha"), // 4 tokens
		chunk("five six seven", 0.8, "alpha"),     // 3 tokens
		chunk("eight nine", 0.7, "alpha"),         // 2 tokens
	}

	tests := []struct {
		name     string
		budget   int
		expected int
	}{
		{"All fit", 9, 3},
		{"Last one dropped", 8, 2},
		{"Only first fits", 4, 1},
		{"Nothing fits", 3, 0},
		{"Zero budget", 0, 0},
		{"Negative budget", -10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := mergeChunks(chunks, tt.budget)
			assert.Len(t, merged, tt.expected)
		})
	}
}

func TestMergeChunks_DropsLowestScoresFirst(t *testing.T) {
	chunks := []models.RetrievedChunk{
		chunk("low score text", 0.5, "alpha"),
		chunk("high score text", 0.9, "beta"),
	}

	merged := mergeChunks(chunks, 3)

	assert.Len(t, merged, 1)
	assert.Equal(t, float32(0.9), merged[0].Score)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 0, EstimateTokens("   "))
	assert.Equal(t, 3, EstimateTokens("one two three"))
	assert.Equal(t, 3, EstimateTokens("  one\ttwo\nthree  "))
}
