package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"rag-server/internal/models"
)

// ============================================================================
// Shared Mocks
// ============================================================================

type MockVectorRepository struct {
	mock.Mock
}

func (m *MockVectorRepository) SearchChunks(ctx context.Context, collection string, embedding []float32, limit int, scoreThreshold float32) ([]models.RetrievedChunk, error) {
	args := m.Called(ctx, collection, embedding, limit, scoreThreshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RetrievedChunk), args.Error(1)
}

func (m *MockVectorRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockKeywordRepository struct {
	mock.Mock
}

func (m *MockKeywordRepository) Search(ctx context.Context, query string, limit int) ([]models.RetrievedChunk, error) {
	args := m.Called(ctx, query, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.RetrievedChunk), args.Error(1)
}

type MockEngineClient struct {
	mock.Mock
}

func (m *MockEngineClient) Embeddings(ctx context.Context, req *models.EmbeddingRequest) (*models.EmbeddingResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmbeddingResponse), args.Error(1)
}

func (m *MockEngineClient) ChatCompletion(ctx context.Context, req *models.ChatCompletionRequest) (*models.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatCompletionResponse), args.Error(1)
}

func (m *MockEngineClient) ChatCompletionStream(ctx context.Context, req *models.ChatCompletionRequest) (*CompletionStream, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CompletionStream), args.Error(1)
}

func (m *MockEngineClient) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
