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

func testRagConfig() *config.Config {
	return &config.Config{
		ChatModel:      config.ModelSpec{Name: "test-chat", CtxSize: 4096},
		EmbeddingModel: config.ModelSpec{Name: "test-embed", CtxSize: 384},
		Collections: []config.CollectionSpec{
			{URL: "http://localhost:6333", CollectionName: "alpha", Limit: 5, ScoreThreshold: 0.4},
		},
		Policy:        config.MergePolicySystemMessage,
		ContextWindow: 1,
	}
}

func setupTestRagService(cfg *config.Config) (*RagService, *MockEngineClient, *MockVectorRepository) {
	mockEngine := new(MockEngineClient)
	mockVectorRepo := new(MockVectorRepository)
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)

	embedder := NewEmbeddingService(mockEngine, cfg.EmbeddingModel.Name, nil, logger)
	retrieval := NewRetrievalService(mockVectorRepo, nil, cfg.Collections, logger)
	injector := NewInjector(cfg.Policy, cfg.RagPrompt)
	rag := NewRagService(mockEngine, embedder, retrieval, injector, cfg, logger)

	return rag, mockEngine, mockVectorRepo
}

func embeddingResponse(vector []float32) *models.EmbeddingResponse {
	return &models.EmbeddingResponse{
		Object: "list",
		Data:   []models.EmbeddingObject{{Object: "embedding", Index: 0, Embedding: vector}},
		Model:  "test-embed",
	}
}

func completionResponse(content string) *models.ChatCompletionResponse {
	return &models.ChatCompletionResponse{
		ID:     "cmpl-1",
		Object: "chat.completion",
		Model:  "test-chat",
		Choices: []models.ChatCompletionChoice{
			{Index: 0, Message: models.ChatMessage{Role: models.RoleAssistant, Content: content}, FinishReason: "stop"},
		},
	}
}

func TestChatCompletion_InjectsRetrievedContext(t *testing.T) {
	rag, mockEngine, mockVectorRepo := setupTestRagService(testRagConfig())
	ctx := context.Background()

	mockEngine.On("Embeddings", mock.Anything, mock.Anything).Return(embeddingResponse([]float32{0.1, 0.2}), nil)
	mockVectorRepo.On("SearchChunks", mock.Anything, "alpha", []float32{0.1, 0.2}, 5, float32(0.4)).Return([]models.RetrievedChunk{
		{Text: "payments are batched nightly", Score: 0.9, Source: "alpha"},
	}, nil)

	var dispatched *models.ChatCompletionRequest
	mockEngine.On("ChatCompletion", mock.Anything, mock.AnythingOfType("*models.ChatCompletionRequest")).
		Run(func(args mock.Arguments) {
			dispatched = args.Get(1).(*models.ChatCompletionRequest)
		}).
		Return(completionResponse("They are batched nightly."), nil)

	req := &models.ChatCompletionRequest{
		Messages: []models.ChatMessage{
			{Role: models.RoleUser, Content: "How does billing work?"},
		},
	}
	resp, err := rag.ChatCompletion(ctx, req)

	assert.NoError(t, err)
	assert.NotNil(t, resp)
	assert.NotNil(t, dispatched)
	assert.Equal(t, "test-chat", dispatched.Model)
	assert.Len(t, dispatched.Messages, 2)
	assert.Equal(t, models.RoleSystem, dispatched.Messages[0].Role)
	assert.Contains(t, dispatched.Messages[0].Content, "payments are batched nightly")
	// The caller's request is untouched.
	assert.Len(t, req.Messages, 1)
}

func TestChatCompletion_ContextWindowZeroDisablesRetrieval(t *testing.T) {
	cfg := testRagConfig()
	cfg.ContextWindow = 0
	rag, mockEngine, _ := setupTestRagService(cfg)

	var dispatched *models.ChatCompletionRequest
	mockEngine.On("ChatCompletion", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			dispatched = args.Get(1).(*models.ChatCompletionRequest)
		}).
		Return(completionResponse("answer"), nil)

	messages := []models.ChatMessage{
		{Role: models.RoleUser, Content: "How does billing work?"},
	}
	_, err := rag.ChatCompletion(context.Background(), &models.ChatCompletionRequest{Messages: messages})

	assert.NoError(t, err)
	assert.Equal(t, messages, dispatched.Messages)
	mockEngine.AssertNotCalled(t, "Embeddings", mock.Anything, mock.Anything)
}

func TestChatCompletion_NoUserMessagesSkipsRetrieval(t *testing.T) {
	rag, mockEngine, _ := setupTestRagService(testRagConfig())

	mockEngine.On("ChatCompletion", mock.Anything, mock.Anything).Return(completionResponse("answer"), nil)

	messages := []models.ChatMessage{
		{Role: models.RoleSystem, Content: "You are a helpful assistant."},
	}
	_, err := rag.ChatCompletion(context.Background(), &models.ChatCompletionRequest{Messages: messages})

	assert.NoError(t, err)
	mockEngine.AssertNotCalled(t, "Embeddings", mock.Anything, mock.Anything)
}

func TestChatCompletion_NoQualifyingChunksForwardsOriginal(t *testing.T) {
	rag, mockEngine, mockVectorRepo := setupTestRagService(testRagConfig())

	mockEngine.On("Embeddings", mock.Anything, mock.Anything).Return(embeddingResponse([]float32{0.1}), nil)
	mockVectorRepo.On("SearchChunks", mock.Anything, "alpha", mock.Anything, 5, float32(0.4)).Return([]models.RetrievedChunk{}, nil)

	var dispatched *models.ChatCompletionRequest
	mockEngine.On("ChatCompletion", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			dispatched = args.Get(1).(*models.ChatCompletionRequest)
		}).
		Return(completionResponse("answer"), nil)

	messages := []models.ChatMessage{
		{Role: models.RoleUser, Content: "How does billing work?"},
	}
	_, err := rag.ChatCompletion(context.Background(), &models.ChatCompletionRequest{Messages: messages})

	assert.NoError(t, err)
	assert.Equal(t, messages, dispatched.Messages)
}

func TestChatCompletion_EmbeddingFailureStopsPipeline(t *testing.T) {
	rag, mockEngine, _ := setupTestRagService(testRagConfig())

	mockEngine.On("Embeddings", mock.Anything, mock.Anything).Return(nil, errors.New("engine down"))

	_, err := rag.ChatCompletion(context.Background(), &models.ChatCompletionRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "How does billing work?"}},
	})

	assert.Error(t, err)
	var opErr *models.OperationError
	assert.ErrorAs(t, err, &opErr)
	assert.Equal(t, "embed query", opErr.Op)
	mockEngine.AssertNotCalled(t, "ChatCompletion", mock.Anything, mock.Anything)
}

func TestChatCompletion_AllSourcesFailedStopsPipeline(t *testing.T) {
	rag, mockEngine, mockVectorRepo := setupTestRagService(testRagConfig())

	mockEngine.On("Embeddings", mock.Anything, mock.Anything).Return(embeddingResponse([]float32{0.1}), nil)
	mockVectorRepo.On("SearchChunks", mock.Anything, "alpha", mock.Anything, 5, float32(0.4)).Return(nil, errors.New("connection refused"))

	_, err := rag.ChatCompletion(context.Background(), &models.ChatCompletionRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "How does billing work?"}},
	})

	assert.Error(t, err)
	var opErr *models.OperationError
	assert.ErrorAs(t, err, &opErr)
	assert.Equal(t, "retrieve context", opErr.Op)
	mockEngine.AssertNotCalled(t, "ChatCompletion", mock.Anything, mock.Anything)
}

func TestChatCompletionStream_ForcesStreamAndUsage(t *testing.T) {
	cfg := testRagConfig()
	cfg.ContextWindow = 0
	cfg.IncludeUsage = true
	rag, mockEngine, _ := setupTestRagService(cfg)

	var dispatched *models.ChatCompletionRequest
	mockEngine.On("ChatCompletionStream", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			dispatched = args.Get(1).(*models.ChatCompletionRequest)
		}).
		Return(newTestStream("data: {\"id\":\"c1\"}\n\ndata: [DONE]\n\n"), nil)

	stream, err := rag.ChatCompletionStream(context.Background(), &models.ChatCompletionRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}},
	})

	assert.NoError(t, err)
	assert.NotNil(t, stream)
	defer stream.Close()

	assert.True(t, dispatched.Stream)
	assert.NotNil(t, dispatched.StreamOptions)
	assert.True(t, dispatched.StreamOptions.IncludeUsage)
}

func TestExtractQuery_UsesLastUserTurnsInOrder(t *testing.T) {
	cfg := testRagConfig()
	cfg.ContextWindow = 2
	rag, _, _ := setupTestRagService(cfg)

	query := rag.extractQuery([]models.ChatMessage{
		{Role: models.RoleUser, Content: "first question"},
		{Role: models.RoleAssistant, Content: "first answer"},
		{Role: models.RoleUser, Content: "second question"},
		{Role: models.RoleAssistant, Content: "second answer"},
		{Role: models.RoleUser, Content: "third question"},
	})

	assert.Equal(t, "second question\nthird question", query)
}

func TestContextBudget(t *testing.T) {
	rag, _, _ := setupTestRagService(testRagConfig())

	messages := []models.ChatMessage{
		{Role: models.RoleUser, Content: "one two three"}, // 3 tokens + 4 overhead
	}

	budget := rag.contextBudget(messages)

	assert.Equal(t, 4096-64-7, budget)
}
