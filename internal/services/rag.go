package services

import (
	"context"
	"log"
	"strings"

	"rag-server/internal/config"
	"rag-server/internal/models"
)

// RequestState is one step of the per-request orchestration state machine
type RequestState string

const (
	StateReceived       RequestState = "received"
	StateQueryExtracted RequestState = "query_extracted"
	StateRetrieved      RequestState = "retrieved"
	StateMerged         RequestState = "merged"
	StateInjected       RequestState = "injected"
	StateDispatched     RequestState = "dispatched"
	StateStreaming      RequestState = "streaming"
	StateCompleted      RequestState = "completed"
	StateFailed         RequestState = "failed"
)

// requestTrace tracks the state of one in-flight request. Transitions are
// centralized here so the pipeline's progress shows up in the logs and the
// failure state always records where the pipeline stopped.
type requestTrace struct {
	state  RequestState
	logger *log.Logger
}

func newRequestTrace(logger *log.Logger) *requestTrace {
	return &requestTrace{state: StateReceived, logger: logger}
}

func (t *requestTrace) transition(to RequestState) {
	t.logger.Printf("request state: %s -> %s", t.state, to)
	t.state = to
}

func (t *requestTrace) fail(err error) {
	t.logger.Printf("request state: %s -> %s: %v", t.state, StateFailed, err)
	t.state = StateFailed
}

// Tokens reserved for the generation prompt scaffolding when computing the
// context budget
const budgetReserve = 64

// RagService is the top-level per-request orchestrator: it extracts the
// retrieval query from the conversation, runs the fan-out, injects the merged
// context and dispatches the rewritten conversation to the inference engine.
type RagService struct {
	engine        EngineClient
	embedder      *EmbeddingService
	retrieval     *RetrievalService
	injector      *Injector
	chatModel     config.ModelSpec
	contextWindow int
	includeUsage  bool
	logger        *log.Logger
}

// NewRagService wires the orchestrator
func NewRagService(
	engine EngineClient,
	embedder *EmbeddingService,
	retrieval *RetrievalService,
	injector *Injector,
	cfg *config.Config,
	logger *log.Logger,
) *RagService {
	return &RagService{
		engine:        engine,
		embedder:      embedder,
		retrieval:     retrieval,
		injector:      injector,
		chatModel:     cfg.ChatModel,
		contextWindow: cfg.ContextWindow,
		includeUsage:  cfg.IncludeUsage,
		logger:        logger,
	}
}

// ChatCompletion runs the full pipeline and returns a complete response
func (s *RagService) ChatCompletion(ctx context.Context, req *models.ChatCompletionRequest) (*models.ChatCompletionResponse, error) {
	trace := newRequestTrace(s.logger)

	messages, err := s.prepare(ctx, req, trace)
	if err != nil {
		trace.fail(err)
		return nil, err
	}

	engineReq := *req
	engineReq.Messages = messages
	if engineReq.Model == "" {
		engineReq.Model = s.chatModel.Name
	}

	trace.transition(StateDispatched)
	resp, err := s.engine.ChatCompletion(ctx, &engineReq)
	if err != nil {
		err = models.NewOperationError("chat completion", err)
		trace.fail(err)
		return nil, err
	}

	trace.transition(StateCompleted)
	return resp, nil
}

// ChatCompletionStream runs the full pipeline and returns the engine's token
// stream. The caller owns the stream and must close it.
func (s *RagService) ChatCompletionStream(ctx context.Context, req *models.ChatCompletionRequest) (*CompletionStream, error) {
	trace := newRequestTrace(s.logger)

	messages, err := s.prepare(ctx, req, trace)
	if err != nil {
		trace.fail(err)
		return nil, err
	}

	engineReq := *req
	engineReq.Messages = messages
	engineReq.Stream = true
	if engineReq.Model == "" {
		engineReq.Model = s.chatModel.Name
	}
	if s.includeUsage && engineReq.StreamOptions == nil {
		engineReq.StreamOptions = &models.StreamOptions{IncludeUsage: true}
	}

	trace.transition(StateDispatched)
	stream, err := s.engine.ChatCompletionStream(ctx, &engineReq)
	if err != nil {
		err = models.NewOperationError("chat completion stream", err)
		trace.fail(err)
		return nil, err
	}

	trace.transition(StateStreaming)
	return stream, nil
}

// prepare walks the pipeline up to the injected message sequence. A context
// window of zero, a conversation without user turns, or an empty merge all
// short-circuit to the original messages.
func (s *RagService) prepare(ctx context.Context, req *models.ChatCompletionRequest, trace *requestTrace) ([]models.ChatMessage, error) {
	if s.contextWindow == 0 {
		s.logger.Printf("context window is 0, retrieval disabled")
		return req.Messages, nil
	}

	queryText := s.extractQuery(req.Messages)
	if queryText == "" {
		s.logger.Printf("no user messages in conversation, skipping retrieval")
		return req.Messages, nil
	}
	trace.transition(StateQueryExtracted)

	embedding, err := s.embedder.EmbedQuery(ctx, queryText)
	if err != nil {
		return nil, models.NewOperationError("embed query", err)
	}

	budget := s.contextBudget(req.Messages)
	chunks, err := s.retrieval.Retrieve(ctx, RetrievalQuery{Text: queryText, Embedding: embedding}, budget)
	if err != nil {
		return nil, models.NewOperationError("retrieve context", err)
	}
	trace.transition(StateRetrieved)
	trace.transition(StateMerged)

	if len(chunks) == 0 {
		s.logger.Printf("no qualifying chunks retrieved, forwarding original messages")
		return req.Messages, nil
	}

	messages := s.injector.Inject(req.Messages, chunks)
	trace.transition(StateInjected)
	return messages, nil
}

// extractQuery joins the last N user messages (N = context window) in
// chronological order.
func (s *RagService) extractQuery(messages []models.ChatMessage) string {
	var turns []string
	for i := len(messages) - 1; i >= 0 && len(turns) < s.contextWindow; i-- {
		if messages[i].Role == models.RoleUser {
			turns = append(turns, messages[i].Content)
		}
	}

	// reverse back to conversation order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return strings.Join(turns, "\n")
}

// contextBudget is the token room left for retrieved context: the chat
// model's context size minus an estimate of the existing conversation.
func (s *RagService) contextBudget(messages []models.ChatMessage) int {
	used := budgetReserve
	for _, m := range messages {
		used += EstimateTokens(m.Content) + 4 // small per-message overhead
	}
	return s.chatModel.CtxSize - used
}
