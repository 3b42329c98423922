package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"rag-server/internal/models"
)

// EngineClient is the inference engine consumed by the orchestrator: text
// embedding plus complete and streamed chat generation.
type EngineClient interface {
	Embeddings(ctx context.Context, req *models.EmbeddingRequest) (*models.EmbeddingResponse, error)
	ChatCompletion(ctx context.Context, req *models.ChatCompletionRequest) (*models.ChatCompletionResponse, error)
	ChatCompletionStream(ctx context.Context, req *models.ChatCompletionRequest) (*CompletionStream, error)
	HealthCheck(ctx context.Context) error
}

// OpenAIEngineClient talks to an OpenAI-compatible inference engine. The
// engine runs one generation at a time, so all calls into it are serialized
// through a capacity-1 gate; retrieval and merge work for other requests is
// not blocked by the gate.
type OpenAIEngineClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
	gate       chan struct{}
}

// NewOpenAIEngineClient creates an engine client for the given base URL
func NewOpenAIEngineClient(baseURL string, logger *log.Logger) *OpenAIEngineClient {
	return &OpenAIEngineClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 300 * time.Second, // generation can be slow
		},
		logger: logger,
		gate:   make(chan struct{}, 1),
	}
}

// acquire takes the engine gate, or gives up when the request is cancelled
func (c *OpenAIEngineClient) acquire(ctx context.Context) error {
	select {
	case c.gate <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *OpenAIEngineClient) release() {
	<-c.gate
}

// Embeddings computes embeddings for the request input
func (c *OpenAIEngineClient) Embeddings(ctx context.Context, req *models.EmbeddingRequest) (*models.EmbeddingResponse, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	var resp models.EmbeddingResponse
	if err := c.postJSON(ctx, "/embeddings", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ChatCompletion requests a complete (non-streamed) generation
func (c *OpenAIEngineClient) ChatCompletion(ctx context.Context, req *models.ChatCompletionRequest) (*models.ChatCompletionResponse, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}
	defer c.release()

	engineReq := *req
	engineReq.Stream = false
	engineReq.StreamOptions = nil

	var resp models.ChatCompletionResponse
	if err := c.postJSON(ctx, "/chat/completions", &engineReq, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("engine returned no choices")
	}
	return &resp, nil
}

// ChatCompletionStream requests a streamed generation. The returned stream
// holds the engine gate until Close is called.
func (c *OpenAIEngineClient) ChatCompletionStream(ctx context.Context, req *models.ChatCompletionRequest) (*CompletionStream, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, err
	}

	engineReq := *req
	engineReq.Stream = true

	jsonBody, err := json.Marshal(&engineReq)
	if err != nil {
		c.release()
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		c.release()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.release()
		return nil, fmt.Errorf("failed to send request to engine: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.release()
		return nil, fmt.Errorf("engine returned status %d: %s", resp.StatusCode, string(body))
	}

	return NewCompletionStream(resp.Body, c.release), nil
}

// HealthCheck verifies the engine is running and has models loaded
func (c *OpenAIEngineClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("engine not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine returned status %d", resp.StatusCode)
	}

	return nil
}

// postJSON sends a JSON request and decodes a JSON response
func (c *OpenAIEngineClient) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to engine: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("engine returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// CompletionStream reads server-sent events from the engine one data payload
// at a time. Recv returns io.EOF at the terminating [DONE] marker or when the
// engine closes the stream.
type CompletionStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	release func()
	once    sync.Once
}

// NewCompletionStream wraps an SSE body. release, if non-nil, runs exactly
// once when the stream is closed.
func NewCompletionStream(body io.ReadCloser, release func()) *CompletionStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &CompletionStream{
		body:    body,
		scanner: scanner,
		release: release,
	}
}

// Recv returns the next event's data payload (the raw JSON of one chunk)
func (s *CompletionStream) Recv() (string, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return "", io.EOF
		}
		return data, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// Close releases the engine gate and the underlying connection
func (s *CompletionStream) Close() error {
	var err error
	s.once.Do(func() {
		err = s.body.Close()
		if s.release != nil {
			s.release()
		}
	})
	return err
}
