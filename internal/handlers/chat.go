package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"rag-server/internal/models"
	"rag-server/internal/services"
)

// Size of the relay buffer between the engine stream reader and the client
// writer; a full buffer blocks the reader so a slow client throttles the
// engine instead of growing memory.
const relayBufferSize = 32

// ChatHandler serves the OpenAI-compatible chat completions endpoint
type ChatHandler struct {
	rag    *services.RagService
	logger *log.Logger
}

// NewChatHandler creates a new chat handler
func NewChatHandler(rag *services.RagService, logger *log.Logger) *ChatHandler {
	return &ChatHandler{rag: rag, logger: logger}
}

// ChatCompletions handles chat completion requests
// @Summary Chat completions
// @Description OpenAI-compatible chat completions with retrieval-augmented context
// @Tags chat
// @Accept json
// @Produce json
// @Param request body models.ChatCompletionRequest true "Chat completion request"
// @Success 200 {object} models.ChatCompletionResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /v1/chat/completions [post]
func (h *ChatHandler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req models.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Printf("failed to decode chat request: %v", err)
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	if req.Stream {
		h.streamCompletion(w, r, &req)
		return
	}

	resp, err := h.rag.ChatCompletion(r.Context(), &req)
	if err != nil {
		h.logger.Printf("chat completion failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// streamCompletion relays the engine's token stream to the client as
// server-sent events, one event per arrival, cancelling the engine call when
// the client disconnects.
func (h *ChatHandler) streamCompletion(w http.ResponseWriter, r *http.Request, req *models.ChatCompletionRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "server_error", "streaming not supported by connection")
		return
	}

	ctx := r.Context()

	stream, err := h.rag.ChatCompletionStream(ctx, req)
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			h.logger.Printf("stream request cancelled before dispatch")
			return
		}
		h.logger.Printf("chat completion stream failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan string, relayBufferSize)
	errc := make(chan error, 1)

	go func() {
		defer close(events)
		for {
			data, err := stream.Recv()
			if err != nil {
				if err != io.EOF {
					errc <- err
				}
				return
			}
			select {
			case events <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			// Client is gone; closing the stream cancels in-flight generation.
			h.logger.Printf("client disconnected, cancelling stream")
			return
		case data, open := <-events:
			if !open {
				select {
				case err := <-errc:
					h.logger.Printf("engine stream ended with error: %v", err)
				default:
					fmt.Fprint(w, "data: [DONE]\n\n")
					flusher.Flush()
				}
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}
