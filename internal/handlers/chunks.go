package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"rag-server/internal/models"
	"rag-server/internal/services"
)

// ChunkHandler serves the text chunking endpoint
type ChunkHandler struct {
	defaultCapacity int
	logger          *log.Logger
}

// NewChunkHandler creates a chunk handler with the configured default capacity
func NewChunkHandler(defaultCapacity int, logger *log.Logger) *ChunkHandler {
	return &ChunkHandler{defaultCapacity: defaultCapacity, logger: logger}
}

// ChunkText handles text chunking requests
// @Summary Chunk text
// @Description Splits raw text into chunks of at most the requested word capacity
// @Tags chunks
// @Accept json
// @Produce json
// @Param request body models.ChunkTextRequest true "Chunking request"
// @Success 200 {object} models.ChunkTextResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /v1/chunks [post]
func (h *ChunkHandler) ChunkText(w http.ResponseWriter, r *http.Request) {
	var req models.ChunkTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Printf("failed to decode chunking request: %v", err)
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	capacity := req.Capacity
	if capacity == 0 {
		capacity = h.defaultCapacity
	}

	chunks := services.ChunkText(req.Text, capacity)
	writeJSON(w, http.StatusOK, models.ChunkTextResponse{
		Chunks:   chunks,
		Count:    len(chunks),
		Capacity: capacity,
	})
}
