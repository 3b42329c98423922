package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"rag-server/internal/models"
	"rag-server/internal/services"
)

// EmbeddingHandler serves the OpenAI-compatible embeddings endpoint
type EmbeddingHandler struct {
	embedder *services.EmbeddingService
	logger   *log.Logger
}

// NewEmbeddingHandler creates a new embedding handler
func NewEmbeddingHandler(embedder *services.EmbeddingService, logger *log.Logger) *EmbeddingHandler {
	return &EmbeddingHandler{embedder: embedder, logger: logger}
}

// Embeddings handles embedding requests
// @Summary Create embeddings
// @Description OpenAI-compatible embeddings for one or more input texts
// @Tags embeddings
// @Accept json
// @Produce json
// @Param request body models.EmbeddingRequest true "Embeddings request"
// @Success 200 {object} models.EmbeddingResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse
// @Router /v1/embeddings [post]
func (h *EmbeddingHandler) Embeddings(w http.ResponseWriter, r *http.Request) {
	var req models.EmbeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Printf("failed to decode embeddings request: %v", err)
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: "+err.Error())
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	resp, err := h.embedder.Embed(r.Context(), &req)
	if err != nil {
		h.logger.Printf("embeddings request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
