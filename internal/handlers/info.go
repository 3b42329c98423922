package handlers

import (
	"log"
	"net/http"

	"rag-server/internal/models"
)

// InfoHandler exposes the read-only runtime configuration and the model list
type InfoHandler struct {
	store  *models.ServerInfoStore
	logger *log.Logger
}

// NewInfoHandler creates a new info handler
func NewInfoHandler(store *models.ServerInfoStore, logger *log.Logger) *InfoHandler {
	return &InfoHandler{store: store, logger: logger}
}

// ServerInfo handles server info requests
// @Summary Server info
// @Description Returns the models, collections and merge policy this server was started with
// @Tags info
// @Produce json
// @Success 200 {object} models.ServerInfo
// @Router /v1/info [get]
func (h *InfoHandler) ServerInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Get())
}

// modelEntry is one item of the OpenAI models list
type modelEntry struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// Models handles model list requests
// @Summary List models
// @Description OpenAI-compatible list of the configured chat and embedding models
// @Tags info
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /v1/models [get]
func (h *InfoHandler) Models(w http.ResponseWriter, r *http.Request) {
	info := h.store.Get()
	list := []modelEntry{
		{ID: info.ChatModel.Name, Object: "model", OwnedBy: "organization"},
		{ID: info.EmbeddingModel.Name, Object: "model", OwnedBy: "organization"},
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"object": "list",
		"data":   list,
	})
}
