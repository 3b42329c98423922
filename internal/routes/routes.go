package routes

import (
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"rag-server/internal/handlers"
)

// Handlers bundles every handler the router mounts
type Handlers struct {
	Chat      *handlers.ChatHandler
	Embedding *handlers.EmbeddingHandler
	Chunk     *handlers.ChunkHandler
	Info      *handlers.InfoHandler
	Static    *handlers.StaticHandler
}

// RegisterRoutes mounts all API routes on the router. The static catch-all
// must go last so it never shadows the API.
func RegisterRoutes(router *mux.Router, h *Handlers) {
	router.HandleFunc("/health", handlers.HealthCheckHandler).Methods("GET")
	router.HandleFunc("/echo", handlers.EchoHandler).Methods("GET")

	api := router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/chat/completions", h.Chat.ChatCompletions).Methods("POST")
	api.HandleFunc("/embeddings", h.Embedding.Embeddings).Methods("POST")
	api.HandleFunc("/chunks", h.Chunk.ChunkText).Methods("POST")
	api.HandleFunc("/models", h.Info.Models).Methods("GET")
	api.HandleFunc("/info", h.Info.ServerInfo).Methods("GET")

	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	if h.Static != nil {
		router.PathPrefix("/").Handler(h.Static).Methods("GET", "HEAD")
	}
}
