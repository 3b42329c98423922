package models

import "sync"

// ModelInfo describes one configured model as exposed on the info endpoint
type ModelInfo struct {
	Name           string `json:"name"`
	Type           string `json:"type"` // "chat" or "embedding"
	PromptTemplate string `json:"prompt_template"`
	CtxSize        int    `json:"ctx_size"`
	BatchSize      int    `json:"batch_size"`
}

// CollectionInfo describes one configured retrieval collection
type CollectionInfo struct {
	URL            string  `json:"url"`
	CollectionName string  `json:"collection_name"`
	Limit          int     `json:"limit"`
	ScoreThreshold float32 `json:"score_threshold"`
}

// APIServer describes the running server instance
type APIServer struct {
	Type    string `json:"type"`
	Version string `json:"version"`
	Port    string `json:"port"`
}

// ServerInfo aggregates the read-only runtime configuration exposed at
// /v1/info. Built once at startup, never mutated afterwards.
type ServerInfo struct {
	Server         APIServer        `json:"api_server"`
	ChatModel      ModelInfo        `json:"chat_model"`
	EmbeddingModel ModelInfo        `json:"embedding_model"`
	RagPolicy      string           `json:"rag_policy"`
	RagPrompt      string           `json:"rag_prompt,omitempty"`
	ContextWindow  int              `json:"context_window"`
	Collections    []CollectionInfo `json:"qdrant_config"`
	KwSearchURL    string           `json:"kw_search_url,omitempty"`
}

// ServerInfoStore guards ServerInfo behind a read lock. There is no write
// path after construction; the lock is retained for extensibility only.
type ServerInfoStore struct {
	mu   sync.RWMutex
	info ServerInfo
}

func NewServerInfoStore(info ServerInfo) *ServerInfoStore {
	return &ServerInfoStore{info: info}
}

// Get returns a copy of the server info
func (s *ServerInfoStore) Get() ServerInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}
