package models

import "strings"

// RetrievedChunk is a passage returned by a retrieval source.
// Chunks are per-request and ranked by Score descending after merging.
type RetrievedChunk struct {
	Text   string  `json:"text"`
	Score  float32 `json:"score"`            // Similarity score (0-1, higher is better)
	Source string  `json:"source,omitempty"` // Collection name or "keyword"
	Rank   int     `json:"rank"`             // Rank within the source result list
}

// NormalizedText returns the dedupe key for a chunk: lower-cased text with
// runs of whitespace collapsed to single spaces.
func (c *RetrievedChunk) NormalizedText() string {
	return strings.ToLower(strings.Join(strings.Fields(c.Text), " "))
}

// ChunkTextRequest represents a request to split raw text into bounded chunks
type ChunkTextRequest struct {
	Text     string `json:"text"`
	Capacity int    `json:"capacity,omitempty"` // Max words per chunk; server default when omitted
}

// Validate validates the chunking request
func (r *ChunkTextRequest) Validate() error {
	if r.Text == "" {
		return &ValidationError{Field: "text", Message: "text is required"}
	}
	if r.Capacity < 0 {
		return &ValidationError{Field: "capacity", Message: "capacity cannot be negative"}
	}
	return nil
}

// ChunkTextResponse carries the produced chunks back to the caller
type ChunkTextResponse struct {
	Chunks   []string `json:"chunks"`
	Count    int      `json:"count"`
	Capacity int      `json:"capacity"`
}
