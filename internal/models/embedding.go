package models

import (
	"encoding/json"
	"fmt"
)

// EmbeddingInput accepts either a single string or an array of strings,
// matching the OpenAI embeddings request shape.
type EmbeddingInput struct {
	Texts []string
}

// UnmarshalJSON decodes a string or a string array into Texts
func (in *EmbeddingInput) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		in.Texts = []string{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		in.Texts = many
		return nil
	}
	return fmt.Errorf("input must be a string or an array of strings")
}

// MarshalJSON encodes Texts back to the wire shape
func (in EmbeddingInput) MarshalJSON() ([]byte, error) {
	if len(in.Texts) == 1 {
		return json.Marshal(in.Texts[0])
	}
	return json.Marshal(in.Texts)
}

// EmbeddingRequest represents an OpenAI-compatible embeddings request
type EmbeddingRequest struct {
	Model          string         `json:"model,omitempty"`
	Input          EmbeddingInput `json:"input"`
	EncodingFormat string         `json:"encoding_format,omitempty"`
	User           string         `json:"user,omitempty"`
}

// Validate checks the minimal shape of an embeddings request
func (r *EmbeddingRequest) Validate() error {
	if len(r.Input.Texts) == 0 {
		return &ValidationError{Field: "input", Message: "at least one input text is required"}
	}
	return nil
}

// EmbeddingObject is a single embedding vector in a response
type EmbeddingObject struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

// EmbeddingResponse represents an OpenAI-compatible embeddings response
type EmbeddingResponse struct {
	Object string            `json:"object"`
	Data   []EmbeddingObject `json:"data"`
	Model  string            `json:"model"`
	Usage  *Usage            `json:"usage,omitempty"`
}
