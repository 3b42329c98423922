package repositories

import (
	"context"
	"fmt"

	"rag-server/internal/models"
)

// VectorRepository is the similarity-search collaborator consumed by the
// retrieval fan-out. One implementation per vector store.
type VectorRepository interface {
	// SearchChunks returns up to limit chunks from the collection whose
	// similarity to embedding is at least scoreThreshold, ranked by score
	// descending.
	SearchChunks(ctx context.Context, collection string, embedding []float32, limit int, scoreThreshold float32) ([]models.RetrievedChunk, error)

	// Ping checks the store is reachable
	Ping(ctx context.Context) error
}

// KeywordRepository is the keyword-search collaborator, queried alongside the
// vector collections during the fan-out.
type KeywordRepository interface {
	// Search returns up to limit chunks matching the query text, ranked by
	// relevance descending.
	Search(ctx context.Context, query string, limit int) ([]models.RetrievedChunk, error)
}

// NewRepositoryError wraps a store failure with its operation name
func NewRepositoryError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
