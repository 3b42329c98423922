package repositories

import (
	"context"

	"rag-server/internal/db"
	"rag-server/internal/models"
)

// QdrantVectorRepository implements VectorRepository using the Qdrant REST API
type QdrantVectorRepository struct {
	client *db.QdrantClient
}

// NewQdrantVectorRepository creates a new Qdrant-backed vector repository
func NewQdrantVectorRepository(client *db.QdrantClient) VectorRepository {
	return &QdrantVectorRepository{client: client}
}

// SearchChunks runs a similarity query against one collection
func (r *QdrantVectorRepository) SearchChunks(ctx context.Context, collection string, embedding []float32, limit int, scoreThreshold float32) ([]models.RetrievedChunk, error) {
	points, err := r.client.SearchPoints(ctx, collection, embedding, limit, scoreThreshold)
	if err != nil {
		return nil, NewRepositoryError("search_points", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(points))
	for i, point := range points {
		text := payloadText(point.Payload)
		if text == "" {
			continue
		}
		chunks = append(chunks, models.RetrievedChunk{
			Text:   text,
			Score:  point.Score,
			Source: collection,
			Rank:   i,
		})
	}

	return chunks, nil
}

// Ping checks if Qdrant is alive
func (r *QdrantVectorRepository) Ping(ctx context.Context) error {
	if err := r.client.Healthz(ctx); err != nil {
		return NewRepositoryError("ping", err)
	}
	return nil
}

// payloadText pulls the chunk text out of a point payload. Ingestion tools
// disagree on the field name, so a few common ones are accepted.
func payloadText(payload map[string]interface{}) string {
	for _, key := range []string{"text", "source", "content"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
