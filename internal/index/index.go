// Package index stores chunk embeddings and answers nearest-neighbor
// queries with brute-force cosine similarity. At study-corpus scale a linear
// scan beats maintaining an ANN structure.
package index

import (
	"context"
	"math"

	"studycards-backend/models"
)

// Writer persists chunk rows for a source.
type Writer interface {
	UpsertChunks(ctx context.Context, chunks []models.Chunk) error
	DeleteSource(ctx context.Context, sourceID string) error
}

// Searcher answers similarity queries. sourceID == "" searches everything.
type Searcher interface {
	Search(ctx context.Context, vector []float32, sourceID string, limit int) ([]models.RetrievalMatch, error)
}

// Store is a full read-write index.
type Store interface {
	Writer
	Searcher
	Count(ctx context.Context, sourceID string) (int64, error)
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0
// when either vector is zero-length or zero-magnitude. Mismatched dimensions
// also score 0 rather than erroring; they can only come from a model change
// and should rank last.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
