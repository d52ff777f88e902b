package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Chunk is a denormalized chunk row with its embedding vector.
// Keeping chunks in their own collection keeps similarity scans cheap and
// lets a source's rows be dropped in one query.
type Chunk struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	SourceID primitive.ObjectID `bson:"source_id"`
	ChunkID  string             `bson:"chunk_id"`
	Order    int                `bson:"order"`
	Text     string             `bson:"text"`
	Vector   []float32          `bson:"vector,omitempty"`
}

// RetrievalMatch is one result of a similarity query. Ephemeral, never
// persisted.
type RetrievalMatch struct {
	ChunkID  string  `json:"chunk_id"`
	SourceID string  `json:"source_id"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
}
