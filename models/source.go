package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Source is one unit of ingested material (pasted text, a fetched web page,
// or an uploaded document). The record is created before any chunks; a source
// whose ChunkCount is zero while Status is not StatusIndexed is
// ingestion-incomplete, not an empty document.
type Source struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title      string             `bson:"title" json:"title"`
	MediaType  string             `bson:"media_type" json:"media_type"`
	Bytes      int64              `bson:"bytes" json:"bytes"`
	TextBytes  int                `bson:"text_bytes" json:"text_bytes"`
	URL        string             `bson:"url,omitempty" json:"url,omitempty"`
	Status     string             `bson:"status" json:"status"`
	ChunkCount int                `bson:"chunk_count" json:"chunk_count"`
	Error      string             `bson:"error,omitempty" json:"error,omitempty"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// Ingestion state machine. A source moves received -> normalized -> chunked
// -> embedded -> indexed, or to failed at any stage.
const (
	StatusReceived   = "received"
	StatusNormalized = "normalized"
	StatusChunked    = "chunked"
	StatusEmbedded   = "embedded"
	StatusIndexed    = "indexed"
	StatusFailed     = "failed"
)

// Media types the ingestor branches on.
const (
	MediaTypeText     = "text/plain"
	MediaTypeMarkdown = "text/markdown"
	MediaTypeHTML     = "text/html"
	MediaTypePDF      = "application/pdf"
	MediaTypeDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MediaTypeOctet    = "application/octet-stream"
)

// IngestResponse is returned after a successful ingestion.
type IngestResponse struct {
	SourceID  string `json:"source_id"`
	Title     string `json:"title"`
	MediaType string `json:"media_type"`
	Bytes     int64  `json:"bytes"`
	TextBytes int    `json:"text_bytes"`
	Chunks    int    `json:"chunks"`
	TaskID    string `json:"task_id,omitempty"` // set for async uploads
}
