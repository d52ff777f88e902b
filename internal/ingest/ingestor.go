package ingest

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"studycards-backend/internal/apperr"
	"studycards-backend/internal/index"
	"studycards-backend/internal/logger"
	"studycards-backend/models"
)

// Embedder turns texts into embedding vectors, one per input.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// The provider caps batch embedding requests at 100 inputs.
const embedBatchSize = 100

// Ingestor runs the ingestion pipeline: extract, normalize, chunk, embed,
// index. Each source moves through the status machine on its record;
// a failure at any stage leaves the source in StatusFailed with the error
// recorded and no chunks indexed.
type Ingestor struct {
	Sources  SourceStore
	Index    index.Store
	Embedder Embedder
	Fetcher  Fetcher

	MaxChunkSize   int
	ChunkOverlap   int
	MaxChunks      int
	MinSourceChars int
}

// IngestBytes ingests raw content of the given media type. The source record
// exists before any chunk does, so observers never see orphaned chunks.
func (ing *Ingestor) IngestBytes(ctx context.Context, title, mediaType string, data []byte, sourceURL string) (*models.IngestResponse, error) {
	tracer := otel.Tracer("ingestor")
	ctx, span := tracer.Start(ctx, "ingest.bytes")
	defer span.End()
	span.SetAttributes(
		attribute.String("ingest.media_type", mediaType),
		attribute.Int("ingest.bytes", len(data)),
	)

	text, err := ExtractText(data, mediaType)
	if err != nil {
		return nil, err
	}
	normalized := NormalizeWhitespace(text)

	// Reject thin content before any provider call is made.
	if utf8.RuneCountInString(normalized) < ing.MinSourceChars {
		return nil, fmt.Errorf("%w: source text is shorter than %d characters", apperr.ErrValidation, ing.MinSourceChars)
	}

	src := &models.Source{
		Title:     strings.TrimSpace(title),
		MediaType: mediaType,
		Bytes:     int64(len(data)),
		TextBytes: len(normalized),
		URL:       sourceURL,
		Status:    models.StatusNormalized,
	}
	if src.Title == "" {
		src.Title = "Untitled source"
	}
	if err := ing.Sources.Insert(ctx, src); err != nil {
		return nil, err
	}

	return ing.pipeline(ctx, src, normalized)
}

// IngestURL fetches a page and ingests its visible text.
func (ing *Ingestor) IngestURL(ctx context.Context, rawURL, title string) (*models.IngestResponse, error) {
	if ing.Fetcher == nil {
		return nil, fmt.Errorf("%w: url ingestion is not configured", apperr.ErrValidation)
	}
	page, err := ing.Fetcher.Fetch(rawURL)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = page.Title
	}
	return ing.IngestBytes(ctx, title, models.MediaTypeHTML, page.HTML, page.URL)
}

// pipeline chunks, embeds, and indexes already-normalized text for an
// existing source record.
func (ing *Ingestor) pipeline(ctx context.Context, src *models.Source, normalized string) (*models.IngestResponse, error) {
	chunkTexts := ChunkTextN(normalized, ing.MaxChunkSize, ing.ChunkOverlap, ing.MaxChunks)
	if len(chunkTexts) == 0 {
		return nil, ing.fail(ctx, src, fmt.Errorf("%w: no chunks produced", apperr.ErrValidation))
	}

	src.Status = models.StatusChunked
	if err := ing.Sources.Update(ctx, src); err != nil {
		return nil, err
	}

	chunks := make([]models.Chunk, len(chunkTexts))
	for i, text := range chunkTexts {
		chunks[i] = models.Chunk{
			SourceID: src.ID,
			ChunkID:  fmt.Sprintf("%s:%d", src.ID.Hex(), i),
			Order:    i,
			Text:     text,
		}
	}

	// All-or-nothing: any embedding failure aborts the whole source.
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}
		vectors, err := ing.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, ing.fail(ctx, src, err)
		}
		for i, v := range vectors {
			chunks[start+i].Vector = v
		}
	}

	src.Status = models.StatusEmbedded
	if err := ing.Sources.Update(ctx, src); err != nil {
		return nil, err
	}

	if err := ing.Index.UpsertChunks(ctx, chunks); err != nil {
		return nil, ing.fail(ctx, src, err)
	}

	src.Status = models.StatusIndexed
	src.ChunkCount = len(chunks)
	src.Error = ""
	if err := ing.Sources.Update(ctx, src); err != nil {
		return nil, err
	}

	logger.Info("Source indexed",
		"source_id", src.ID.Hex(),
		"media_type", src.MediaType,
		"chunks", len(chunks))

	return &models.IngestResponse{
		SourceID:  src.ID.Hex(),
		Title:     src.Title,
		MediaType: src.MediaType,
		Bytes:     src.Bytes,
		TextBytes: src.TextBytes,
		Chunks:    len(chunks),
	}, nil
}

// Refresh re-fetches a URL source and rebuilds its chunks under the same
// source id. Old rows are dropped before the new ones are written.
func (ing *Ingestor) Refresh(ctx context.Context, sourceID string) error {
	src, err := ing.Sources.Get(ctx, sourceID)
	if err != nil {
		return err
	}
	if src.URL == "" {
		return fmt.Errorf("%w: source %s has no url to refresh", apperr.ErrValidation, sourceID)
	}
	if ing.Fetcher == nil {
		return fmt.Errorf("%w: url ingestion is not configured", apperr.ErrValidation)
	}

	page, err := ing.Fetcher.Fetch(src.URL)
	if err != nil {
		return err
	}
	text, err := ExtractText(page.HTML, models.MediaTypeHTML)
	if err != nil {
		return err
	}
	normalized := NormalizeWhitespace(text)
	if utf8.RuneCountInString(normalized) < ing.MinSourceChars {
		return fmt.Errorf("%w: refreshed content is shorter than %d characters", apperr.ErrValidation, ing.MinSourceChars)
	}

	if err := ing.Index.DeleteSource(ctx, sourceID); err != nil {
		return err
	}

	src.Bytes = int64(len(page.HTML))
	src.TextBytes = len(normalized)
	src.Status = models.StatusNormalized
	if err := ing.Sources.Update(ctx, src); err != nil {
		return err
	}

	_, err = ing.pipeline(ctx, src, normalized)
	return err
}

// fail marks the source failed and passes the original error through.
func (ing *Ingestor) fail(ctx context.Context, src *models.Source, cause error) error {
	src.Status = models.StatusFailed
	src.Error = cause.Error()
	if err := ing.Sources.Update(ctx, src); err != nil {
		logger.Error("Failed to record source failure", "source_id", src.ID.Hex(), "error", err)
	}
	return cause
}
