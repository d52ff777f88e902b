package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"studycards-backend/internal/ingest"
	"studycards-backend/internal/logger"
)

const (
	TaskIngestFile = "ingest:file"
	TaskIngestURL  = "ingest:url"
)

type IngestFilePayload struct {
	FilePath  string `json:"file_path"`
	MediaType string `json:"media_type"`
	Title     string `json:"title"`
}

type IngestURLPayload struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Task creators
func NewIngestFileTask(filePath, mediaType, title string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestFilePayload{
		FilePath:  filePath,
		MediaType: mediaType,
		Title:     title,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestFile,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("ingest"),
	), nil
}

func NewIngestURLTask(url, title string) (*asynq.Task, error) {
	payload, err := json.Marshal(IngestURLPayload{URL: url, Title: title})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIngestURL,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("ingest"),
	), nil
}

// TaskProcessor executes queued ingestion jobs in the worker process.
type TaskProcessor struct {
	ingestor *ingest.Ingestor
}

func NewTaskProcessor(ingestor *ingest.Ingestor) *TaskProcessor {
	return &TaskProcessor{ingestor: ingestor}
}

// ProcessIngestFile ingests an uploaded file staged on disk. The staging
// file is removed once ingestion succeeds.
func (p *TaskProcessor) ProcessIngestFile(ctx context.Context, t *asynq.Task) error {
	var payload IngestFilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing queued file ingestion", "path", payload.FilePath, "media_type", payload.MediaType)

	data, err := os.ReadFile(payload.FilePath)
	if err != nil {
		// A missing staging file will not reappear on retry.
		return fmt.Errorf("read staged file: %v: %w", err, asynq.SkipRetry)
	}

	resp, err := p.ingestor.IngestBytes(ctx, payload.Title, payload.MediaType, data, "")
	if err != nil {
		return err
	}

	if err := os.Remove(payload.FilePath); err != nil {
		logger.Warn("Failed to remove staged file", "path", payload.FilePath, "error", err)
	}

	logger.Info("Queued file ingestion complete", "source_id", resp.SourceID, "chunks", resp.Chunks)
	return nil
}

func (p *TaskProcessor) ProcessIngestURL(ctx context.Context, t *asynq.Task) error {
	var payload IngestURLPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("Processing queued url ingestion", "url", payload.URL)

	resp, err := p.ingestor.IngestURL(ctx, payload.URL, payload.Title)
	if err != nil {
		return err
	}

	logger.Info("Queued url ingestion complete", "source_id", resp.SourceID, "chunks", resp.Chunks)
	return nil
}
