package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"studycards-backend/internal/config"
	"studycards-backend/internal/ingest"
	"studycards-backend/internal/queue"
	"studycards-backend/models"
	"studycards-backend/utils"
)

const ingestTimeout = 120 * time.Second

// IngestRequest accepts either pasted text or a URL to fetch.
type IngestRequest struct {
	Title     string `json:"title"`
	Text      string `json:"text,omitempty"`
	URL       string `json:"url,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// HandleIngest ingests pasted text or a URL synchronously.
func HandleIngest(ingestor *ingest.Ingestor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IngestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			utils.RespondWithBadRequest(c, "Invalid request body", err.Error())
			return
		}
		if req.Text == "" && req.URL == "" {
			utils.RespondWithBadRequest(c, "Either text or url is required", nil)
			return
		}
		if req.Text != "" && req.URL != "" {
			utils.RespondWithBadRequest(c, "Provide text or url, not both", nil)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), ingestTimeout)
		defer cancel()

		var (
			resp *models.IngestResponse
			err  error
		)
		if req.URL != "" {
			resp, err = ingestor.IngestURL(ctx, req.URL, req.Title)
		} else {
			mediaType := req.MediaType
			if mediaType == "" {
				mediaType = models.MediaTypeText
			}
			resp, err = ingestor.IngestBytes(ctx, req.Title, mediaType, []byte(req.Text), "")
		}
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}

		c.JSON(http.StatusCreated, resp)
	}
}

// mediaTypeForUpload resolves the media type from the upload's declared
// content type, falling back to the file extension.
func mediaTypeForUpload(contentType, filename string) string {
	switch {
	case strings.Contains(contentType, "pdf"):
		return models.MediaTypePDF
	case strings.Contains(contentType, "wordprocessingml"):
		return models.MediaTypeDOCX
	case strings.Contains(contentType, "html"):
		return models.MediaTypeHTML
	case strings.Contains(contentType, "markdown"):
		return models.MediaTypeMarkdown
	case strings.Contains(contentType, "text/"):
		return models.MediaTypeText
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return models.MediaTypePDF
	case ".docx":
		return models.MediaTypeDOCX
	case ".html", ".htm":
		return models.MediaTypeHTML
	case ".md", ".markdown":
		return models.MediaTypeMarkdown
	case ".txt":
		return models.MediaTypeText
	}
	return ""
}

func typeAllowed(allowed []string, mediaType string) bool {
	for _, t := range allowed {
		if strings.TrimSpace(t) == mediaType {
			return true
		}
	}
	return false
}

// HandleUpload ingests an uploaded document. Files under the sync limit are
// processed inline; larger ones are staged to disk and handed to the worker.
func HandleUpload(cfg *config.Config, ingestor *ingest.Ingestor, queueClient *asynq.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := c.Request.ParseMultipartForm(cfg.MaxFileSize); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", nil)
			return
		}

		file, header, err := c.Request.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		defer file.Close()

		if header.Size > cfg.MaxFileSize {
			utils.RespondWithError(c, http.StatusBadRequest, "file_too_large",
				"File size exceeds maximum limit", nil)
			return
		}

		mediaType := mediaTypeForUpload(header.Header.Get("Content-Type"), header.Filename)
		if mediaType == "" || !typeAllowed(cfg.AllowedTypes, mediaType) {
			utils.RespondWithError(c, http.StatusBadRequest, "invalid_file_type",
				"Unsupported file type", gin.H{"filename": header.Filename})
			return
		}

		title := c.PostForm("title")
		if title == "" {
			title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
		}

		if header.Size <= cfg.SyncProcessingLimit {
			data, err := io.ReadAll(io.LimitReader(file, cfg.MaxFileSize))
			if err != nil {
				utils.RespondWithInternalError(c, "Failed to read upload", nil)
				return
			}

			ctx, cancel := context.WithTimeout(c.Request.Context(), ingestTimeout)
			defer cancel()

			resp, err := ingestor.IngestBytes(ctx, title, mediaType, data, "")
			if err != nil {
				utils.RespondWithAppError(c, err)
				return
			}
			c.JSON(http.StatusCreated, resp)
			return
		}

		// Too large for inline processing. Stage to disk and enqueue.
		uploadDir := filepath.Join(cfg.FileStorageDir, "uploads")
		if err := os.MkdirAll(uploadDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Failed to create upload directory", nil)
			return
		}

		filePath := filepath.Join(uploadDir, fmt.Sprintf("%s%s", uuid.NewString(), filepath.Ext(header.Filename)))
		dst, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			utils.RespondWithInternalError(c, "Failed to open destination", nil)
			return
		}
		defer dst.Close()
		if _, err := io.Copy(dst, io.LimitReader(file, cfg.MaxFileSize)); err != nil {
			utils.RespondWithInternalError(c, "Failed to save file", nil)
			return
		}

		task, err := queue.NewIngestFileTask(filePath, mediaType, title)
		if err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to create processing task", nil)
			return
		}
		info, err := queueClient.Enqueue(task)
		if err != nil {
			os.Remove(filePath)
			utils.RespondWithInternalError(c, "Failed to enqueue processing task", nil)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"message":    "Upload accepted for processing",
			"task_id":    info.ID,
			"title":      title,
			"media_type": mediaType,
			"size":       header.Size,
		})
	}
}

// HandleListSources lists recent sources, newest first.
func HandleListSources(sources ingest.SourceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := sources.List(c.Request.Context(), 100)
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"sources": list, "count": len(list)})
	}
}

// HandleGetSource returns one source with its ingestion status.
func HandleGetSource(sources ingest.SourceStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		src, err := sources.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			utils.RespondWithAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, src)
	}
}
