package main

import (
	"context"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"studycards-backend/internal/ai"
	"studycards-backend/internal/config"
	"studycards-backend/internal/index"
	"studycards-backend/internal/ingest"
	"studycards-backend/internal/logger"
	"studycards-backend/internal/queue"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Connect to MongoDB
	mongoClient, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		mongoClient.Disconnect(ctx)
	}()
	db := mongoClient.Database(cfg.DBName)

	// Initialize Gemini client
	geminiClient, err := ai.NewGeminiClient(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	ingestor := &ingest.Ingestor{
		Sources:        ingest.NewMongoSourceStore(db),
		Index:          index.NewMongoStore(db),
		Embedder:       geminiClient,
		Fetcher:        ingest.NewPageFetcher(time.Duration(cfg.FetchTimeout) * time.Second),
		MaxChunkSize:   cfg.MaxChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		MaxChunks:      cfg.MaxChunks,
		MinSourceChars: cfg.MinSourceChars,
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"ingest":  7,
				"default": 3,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(ingestor)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskIngestFile, processor.ProcessIngestFile)
	mux.HandleFunc(queue.TaskIngestURL, processor.ProcessIngestURL)

	logger.Info("Starting ingestion worker", "redis", redisOpt.Addr, "concurrency", 10)

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
