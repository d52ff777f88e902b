package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"

	"studycards-backend/internal/ai"
	"studycards-backend/internal/config"
	"studycards-backend/internal/index"
	"studycards-backend/internal/ingest"
	"studycards-backend/internal/logger"
	"studycards-backend/internal/telemetry"
	"studycards-backend/middleware"
	"studycards-backend/routes"
	"studycards-backend/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	logger.InitLogger(cfg)

	// Tracing is opt-in
	if cfg.TracingEnabled {
		shutdown, err := telemetry.InitTracer("studycards-api", cfg.OTLPEndpoint)
		if err != nil {
			logger.Warn("Tracing init failed, continuing without it", "error", err)
		} else {
			defer shutdown()
		}
	}

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

	// Connect to Redis
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer rdb.Close()

	// Initialize Gemini client
	geminiClient, err := ai.NewGeminiClient(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client:", err)
	}
	defer geminiClient.Close()

	// Asynq client for async uploads
	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer queueClient.Close()

	// Wire the pipeline
	sourceStore := ingest.NewMongoSourceStore(db)
	chunkIndex := index.NewMongoStore(db)
	ingestor := &ingest.Ingestor{
		Sources:        sourceStore,
		Index:          chunkIndex,
		Embedder:       geminiClient,
		Fetcher:        ingest.NewPageFetcher(time.Duration(cfg.FetchTimeout) * time.Second),
		MaxChunkSize:   cfg.MaxChunkSize,
		ChunkOverlap:   cfg.ChunkOverlap,
		MaxChunks:      cfg.MaxChunks,
		MinSourceChars: cfg.MinSourceChars,
	}

	generator := &services.Generator{
		Embedder:          geminiClient,
		Searcher:          chunkIndex,
		LLM:               geminiClient,
		Cache:             services.NewRetrievalCache(rdb, time.Duration(cfg.CacheTTLSeconds)*time.Second),
		RetrievalLimit:    cfg.RetrievalLimit,
		ContextCharBudget: cfg.ContextCharBudget,
		DefaultCardCount:  cfg.DefaultCardCount,
	}

	deckService := services.NewDeckService(db)
	reviewService := services.NewReviewService(deckService)
	exportService := services.NewExportService(deckService)

	// Periodic re-ingestion of URL sources
	if cfg.RefreshEnabled {
		refresher := ingest.NewRefresher(ingestor, 10*time.Minute)
		if err := refresher.Start(cfg.RefreshCron); err != nil {
			logger.Warn("Source refresher failed to start", "error", err)
		} else {
			defer refresher.Stop()
		}
	}

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RateLimitMiddleware(rdb, cfg))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "X-Requested-With", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	api := router.Group("/api")
	{
		api.POST("/ingest", routes.HandleIngest(ingestor))
		api.POST("/upload", routes.HandleUpload(cfg, ingestor, queueClient))
		api.GET("/sources", routes.HandleListSources(sourceStore))
		api.GET("/sources/:id", routes.HandleGetSource(sourceStore))

		api.GET("/search", routes.HandleSearch(generator))
		api.POST("/cards/generate", routes.HandleGenerateCards(generator))
		api.POST("/cards/:id/review", routes.HandleReviewCard(reviewService))

		api.POST("/decks", routes.HandleCreateDeck(deckService, generator))
		api.GET("/decks", routes.HandleListDecks(deckService))
		api.POST("/decks/:id/cards", routes.HandleAddCards(deckService, generator))
		api.GET("/decks/:id/cards", routes.HandleListDeckCards(deckService))
		api.GET("/decks/:id/due", routes.HandleDueCards(deckService))
		api.GET("/decks/:id/export", routes.HandleExportDeck(exportService))
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	logger.Info("Server exited")
}
