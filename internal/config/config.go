package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI string
	DBName   string
	Port     string
	GinMode  string

	CORSOrigins []string

	// Chunking
	MaxChunkSize int
	ChunkOverlap int
	MaxChunks    int

	// Ingestion
	MinSourceChars      int
	MaxFileSize         int64
	AllowedTypes        []string
	FileStorageDir      string
	SyncProcessingLimit int64
	FetchTimeout        int // seconds

	// Retrieval / generation
	RetrievalLimit    int
	ContextCharBudget int
	DefaultCardCount  int

	// Gemini
	GeminiAPIKey    string
	GeminiTier      string
	EmbeddingsModel string
	GenerationModel string

	// Redis
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Retrieval cache
	CacheTTLSeconds int

	// Source refresh
	RefreshEnabled bool
	RefreshCron    string

	// Tracing
	TracingEnabled bool
	OTLPEndpoint   string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017/studycards"),
		DBName:   getEnv("DB_NAME", "studycards"),
		Port:     getEnv("PORT", "8080"),
		GinMode:  getEnv("GIN_MODE", "debug"),

		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		MaxChunkSize: getEnvInt("MAX_CHUNK_SIZE", 1200),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 100),
		MaxChunks:    getEnvInt("MAX_CHUNKS", 2000),

		MinSourceChars:      getEnvInt("MIN_SOURCE_CHARS", 20),
		MaxFileSize:         getEnvInt64("MAX_FILE_SIZE", 104857600), // 100MB
		AllowedTypes:        strings.Split(getEnv("ALLOWED_FILE_TYPES", "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document,text/plain,text/markdown,text/html"), ","),
		FileStorageDir:      getEnv("FILE_STORAGE_DIR", "./storage"),
		SyncProcessingLimit: getEnvInt64("SYNC_PROCESSING_LIMIT", 20971520), // 20MB processed inline, larger goes to the worker
		FetchTimeout:        getEnvInt("FETCH_TIMEOUT", 60),

		RetrievalLimit:    getEnvInt("RETRIEVAL_LIMIT", 12),
		ContextCharBudget: getEnvInt("CONTEXT_CHAR_BUDGET", 12000),
		DefaultCardCount:  getEnvInt("DEFAULT_CARD_COUNT", 10),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),
		EmbeddingsModel: getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GenerationModel: getEnv("GOOGLE_GENERATION_MODEL", "gemini-2.0-flash"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 600),

		RefreshEnabled: getEnvBool("SOURCE_REFRESH_ENABLED", false),
		RefreshCron:    getEnv("SOURCE_REFRESH_CRON", "0 3 * * *"),

		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.ChunkOverlap >= cfg.MaxChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than MAX_CHUNK_SIZE (%d)", cfg.ChunkOverlap, cfg.MaxChunkSize)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
