package services

import (
	"context"
	"os"
	"testing"

	"studycards-backend/internal/ai"
	"studycards-backend/internal/config"
)

func TestEmbedBatchLive(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		t.Skipf("config load failed: %v", err)
	}
	client, err := ai.NewGeminiClient(context.Background(), cfg)
	if err != nil {
		t.Fatalf("client init error: %v", err)
	}
	defer client.Close()

	vectors, err := client.EmbedBatch(context.Background(), []string{"hello world", "study cards"})
	if err != nil {
		t.Fatalf("embedding error: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	for i, v := range vectors {
		if len(v) == 0 {
			t.Fatalf("empty embedding at %d", i)
		}
	}
}
