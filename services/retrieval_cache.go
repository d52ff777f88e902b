package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"studycards-backend/internal/logger"
	"studycards-backend/models"
)

// RetrievalCache memoizes similarity query results in Redis. Every failure
// is a cache miss; retrieval never breaks because Redis is down.
type RetrievalCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRetrievalCache(client *redis.Client, ttl time.Duration) *RetrievalCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RetrievalCache{client: client, ttl: ttl}
}

func cacheKey(query, sourceID string, limit int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", sourceID, query, limit)))
	return "retrieval:" + hex.EncodeToString(sum[:])
}

func (c *RetrievalCache) Get(ctx context.Context, query, sourceID string, limit int) ([]models.RetrievalMatch, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, cacheKey(query, sourceID, limit)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("Retrieval cache read failed", "error", err)
		}
		return nil, false
	}
	var matches []models.RetrievalMatch
	if err := json.Unmarshal(raw, &matches); err != nil {
		return nil, false
	}
	return matches, true
}

func (c *RetrievalCache) Set(ctx context.Context, query, sourceID string, limit int, matches []models.RetrievalMatch) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(matches)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(query, sourceID, limit), raw, c.ttl).Err(); err != nil {
		logger.Debug("Retrieval cache write failed", "error", err)
	}
}
