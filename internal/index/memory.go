package index

import (
	"context"
	"sort"
	"sync"

	"studycards-backend/models"
)

// MemoryStore is an in-process index used by tests and single-node setups
// without Mongo. Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]models.Chunk // keyed by chunk id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{chunks: make(map[string]models.Chunk)}
}

func (s *MemoryStore) UpsertChunks(_ context.Context, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		s.chunks[c.ChunkID] = c
	}
	return nil
}

func (s *MemoryStore) DeleteSource(_ context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, c := range s.chunks {
		if c.SourceID.Hex() == sourceID {
			delete(s.chunks, id)
		}
	}
	return nil
}

func (s *MemoryStore) Count(_ context.Context, sourceID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sourceID == "" {
		return int64(len(s.chunks)), nil
	}
	var n int64
	for _, c := range s.chunks {
		if c.SourceID.Hex() == sourceID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Search(_ context.Context, vector []float32, sourceID string, limit int) ([]models.RetrievalMatch, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	type scored struct {
		match models.RetrievalMatch
		order int
	}
	results := make([]scored, 0, len(s.chunks))
	for _, c := range s.chunks {
		if sourceID != "" && c.SourceID.Hex() != sourceID {
			continue
		}
		if len(c.Vector) == 0 {
			continue
		}
		results = append(results, scored{
			match: models.RetrievalMatch{
				ChunkID:  c.ChunkID,
				SourceID: c.SourceID.Hex(),
				Content:  c.Text,
				Score:    CosineSimilarity(vector, c.Vector),
			},
			order: c.Order,
		})
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].match.Score != results[j].match.Score {
			return results[i].match.Score > results[j].match.Score
		}
		if results[i].match.SourceID != results[j].match.SourceID {
			return results[i].match.SourceID < results[j].match.SourceID
		}
		return results[i].order < results[j].order
	})

	if len(results) > limit {
		results = results[:limit]
	}
	matches := make([]models.RetrievalMatch, len(results))
	for i, r := range results {
		matches[i] = r.match
	}
	return matches, nil
}
