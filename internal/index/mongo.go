package index

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studycards-backend/internal/apperr"
	"studycards-backend/models"
)

// MongoStore keeps chunk rows in a Mongo collection and scores similarity
// in process. Vectors ride along in each document so a search is a single
// filtered scan.
type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection("chunks")}
}

func (s *MongoStore) UpsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	ops := make([]mongo.WriteModel, 0, len(chunks))
	for _, c := range chunks {
		ops = append(ops, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"chunk_id": c.ChunkID}).
			SetReplacement(c).
			SetUpsert(true))
	}
	_, err := s.collection.BulkWrite(ctx, ops, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

func (s *MongoStore) DeleteSource(ctx context.Context, sourceID string) error {
	oid, err := primitive.ObjectIDFromHex(sourceID)
	if err != nil {
		return fmt.Errorf("%w: bad source id %q", apperr.ErrValidation, sourceID)
	}
	_, err = s.collection.DeleteMany(ctx, bson.M{"source_id": oid})
	if err != nil {
		return fmt.Errorf("delete chunks for source %s: %w", sourceID, err)
	}
	return nil
}

func (s *MongoStore) Count(ctx context.Context, sourceID string) (int64, error) {
	filter := bson.M{}
	if sourceID != "" {
		oid, err := primitive.ObjectIDFromHex(sourceID)
		if err != nil {
			return 0, fmt.Errorf("%w: bad source id %q", apperr.ErrValidation, sourceID)
		}
		filter["source_id"] = oid
	}
	return s.collection.CountDocuments(ctx, filter)
}

func (s *MongoStore) Search(ctx context.Context, vector []float32, sourceID string, limit int) ([]models.RetrievalMatch, error) {
	if limit <= 0 {
		return nil, nil
	}

	filter := bson.M{"vector": bson.M{"$exists": true}}
	if sourceID != "" {
		oid, err := primitive.ObjectIDFromHex(sourceID)
		if err != nil {
			return nil, fmt.Errorf("%w: bad source id %q", apperr.ErrValidation, sourceID)
		}
		filter["source_id"] = oid
	}

	cursor, err := s.collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer cursor.Close(ctx)

	type scored struct {
		match models.RetrievalMatch
		order int
	}
	var results []scored
	for cursor.Next(ctx) {
		var c models.Chunk
		if err := cursor.Decode(&c); err != nil {
			return nil, fmt.Errorf("decode chunk: %w", err)
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
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	// Equal scores order by source id then chunk position so results are
	// stable across runs.
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
