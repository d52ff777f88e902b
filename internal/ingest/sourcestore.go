package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studycards-backend/internal/apperr"
	"studycards-backend/models"
)

// SourceStore persists source records.
type SourceStore interface {
	Insert(ctx context.Context, src *models.Source) error
	Update(ctx context.Context, src *models.Source) error
	Get(ctx context.Context, id string) (*models.Source, error)
	List(ctx context.Context, limit int64) ([]models.Source, error)
	ListByMediaType(ctx context.Context, mediaType string) ([]models.Source, error)
}

// MongoSourceStore is the Mongo-backed SourceStore.
type MongoSourceStore struct {
	collection *mongo.Collection
}

func NewMongoSourceStore(db *mongo.Database) *MongoSourceStore {
	return &MongoSourceStore{collection: db.Collection("sources")}
}

func (s *MongoSourceStore) Insert(ctx context.Context, src *models.Source) error {
	now := time.Now()
	src.CreatedAt = now
	src.UpdatedAt = now
	result, err := s.collection.InsertOne(ctx, src)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	src.ID = result.InsertedID.(primitive.ObjectID)
	return nil
}

func (s *MongoSourceStore) Update(ctx context.Context, src *models.Source) error {
	src.UpdatedAt = time.Now()
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": src.ID}, src)
	if err != nil {
		return fmt.Errorf("update source %s: %w", src.ID.Hex(), err)
	}
	return nil
}

func (s *MongoSourceStore) Get(ctx context.Context, id string) (*models.Source, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: bad source id %q", apperr.ErrValidation, id)
	}
	var src models.Source
	err = s.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&src)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: source %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get source %s: %w", id, err)
	}
	return &src, nil
}

func (s *MongoSourceStore) List(ctx context.Context, limit int64) ([]models.Source, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(limit)
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer cursor.Close(ctx)

	var sources []models.Source
	if err := cursor.All(ctx, &sources); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}

func (s *MongoSourceStore) ListByMediaType(ctx context.Context, mediaType string) ([]models.Source, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"media_type": mediaType})
	if err != nil {
		return nil, fmt.Errorf("list sources by type: %w", err)
	}
	defer cursor.Close(ctx)

	var sources []models.Source
	if err := cursor.All(ctx, &sources); err != nil {
		return nil, fmt.Errorf("list sources by type: %w", err)
	}
	return sources, nil
}
