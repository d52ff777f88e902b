package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	// Test connection
	err = client.Ping(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	// Create indexes
	err = createIndexes(client, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	// Sources collection indexes
	sourcesCollection := db.Collection("sources")
	sourceIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
	}
	_, err := sourcesCollection.Indexes().CreateMany(context.Background(), sourceIndexes)
	if err != nil {
		return err
	}

	// Chunks collection indexes for source-scoped similarity scans
	chunksCollection := db.Collection("chunks")
	chunkIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "source_id", Value: 1}, {Key: "order", Value: 1}}},
		{Keys: bson.D{{Key: "chunk_id", Value: 1}}},
	}
	_, err = chunksCollection.Indexes().CreateMany(context.Background(), chunkIndexes)
	if err != nil {
		return err
	}

	// Decks collection indexes
	decksCollection := db.Collection("decks")
	deckIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	}
	_, err = decksCollection.Indexes().CreateMany(context.Background(), deckIndexes)
	if err != nil {
		return err
	}

	// Cards collection indexes: due-card listing sorts on next_review_at
	cardsCollection := db.Collection("cards")
	cardIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "deck_id", Value: 1}, {Key: "next_review_at", Value: 1}}},
		{Keys: bson.D{{Key: "source_id", Value: 1}}},
	}
	_, err = cardsCollection.Indexes().CreateMany(context.Background(), cardIndexes)
	if err != nil {
		return err
	}

	return nil
}
